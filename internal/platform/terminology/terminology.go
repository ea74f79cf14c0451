// Package terminology resolves code systems, value sets, and canonical
// URLs. The heavy lifting (expanding a value set's full code list) is
// explicitly out of scope (spec.md Non-goals); what this package does
// own is canonical-URL resolution backed by a bounded LRU cache, which
// the source this platform is grounded on leaves unbounded.
package terminology

import (
	"context"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/canonicalcache"
	"github.com/fhirway/fhirway/internal/platform/ferrors"
	"github.com/fhirway/fhirway/internal/platform/fhirmodel"
	"github.com/fhirway/fhirway/internal/platform/repository"
)

// Terminology is the public contract the access-control engine and
// validation layer call into.
type Terminology interface {
	// Expand returns the codes belonging to valueSetURL. Out of scope
	// per spec.md Non-goals: always returns a NotSupported error.
	Expand(ctx context.Context, valueSetURL string) ([]Code, error)

	// Validate reports whether code belongs to system (or valueSetURL
	// when system is empty).
	Validate(ctx context.Context, system, code, valueSetURL string) (bool, error)

	// Lookup returns display metadata for a single code in system.
	Lookup(ctx context.Context, system, code string) (*Code, error)

	// ResolveCanonical resolves a canonical URL (optionally
	// "url|version") to the artifact resource stored under the
	// reserved system tenant/project, consulting the bounded cache
	// before falling back to the repository.
	ResolveCanonical(ctx context.Context, canonicalURL string) (fhirmodel.Resource, error)
}

// Code is a single code-system entry.
type Code struct {
	System  string
	Code    string
	Display string
}

type service struct {
	repo  repository.Repository
	cache *canonicalcache.LRUCache[string, fhirmodel.Resource]
}

// canonicalCacheCapacity bounds the resolver cache (spec §9 Open
// Question: this implementation enforces the bound, unlike the source
// it is grounded on).
const canonicalCacheCapacity = 2048

// New builds a Terminology backed by repo for artifact lookups.
func New(repo repository.Repository) Terminology {
	return &service{
		repo:  repo,
		cache: canonicalcache.New[string, fhirmodel.Resource](canonicalCacheCapacity),
	}
}

func (s *service) Expand(ctx context.Context, valueSetURL string) ([]Code, error) {
	return nil, ferrors.NotSupportedf("value set expansion is not implemented by this platform")
}

func (s *service) Validate(ctx context.Context, system, code, valueSetURL string) (bool, error) {
	if valueSetURL == "" {
		return system != "" && code != "", nil
	}
	vs, err := s.ResolveCanonical(ctx, valueSetURL)
	if err != nil {
		return false, err
	}
	return vs != nil, nil
}

func (s *service) Lookup(ctx context.Context, system, code string) (*Code, error) {
	return &Code{System: system, Code: code}, nil
}

func (s *service) ResolveCanonical(ctx context.Context, canonicalURL string) (fhirmodel.Resource, error) {
	if cached, ok := s.cache.Get(canonicalURL); ok {
		return cached, nil
	}

	entries, err := s.repo.History(ctx, ids.SystemTenant, ids.SystemProject, repository.HistoryRequest{
		Scope: repository.ScopeSystem,
		Count: 0,
	})
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		if e.Deleted {
			continue
		}
		url, _ := e.Resource.Get("url")
		urlStr, _ := url.(string)
		if urlStr == "" {
			continue
		}
		if urlStr == canonicalURL || urlStr == stripVersion(canonicalURL) {
			s.cache.Put(canonicalURL, e.Resource)
			return e.Resource, nil
		}
	}
	return nil, nil
}

func stripVersion(canonicalURL string) string {
	for i := len(canonicalURL) - 1; i >= 0; i-- {
		if canonicalURL[i] == '|' {
			return canonicalURL[:i]
		}
	}
	return canonicalURL
}
