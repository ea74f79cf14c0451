// Package pipeline is the generic middleware chain every FHIR-facing
// route in the router is built from (spec §4.1, §9). A Chain is
// composed once at route-registration time from an ordered layer list,
// so dispatching a request is a single closure call rather than a
// runtime lookup — the teacher's routes do the equivalent static
// composition with Echo's own middleware stack, generalized here to a
// domain-specific chain carrying FHIR request context instead of raw
// HTTP concerns.
package pipeline

import (
	"context"

	"github.com/fhirway/fhirway/internal/config"
	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/fhirclient"
	"github.com/fhirway/fhirway/internal/platform/repository"
	"github.com/fhirway/fhirway/internal/platform/search"
	"github.com/fhirway/fhirway/internal/platform/terminology"
)

// State holds the process-wide collaborators every layer may need.
// It is built once at startup and shared by every Chain.
type State struct {
	Repo        repository.Repository
	Search      search.Engine
	Terminology terminology.Terminology
	Client      fhirclient.Client
	Config      *config.Config
}

// Context is the per-request, tenant-scoped data threaded through the
// chain. It is never mutated in place: a layer that needs to change it
// (e.g. ArtifactTenantSubstitution rewriting Tenant/Project) builds a new
// Context value and passes that to next, leaving the caller's value
// untouched.
type Context struct {
	Tenant                 ids.TenantID
	Project                ids.ProjectID
	Author                 ids.AuthorID
	AuthorKind             string
	FHIRVersion            string
	AccessPolicyVersionIDs []ids.VersionID
}

// Next is the signature every layer wraps: call it to continue the
// chain, or return early (with a response or an error) to short-circuit.
type Next func(ctx context.Context, state *State, rc Context, req fhirclient.Request) (fhirclient.Response, error)

// Middleware wraps a Next with additional behavior, producing a new Next.
type Middleware func(next Next) Next

// Chain is a fixed, ordered sequence of layers wrapped around a
// terminal Next (normally RepositoryDispatch).
type Chain struct {
	entry Next
}

// NewChain composes layers (outermost first) around terminal, matching
// the declared default ordering: SessionJWTExtraction (which also
// resolves tenant/project from the token) → ProjectAccessCheck →
// ResourceTypeWhitelist (optional) → AccessControlEvaluation → ArtifactTenantSubstitution
// (artifact routes only) → CustomOperationDispatch (invoke routes only)
// → RepositoryDispatch (terminal).
func NewChain(terminal Next, layers ...Middleware) *Chain {
	entry := terminal
	for i := len(layers) - 1; i >= 0; i-- {
		entry = layers[i](entry)
	}
	return &Chain{entry: entry}
}

// Execute runs the chain for one request.
func (c *Chain) Execute(ctx context.Context, state *State, rc Context, req fhirclient.Request) (fhirclient.Response, error) {
	return c.entry(ctx, state, rc, req)
}

// RepositoryDispatch is the terminal layer every Chain ends with: it
// hands the (by then fully authorized) request to fhirclient.Dispatch.
func RepositoryDispatch(ctx context.Context, state *State, rc Context, req fhirclient.Request) (fhirclient.Response, error) {
	return fhirclient.Dispatch(ctx, state.Client, fhirclient.RequestContext{
		Tenant:      rc.Tenant,
		Project:     rc.Project,
		Author:      repository.Author{ID: rc.Author, Kind: rc.AuthorKind},
		FHIRVersion: rc.FHIRVersion,
	}, req)
}
