// Package fhirclient is the uniform surface the middleware chain's
// terminal layer executes FHIR operations against, rather than touching
// Repository/search.Engine directly. The transaction/batch bundle
// processor (txbundle) and the custom-operation executors work against
// repository.Repository directly; Transaction/Batch hand txbundle the
// client's own repository.
package fhirclient

import (
	"context"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/ferrors"
	"github.com/fhirway/fhirway/internal/platform/fhirmodel"
	"github.com/fhirway/fhirway/internal/platform/repository"
	"github.com/fhirway/fhirway/internal/platform/search"
	"github.com/fhirway/fhirway/internal/platform/terminology"
	"github.com/fhirway/fhirway/internal/platform/txbundle"
)

// RequestContext scopes every Client call to a tenant/project/author.
type RequestContext struct {
	Tenant      ids.TenantID
	Project     ids.ProjectID
	Author      repository.Author
	FHIRVersion string
}

// Client is the uniform FHIR operation surface.
type Client interface {
	Read(ctx context.Context, rc RequestContext, resourceType string, id ids.ResourceID) (fhirmodel.Resource, error)
	VRead(ctx context.Context, rc RequestContext, versionID ids.VersionID) (fhirmodel.Resource, error)
	Create(ctx context.Context, rc RequestContext, resource fhirmodel.Resource) (fhirmodel.Resource, error)
	Update(ctx context.Context, rc RequestContext, resourceType string, id ids.ResourceID, resource fhirmodel.Resource) (fhirmodel.Resource, error)
	Patch(ctx context.Context, rc RequestContext, resourceType string, id ids.ResourceID, patch map[string]any) (fhirmodel.Resource, error)
	ConditionalUpdate(ctx context.Context, rc RequestContext, resourceType string, searchParams map[string][]string, resource fhirmodel.Resource) (fhirmodel.Resource, error)
	Delete(ctx context.Context, rc RequestContext, resourceType string, id ids.ResourceID) error
	Search(ctx context.Context, rc RequestContext, req search.Request) (*search.Result, error)
	History(ctx context.Context, rc RequestContext, req repository.HistoryRequest) ([]repository.ResourceVersion, error)
	Invoke(ctx context.Context, rc RequestContext, operation string, resourceType string, id ids.ResourceID, params fhirmodel.Resource) (fhirmodel.Resource, error)
	Transaction(ctx context.Context, rc RequestContext, bundle fhirmodel.Resource) (fhirmodel.Resource, error)
	Batch(ctx context.Context, rc RequestContext, bundle fhirmodel.Resource) (fhirmodel.Resource, error)
}

// Operation is a registered custom-operation ($op) executor.
type Operation func(ctx context.Context, rc RequestContext, resourceType string, id ids.ResourceID, params fhirmodel.Resource) (fhirmodel.Resource, error)

type client struct {
	repo        repository.Repository
	search      search.Engine
	terminology terminology.Terminology
	operations  map[string]Operation
}

// New builds the default Client implementation over repo/search/term.
func New(repo repository.Repository, searchEngine search.Engine, term terminology.Terminology, operations map[string]Operation) Client {
	if operations == nil {
		operations = map[string]Operation{}
	}
	return &client{repo: repo, search: searchEngine, terminology: term, operations: operations}
}

func (c *client) Read(ctx context.Context, rc RequestContext, resourceType string, id ids.ResourceID) (fhirmodel.Resource, error) {
	res, err := c.repo.ReadLatest(ctx, rc.Tenant, rc.Project, resourceType, id, repository.Cache)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ferrors.NotFoundf("%s/%s not found", resourceType, id)
	}
	return res, nil
}

func (c *client) VRead(ctx context.Context, rc RequestContext, versionID ids.VersionID) (fhirmodel.Resource, error) {
	resources, err := c.repo.ReadByVersionIDs(ctx, rc.Tenant, rc.Project, []ids.VersionID{versionID}, repository.Cache)
	if err != nil {
		return nil, err
	}
	if len(resources) == 0 {
		return nil, ferrors.NotFoundf("version %s not found", versionID)
	}
	return resources[0], nil
}

func (c *client) Create(ctx context.Context, rc RequestContext, resource fhirmodel.Resource) (fhirmodel.Resource, error) {
	return c.repo.Create(ctx, rc.Tenant, rc.Project, rc.Author, rc.FHIRVersion, resource)
}

func (c *client) Update(ctx context.Context, rc RequestContext, resourceType string, id ids.ResourceID, resource fhirmodel.Resource) (fhirmodel.Resource, error) {
	return c.repo.Update(ctx, rc.Tenant, rc.Project, rc.Author, rc.FHIRVersion, resourceType, id, resource)
}

func (c *client) Patch(ctx context.Context, rc RequestContext, resourceType string, id ids.ResourceID, patch map[string]any) (fhirmodel.Resource, error) {
	// existing lookup bypasses the cache: a patch must apply against
	// the true current state, never a possibly-stale cached copy.
	current, err := c.repo.ReadLatest(ctx, rc.Tenant, rc.Project, resourceType, id, repository.NoCache)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ferrors.NotFoundf("%s/%s not found", resourceType, id)
	}
	merged := current.Clone()
	for k, v := range patch {
		merged[k] = v
	}
	return c.repo.Update(ctx, rc.Tenant, rc.Project, rc.Author, rc.FHIRVersion, resourceType, id, merged)
}

func (c *client) ConditionalUpdate(ctx context.Context, rc RequestContext, resourceType string, searchParams map[string][]string, resource fhirmodel.Resource) (fhirmodel.Resource, error) {
	var req search.Request
	for name, values := range searchParams {
		req.Params = append(req.Params, search.Param{Name: name, Type: search.TypeString, Values: values})
	}
	result, err := c.search.Search(ctx, rc.FHIRVersion, rc.Tenant, rc.Project, req)
	if err != nil {
		return nil, err
	}
	switch {
	case result == nil || len(result.Entries) == 0:
		return c.repo.Create(ctx, rc.Tenant, rc.Project, rc.Author, rc.FHIRVersion, resource)
	case len(result.Entries) == 1:
		id := ids.ResourceID(result.Entries[0].ID)
		return c.repo.Update(ctx, rc.Tenant, rc.Project, rc.Author, rc.FHIRVersion, resourceType, id, resource)
	default:
		return nil, ferrors.Conflictf("conditional update search matched more than one resource")
	}
}

func (c *client) Delete(ctx context.Context, rc RequestContext, resourceType string, id ids.ResourceID) error {
	return c.repo.Delete(ctx, rc.Tenant, rc.Project, rc.Author, resourceType, id)
}

func (c *client) Search(ctx context.Context, rc RequestContext, req search.Request) (*search.Result, error) {
	return c.search.Search(ctx, rc.FHIRVersion, rc.Tenant, rc.Project, req)
}

func (c *client) History(ctx context.Context, rc RequestContext, req repository.HistoryRequest) ([]repository.ResourceVersion, error) {
	return c.repo.History(ctx, rc.Tenant, rc.Project, req)
}

func (c *client) Invoke(ctx context.Context, rc RequestContext, operation string, resourceType string, id ids.ResourceID, params fhirmodel.Resource) (fhirmodel.Resource, error) {
	op, ok := c.operations[operation]
	if !ok {
		return nil, ferrors.NotSupportedf("operation %q is not registered", operation)
	}
	return op(ctx, rc, resourceType, id, params)
}

func (c *client) Transaction(ctx context.Context, rc RequestContext, bundle fhirmodel.Resource) (fhirmodel.Resource, error) {
	return txbundle.Process(ctx, c.repo, rc.Tenant, rc.Project, rc.Author, rc.FHIRVersion, bundle, true)
}

func (c *client) Batch(ctx context.Context, rc RequestContext, bundle fhirmodel.Resource) (fhirmodel.Resource, error) {
	return txbundle.Process(ctx, c.repo, rc.Tenant, rc.Project, rc.Author, rc.FHIRVersion, bundle, false)
}
