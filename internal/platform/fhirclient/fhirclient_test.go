package fhirclient_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/fhirclient"
	"github.com/fhirway/fhirway/internal/platform/fhirmodel"
	"github.com/fhirway/fhirway/internal/platform/repository"
	"github.com/fhirway/fhirway/internal/platform/search"
)

type fakeRepo struct {
	repository.Repository
	latest  fhirmodel.Resource
	updated fhirmodel.Resource
}

func (f *fakeRepo) ReadLatest(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, resourceType string, id ids.ResourceID, policy repository.CachePolicy) (fhirmodel.Resource, error) {
	return f.latest, nil
}

func (f *fakeRepo) Update(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, author repository.Author, fhirVersion string, resourceType string, id ids.ResourceID, resource fhirmodel.Resource) (fhirmodel.Resource, error) {
	f.updated = resource
	return resource, nil
}

func (f *fakeRepo) Create(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, author repository.Author, fhirVersion string, resource fhirmodel.Resource) (fhirmodel.Resource, error) {
	return resource, nil
}

type fakeSearch struct {
	search.Engine
	result *search.Result
}

func (f *fakeSearch) Search(ctx context.Context, fhirVersion string, tenant ids.TenantID, project ids.ProjectID, req search.Request) (*search.Result, error) {
	return f.result, nil
}

func TestClient_Read_NotFound(t *testing.T) {
	repo := &fakeRepo{}
	c := fhirclient.New(repo, &fakeSearch{}, nil, nil)
	_, err := c.Read(context.Background(), fhirclient.RequestContext{}, "Patient", "1")
	require.Error(t, err)
}

func TestClient_Patch_MergesOverExistingFields(t *testing.T) {
	repo := &fakeRepo{latest: fhirmodel.Resource{"resourceType": "Patient", "id": "1", "active": false}}
	c := fhirclient.New(repo, &fakeSearch{}, nil, nil)

	_, err := c.Patch(context.Background(), fhirclient.RequestContext{}, "Patient", "1", map[string]any{"active": true})
	require.NoError(t, err)
	assert.Equal(t, true, repo.updated["active"])
	assert.Equal(t, "Patient", repo.updated["resourceType"], "patch must not drop fields it didn't touch")
}

func TestClient_ConditionalUpdate_CreatesWhenNoMatch(t *testing.T) {
	repo := &fakeRepo{}
	c := fhirclient.New(repo, &fakeSearch{result: &search.Result{}}, nil, nil)

	resource := fhirmodel.Resource{"resourceType": "Patient"}
	out, err := c.ConditionalUpdate(context.Background(), fhirclient.RequestContext{}, "Patient", map[string][]string{"identifier": {"123"}}, resource)
	require.NoError(t, err)
	assert.Equal(t, "Patient", out.TypeName())
}

func TestClient_ConditionalUpdate_ConflictsOnMultipleMatches(t *testing.T) {
	repo := &fakeRepo{}
	c := fhirclient.New(repo, &fakeSearch{result: &search.Result{Entries: []search.ResultHit{{ID: "1"}, {ID: "2"}}}}, nil, nil)

	_, err := c.ConditionalUpdate(context.Background(), fhirclient.RequestContext{}, "Patient", map[string][]string{"identifier": {"123"}}, fhirmodel.Resource{"resourceType": "Patient"})
	require.Error(t, err)
}

func TestClient_Invoke_NotSupportedWhenUnregistered(t *testing.T) {
	c := fhirclient.New(&fakeRepo{}, &fakeSearch{}, nil, nil)
	_, err := c.Invoke(context.Background(), fhirclient.RequestContext{}, "everything", "Patient", "1", nil)
	require.Error(t, err)
}

func TestClient_Invoke_DispatchesRegisteredOperation(t *testing.T) {
	called := false
	ops := map[string]fhirclient.Operation{
		"everything": func(ctx context.Context, rc fhirclient.RequestContext, resourceType string, id ids.ResourceID, params fhirmodel.Resource) (fhirmodel.Resource, error) {
			called = true
			return fhirmodel.Resource{"resourceType": "Bundle"}, nil
		},
	}
	c := fhirclient.New(&fakeRepo{}, &fakeSearch{}, nil, ops)
	_, err := c.Invoke(context.Background(), fhirclient.RequestContext{}, "everything", "Patient", "1", nil)
	require.NoError(t, err)
	assert.True(t, called)
}
