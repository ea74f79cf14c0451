package txbundle_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/fhirmodel"
	"github.com/fhirway/fhirway/internal/platform/repository"
	"github.com/fhirway/fhirway/internal/platform/txbundle"
)

// fakeRepo is an in-memory stand-in for repository.Repository exercising
// only the FHIR CRUD surface txbundle calls.
type fakeRepo struct {
	repository.Repository
	created []fhirmodel.Resource
	failOn  string // resourceType that errors on Create, for rollback tests

	rolledBack bool
}

func (f *fakeRepo) Create(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, author repository.Author, fhirVersion string, resource fhirmodel.Resource) (fhirmodel.Resource, error) {
	if resource.TypeName() == f.failOn {
		return nil, assertErr{}
	}
	f.created = append(f.created, resource)
	return resource, nil
}

func (f *fakeRepo) Update(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, author repository.Author, fhirVersion string, resourceType string, id ids.ResourceID, resource fhirmodel.Resource) (fhirmodel.Resource, error) {
	f.created = append(f.created, resource)
	return resource, nil
}

func (f *fakeRepo) Delete(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, author repository.Author, resourceType string, id ids.ResourceID) error {
	return nil
}

func (f *fakeRepo) Transaction(ctx context.Context) (repository.Repository, error) { return f, nil }
func (f *fakeRepo) InTransaction() bool                                            { return true }
func (f *fakeRepo) Commit(ctx context.Context) error                              { return nil }
func (f *fakeRepo) Rollback(ctx context.Context) error {
	f.rolledBack = true
	return nil
}

type assertErr struct{}

func (assertErr) Error() string { return "forced failure" }

func bundleEntry(fullURL, method string, resource map[string]any) map[string]any {
	return map[string]any{
		"fullUrl":  fullURL,
		"request":  map[string]any{"method": method},
		"resource": resource,
	}
}

func TestProcess_BatchRewritesReferencesAndAssignsIDs(t *testing.T) {
	repo := &fakeRepo{}
	bundle := fhirmodel.Resource{
		"resourceType": "Bundle",
		"type":         "batch",
		"entry": []any{
			bundleEntry("urn:uuid:org1", "POST", map[string]any{"resourceType": "Organization"}),
			bundleEntry("urn:uuid:pat1", "POST", map[string]any{
				"resourceType": "Patient",
				"managingOrganization": map[string]any{
					"reference": "urn:uuid:org1",
				},
			}),
		},
	}

	resp, err := txbundle.Process(context.Background(), repo, ids.TenantID("t"), ids.ProjectID("p"), repository.Author{}, "R4", bundle, false)
	require.NoError(t, err)
	assert.Equal(t, "batch-response", resp["type"])
	require.Len(t, repo.created, 2)

	assert.Equal(t, "Organization", repo.created[0].TypeName(), "organization must be created before the patient referencing it")
	ref, _ := repo.created[1]["managingOrganization"].(map[string]any)["reference"].(string)
	assert.Contains(t, ref, "Organization/", "reference should be rewritten from the fullUrl to ResourceType/id")
}

func TestProcess_TransactionRollsBackOnFailure(t *testing.T) {
	repo := &fakeRepo{failOn: "Patient"}
	bundle := fhirmodel.Resource{
		"resourceType": "Bundle",
		"type":         "transaction",
		"entry": []any{
			bundleEntry("urn:uuid:org1", "POST", map[string]any{"resourceType": "Organization"}),
			bundleEntry("urn:uuid:pat1", "POST", map[string]any{"resourceType": "Patient"}),
		},
	}

	_, err := txbundle.Process(context.Background(), repo, ids.TenantID("t"), ids.ProjectID("p"), repository.Author{}, "R4", bundle, true)
	require.Error(t, err)
	assert.True(t, repo.rolledBack)
}

func TestProcess_DetectsReferenceCycle(t *testing.T) {
	repo := &fakeRepo{}
	bundle := fhirmodel.Resource{
		"resourceType": "Bundle",
		"type":         "batch",
		"entry": []any{
			bundleEntry("urn:uuid:a", "POST", map[string]any{
				"resourceType": "Patient",
				"link":         map[string]any{"reference": "urn:uuid:b"},
			}),
			bundleEntry("urn:uuid:b", "POST", map[string]any{
				"resourceType": "Patient",
				"link":         map[string]any{"reference": "urn:uuid:a"},
			}),
		},
	}

	_, err := txbundle.Process(context.Background(), repo, ids.TenantID("t"), ids.ProjectID("p"), repository.Author{}, "R4", bundle, false)
	require.Error(t, err)
}
