package customops_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirway/fhirway/internal/domain/customops"
	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/fhirclient"
	"github.com/fhirway/fhirway/internal/platform/fhirmodel"
	"github.com/fhirway/fhirway/internal/platform/repository"
	"github.com/fhirway/fhirway/internal/platform/terminology"
)

// fakeRepo is an in-memory Repository double, following the fakeRepo
// convention already used in internal/platform/fhirclient's and
// internal/platform/indexer's tests.
type fakeRepo struct {
	repository.Repository
	project *repository.Project
	tokens  []repository.AuthorizationCode
	scopes  []repository.ApprovedScope
	deleted string
}

func (f *fakeRepo) GetProject(ctx context.Context, tenant ids.TenantID, id ids.ProjectID) (*repository.Project, error) {
	return f.project, nil
}

func (f *fakeRepo) ListAuthorizationCodes(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, userID ids.AuthorID, kind repository.AuthCodeKind) ([]repository.AuthorizationCode, error) {
	return f.tokens, nil
}

func (f *fakeRepo) DeleteAuthorizationCode(ctx context.Context, tenant ids.TenantID, code string) error {
	f.deleted = code
	return nil
}

func (f *fakeRepo) ListApprovedScopesForUser(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, userID ids.AuthorID) ([]repository.ApprovedScope, error) {
	return f.scopes, nil
}

type fakeTerminology struct {
	terminology.Terminology
	err error
}

func (f *fakeTerminology) Expand(ctx context.Context, valueSetURL string) ([]terminology.Code, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []terminology.Code{{System: "http://example.org/cs", Code: "active", Display: "Active"}}, nil
}

func TestValuesetExpand_ReturnsParametersBundle(t *testing.T) {
	ops := customops.New(&fakeRepo{}, &fakeTerminology{})
	res, err := ops["valueset-expand"](context.Background(), fhirclient.RequestContext{}, "", "", fhirmodel.Resource{"url": "http://example.org/vs"})
	require.NoError(t, err)
	assert.Equal(t, "Parameters", res["resourceType"])
}

func TestValuesetExpand_MissingURL_IsInvalid(t *testing.T) {
	ops := customops.New(&fakeRepo{}, &fakeTerminology{})
	_, err := ops["valueset-expand"](context.Background(), fhirclient.RequestContext{}, "", "", fhirmodel.Resource{})
	require.Error(t, err)
}

func TestProjectInformation_ReturnsProjectFields(t *testing.T) {
	repo := &fakeRepo{project: &repository.Project{ID: "proj1", FHIRVersion: "R4", IdentityProviders: []string{"okta"}}}
	ops := customops.New(repo, &fakeTerminology{})

	res, err := ops["project-information"](context.Background(), fhirclient.RequestContext{Tenant: "t1", Project: "proj1"}, "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "Parameters", res["resourceType"])
}

func TestProjectInformation_NotFound(t *testing.T) {
	ops := customops.New(&fakeRepo{}, &fakeTerminology{})
	_, err := ops["project-information"](context.Background(), fhirclient.RequestContext{Tenant: "t1", Project: "missing"}, "", "", nil)
	require.Error(t, err)
}

func TestActiveRefreshTokens_ListsCallersTokens(t *testing.T) {
	repo := &fakeRepo{tokens: []repository.AuthorizationCode{
		{Code: "c1", ClientID: "client-a", Meta: map[string]any{"user_agent": "chrome"}, CreatedAt: time.Unix(0, 0)},
	}}
	ops := customops.New(repo, &fakeTerminology{})

	res, err := ops["active-refresh-tokens"](context.Background(), fhirclient.RequestContext{Author: repository.Author{ID: "u1"}}, "", "", nil)
	require.NoError(t, err)
	part := res["parameter"].([]any)[0].(map[string]any)["part"].([]any)
	require.Len(t, part, 1)
	assert.Equal(t, "client-a", part[0].(map[string]any)["clientId"])
}

func TestApprovedScopes_ListsAllClients(t *testing.T) {
	repo := &fakeRepo{scopes: []repository.ApprovedScope{
		{ClientID: "client-a", Scope: "patient/*.read", CreatedAt: time.Unix(0, 0)},
		{ClientID: "client-b", Scope: "patient/*.write", CreatedAt: time.Unix(0, 0)},
	}}
	ops := customops.New(repo, &fakeTerminology{})

	res, err := ops["approved-scopes"](context.Background(), fhirclient.RequestContext{Author: repository.Author{ID: "u1"}}, "", "", nil)
	require.NoError(t, err)
	part := res["parameter"].([]any)[0].(map[string]any)["part"].([]any)
	assert.Len(t, part, 2)
}

func TestDeleteRefreshToken_MatchesClientAndUserAgent(t *testing.T) {
	repo := &fakeRepo{tokens: []repository.AuthorizationCode{
		{Code: "c1", ClientID: "client-a", Meta: map[string]any{"user_agent": "chrome"}},
		{Code: "c2", ClientID: "client-a", Meta: map[string]any{"user_agent": "firefox"}},
	}}
	ops := customops.New(repo, &fakeTerminology{})

	_, err := ops["delete-refresh-token"](context.Background(), fhirclient.RequestContext{Author: repository.Author{ID: "u1"}}, "", "",
		fhirmodel.Resource{"clientId": "client-a", "userAgent": "firefox"})
	require.NoError(t, err)
	assert.Equal(t, "c2", repo.deleted)
}

func TestDeleteRefreshToken_NoMatch_IsNotFound(t *testing.T) {
	repo := &fakeRepo{tokens: []repository.AuthorizationCode{
		{Code: "c1", ClientID: "client-a", Meta: map[string]any{"user_agent": "chrome"}},
	}}
	ops := customops.New(repo, &fakeTerminology{})

	_, err := ops["delete-refresh-token"](context.Background(), fhirclient.RequestContext{Author: repository.Author{ID: "u1"}}, "", "",
		fhirmodel.Resource{"clientId": "client-a", "userAgent": "safari"})
	require.Error(t, err)
}

func TestDeleteRefreshToken_MissingParams_IsInvalid(t *testing.T) {
	ops := customops.New(&fakeRepo{}, &fakeTerminology{})
	_, err := ops["delete-refresh-token"](context.Background(), fhirclient.RequestContext{}, "", "", fhirmodel.Resource{})
	require.Error(t, err)
}
