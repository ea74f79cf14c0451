package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/fhirclient"
	"github.com/fhirway/fhirway/internal/platform/pipeline"
)

type fakeVerifier struct {
	claims *pipeline.Claims
	err    error
}

func (f fakeVerifier) Verify(token string) (*pipeline.Claims, error) { return f.claims, f.err }

func TestSessionJWTExtraction_RejectsMissingBearer(t *testing.T) {
	chain := pipeline.NewChain(terminalEcho, pipeline.SessionJWTExtraction(fakeVerifier{}))
	ctx := context.Background() // no WithAuthHeader
	_, err := chain.Execute(ctx, &pipeline.State{}, pipeline.Context{}, fhirclient.Request{})
	require.Error(t, err)
}

func TestSessionJWTExtraction_PopulatesContextFromClaims(t *testing.T) {
	verifier := fakeVerifier{claims: &pipeline.Claims{Tenant: "acme", Project: "demo", UserID: "u1"}}
	var captured pipeline.Context
	terminal := func(ctx context.Context, state *pipeline.State, rc pipeline.Context, req fhirclient.Request) (fhirclient.Response, error) {
		captured = rc
		return fhirclient.Response{}, nil
	}
	chain := pipeline.NewChain(terminal, pipeline.SessionJWTExtraction(verifier))
	ctx := pipeline.WithAuthHeader(context.Background(), "Bearer abc123")

	_, err := chain.Execute(ctx, &pipeline.State{}, pipeline.Context{}, fhirclient.Request{})
	require.NoError(t, err)
	assert.Equal(t, ids.TenantID("acme"), captured.Tenant)
	assert.Equal(t, ids.ProjectID("demo"), captured.Project)
}

func TestProjectAccessCheck_RejectsMismatch(t *testing.T) {
	chain := pipeline.NewChain(terminalEcho, pipeline.ProjectAccessCheck)
	ctx := pipeline.WithPathTenantProject(context.Background(), "other-tenant", "demo")
	rc := pipeline.Context{Tenant: "acme", Project: "demo"}

	_, err := chain.Execute(ctx, &pipeline.State{}, rc, fhirclient.Request{})
	require.Error(t, err)
}

func TestProjectAccessCheck_AllowsMatch(t *testing.T) {
	chain := pipeline.NewChain(terminalEcho, pipeline.ProjectAccessCheck)
	ctx := pipeline.WithPathTenantProject(context.Background(), "acme", "demo")
	rc := pipeline.Context{Tenant: "acme", Project: "demo"}

	_, err := chain.Execute(ctx, &pipeline.State{}, rc, fhirclient.Request{})
	require.NoError(t, err)
}

func TestResourceTypeWhitelist_RejectsUnlisted(t *testing.T) {
	chain := pipeline.NewChain(terminalEcho, pipeline.ResourceTypeWhitelist("Patient", "Observation"))
	_, err := chain.Execute(context.Background(), &pipeline.State{}, pipeline.Context{}, fhirclient.Request{ResourceType: "Encounter"})
	require.Error(t, err)
}

func TestArtifactTenantSubstitution_RewritesTenantProject(t *testing.T) {
	var captured pipeline.Context
	terminal := func(ctx context.Context, state *pipeline.State, rc pipeline.Context, req fhirclient.Request) (fhirclient.Response, error) {
		captured = rc
		return fhirclient.Response{}, nil
	}
	chain := pipeline.NewChain(terminal, pipeline.ArtifactTenantSubstitution)
	original := pipeline.Context{Tenant: "acme", Project: "demo"}

	_, err := chain.Execute(context.Background(), &pipeline.State{}, original, fhirclient.Request{})
	require.NoError(t, err)
	assert.Equal(t, ids.SystemTenant, captured.Tenant)
	assert.Equal(t, ids.SystemProject, captured.Project)
	assert.Equal(t, ids.TenantID("acme"), original.Tenant, "the caller's Context value must not be mutated in place")
}

func TestCustomOperationDispatch_RequiresOperationName(t *testing.T) {
	chain := pipeline.NewChain(terminalEcho, pipeline.CustomOperationDispatch)
	_, err := chain.Execute(context.Background(), &pipeline.State{}, pipeline.Context{}, fhirclient.Request{Kind: "invoke"})
	require.Error(t, err)
}

func terminalEcho(ctx context.Context, state *pipeline.State, rc pipeline.Context, req fhirclient.Request) (fhirclient.Response, error) {
	return fhirclient.Response{}, nil
}
