package accesscontrol_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/accesscontrol"
	"github.com/fhirway/fhirway/internal/platform/fhirmodel"
	"github.com/fhirway/fhirway/internal/platform/repository"
)

type fakeRepo struct {
	repository.Repository
	resources map[string]fhirmodel.Resource
}

func (f *fakeRepo) ReadByVersionIDs(ctx context.Context, tenant ids.TenantID, project ids.ProjectID, versionIDs []ids.VersionID, policy repository.CachePolicy) ([]fhirmodel.Resource, error) {
	var out []fhirmodel.Resource
	for _, v := range versionIDs {
		if r, ok := f.resources[v.String()]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func policyResource(versionID, engine string, rules ...map[string]any) fhirmodel.Resource {
	ruleAny := make([]any, len(rules))
	for i, r := range rules {
		ruleAny[i] = r
	}
	r := fhirmodel.Resource{
		"resourceType": "AccessPolicy",
		"engine":       engine,
		"rule":         ruleAny,
	}
	r.SetMeta(versionID, "2026-01-01T00:00:00Z")
	return r
}

func TestEvaluate_FullAccessAllows(t *testing.T) {
	repo := &fakeRepo{resources: map[string]fhirmodel.Resource{
		"v1": policyResource("v1", "full-access"),
	}}
	e := accesscontrol.New(repo)
	err := e.Evaluate(context.Background(), ids.TenantID("t"), []ids.VersionID{"v1"}, accesscontrol.Request{Kind: "read", ResourceType: "Patient"})
	require.NoError(t, err)
}

func TestEvaluate_NullDenies(t *testing.T) {
	repo := &fakeRepo{resources: map[string]fhirmodel.Resource{
		"v1": policyResource("v1", "null"),
	}}
	e := accesscontrol.New(repo)
	err := e.Evaluate(context.Background(), ids.TenantID("t"), []ids.VersionID{"v1"}, accesscontrol.Request{Kind: "read", ResourceType: "Patient"})
	require.Error(t, err)
}

func TestEvaluate_RuleEngineDefaultDeny(t *testing.T) {
	repo := &fakeRepo{resources: map[string]fhirmodel.Resource{
		"v1": policyResource("v1", "rule-engine", map[string]any{
			"requestKinds":  []any{"read"},
			"resourceTypes": []any{"Observation"},
			"effect":        "allow",
		}),
	}}
	e := accesscontrol.New(repo)
	err := e.Evaluate(context.Background(), ids.TenantID("t"), []ids.VersionID{"v1"}, accesscontrol.Request{Kind: "read", ResourceType: "Patient"})
	assert.Error(t, err, "no rule matched Patient so the default deny should apply")
}

func TestEvaluate_IntersectionOfMultiplePolicies(t *testing.T) {
	repo := &fakeRepo{resources: map[string]fhirmodel.Resource{
		"v1": policyResource("v1", "full-access"),
		"v2": policyResource("v2", "null"),
	}}
	e := accesscontrol.New(repo)
	err := e.Evaluate(context.Background(), ids.TenantID("t"), []ids.VersionID{"v1", "v2"}, accesscontrol.Request{Kind: "read", ResourceType: "Patient"})
	require.Error(t, err, "one denying policy must deny the whole request")
}
