package search_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/search"
)

func TestBuildQuery_AlwaysScopesTenantAndProject(t *testing.T) {
	q, err := search.BuildQuery(ids.TenantID("acme"), ids.ProjectID("default"), search.Request{})
	require.NoError(t, err)

	must := q["query"].(map[string]any)["bool"].(map[string]any)["must"].([]map[string]any)
	require.Len(t, must, 2)
	assert.Equal(t, map[string]any{"tenant": "acme"}, must[0]["term"])
	assert.Equal(t, map[string]any{"project": "default"}, must[1]["term"])
}

func TestBuildQuery_MultipleValuesAreOred(t *testing.T) {
	req := search.Request{Params: []search.Param{
		{Name: "code", Type: search.TypeToken, Values: []string{"a", "b"}},
	}}
	q, err := search.BuildQuery(ids.TenantID("t"), ids.ProjectID("p"), req)
	require.NoError(t, err)

	must := q["query"].(map[string]any)["bool"].(map[string]any)["must"].([]map[string]any)
	require.Len(t, must, 3)
	should, ok := must[2]["bool"].(map[string]any)["should"]
	require.True(t, ok)
	assert.Len(t, should, 2)
}

func TestBuildQuery_InvalidDateFormat(t *testing.T) {
	req := search.Request{Params: []search.Param{
		{Name: "birthdate", Type: search.TypeDate, Values: []string{"not-a-date"}},
	}}
	_, err := search.BuildQuery(ids.TenantID("t"), ids.ProjectID("p"), req)
	require.Error(t, err)
}

func TestBuildQuery_NumberTargetsStartEndSubfields(t *testing.T) {
	req := search.Request{Params: []search.Param{
		{Name: "probability", Type: search.TypeNumber, Values: []string{"5.0"}},
	}}
	q, err := search.BuildQuery(ids.TenantID("t"), ids.ProjectID("p"), req)
	require.NoError(t, err)

	must := q["query"].(map[string]any)["bool"].(map[string]any)["must"].([]map[string]any)
	require.Len(t, must, 3)
	inner := must[2]["bool"].(map[string]any)["must"].([]map[string]any)
	require.Len(t, inner, 2)
	assert.Contains(t, inner[0]["range"], "probability.start")
	assert.Contains(t, inner[1]["range"], "probability.end")
}

func TestBuildQuery_QuantityRejectsFourSegments(t *testing.T) {
	req := search.Request{Params: []search.Param{
		{Name: "value-quantity", Type: search.TypeQuantity, Values: []string{"5|a|b|c"}},
	}}
	_, err := search.BuildQuery(ids.TenantID("t"), ids.ProjectID("p"), req)
	require.Error(t, err)
}

func TestMappingFromSearchParameters_KeysFieldsByCodeAlongsideIdentityFields(t *testing.T) {
	params := []search.SearchParameter{
		{Code: "value-quantity", Type: search.TypeQuantity},
		{Code: "birthdate", Type: search.TypeDate},
	}
	m := search.MappingFromSearchParameters(params)
	props := m["properties"].(map[string]any)
	assert.Contains(t, props, "value-quantity")
	assert.Contains(t, props, "birthdate")
	assert.Contains(t, props, "tenant")
}
