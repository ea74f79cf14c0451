// Package searchparams embeds the platform's built-in SearchParameter
// catalog (spec §3: "loaded at startup from embedded artifacts"),
// grounded on the teacher's capability-builder resource/search-param
// registration in cmd/ehr-server/main.go, generalized from inline Go
// literals to a single embedded JSON artifact so the catalog can grow
// without touching Go source.
package searchparams

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/fhirway/fhirway/internal/platform/search"
)

//go:embed searchparams.json
var catalogFS embed.FS

type rawDef struct {
	ResourceType string `json:"resourceType"`
	Code         string `json:"code"`
	URL          string `json:"url"`
	Expression   string `json:"expression"`
	Type         string `json:"type"`
}

// Load parses the embedded catalog into the engine-neutral
// search.SearchParameterDef shape. Resource types and FHIRPath
// expressions not covered here fall back to no indexed fields for that
// parameter, per spec §1's scope (the full ~150-resource-type catalog
// is generated from StructureDefinitions, explicitly out of scope).
func Load() ([]search.SearchParameterDef, error) {
	raw, err := catalogFS.ReadFile("searchparams.json")
	if err != nil {
		return nil, fmt.Errorf("searchparams: reading embedded catalog: %w", err)
	}
	var defs []rawDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("searchparams: parsing embedded catalog: %w", err)
	}

	out := make([]search.SearchParameterDef, len(defs))
	for i, d := range defs {
		out[i] = search.SearchParameterDef{
			ResourceType: d.ResourceType,
			Code:         d.Code,
			URL:          d.URL,
			Expression:   d.Expression,
			Type:         search.ParamType(d.Type),
		}
	}
	return out, nil
}

// AsSearchParameters adapts defs to the search.SearchParameter shape
// Migrate's mapping derivation consumes.
func AsSearchParameters(defs []search.SearchParameterDef) []search.SearchParameter {
	out := make([]search.SearchParameter, len(defs))
	for i, d := range defs {
		out[i] = search.SearchParameter{URL: d.URL, Code: fmt.Sprintf("%s.%s", d.ResourceType, d.Code), Type: d.Type}
	}
	return out
}
