// Package fhirmodel is the narrow, hand-written stand-in for the FHIR R4
// resource model. The platform treats a "Resource" as a tagged JSON
// document rather than ~150 generated Go structs (the code generator that
// would produce those is explicitly out of scope, per spec.md) — but it
// still needs the "tiny reflection facet" the design notes call for:
// typename, get, and field enumeration, enough for FHIRPath-lite rule
// matching and reference rewriting without a generated tagged union.
package fhirmodel

import (
	"encoding/json"
	"fmt"
)

// Resource is a FHIR R4 resource represented as its parsed JSON object.
// Every stored resource carries "resourceType", "id", and
// "meta.versionId" at minimum.
type Resource map[string]any

// ParseResource parses raw FHIR JSON into a Resource, rejecting anything
// that isn't a JSON object or that lacks a resourceType.
func ParseResource(raw []byte) (Resource, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("fhirmodel: invalid JSON: %w", err)
	}
	r := Resource(m)
	if r.TypeName() == "" {
		return nil, fmt.Errorf("fhirmodel: missing resourceType")
	}
	return r, nil
}

// TypeName returns the resource's "resourceType" field.
func (r Resource) TypeName() string {
	s, _ := r["resourceType"].(string)
	return s
}

// ID returns the resource's "id" field.
func (r Resource) ID() string {
	s, _ := r["id"].(string)
	return s
}

// SetID sets the resource's "id" field.
func (r Resource) SetID(id string) { r["id"] = id }

// VersionID returns "meta.versionId", if present.
func (r Resource) VersionID() string {
	meta, _ := r["meta"].(map[string]any)
	if meta == nil {
		return ""
	}
	s, _ := meta["versionId"].(string)
	return s
}

// SetMeta sets meta.versionId and meta.lastUpdated, creating the meta
// object if absent and preserving any other meta fields (profile,
// security labels, tags) already present.
func (r Resource) SetMeta(versionID, lastUpdated string) {
	meta, _ := r["meta"].(map[string]any)
	if meta == nil {
		meta = map[string]any{}
	}
	meta["versionId"] = versionID
	meta["lastUpdated"] = lastUpdated
	r["meta"] = meta
}

// Get returns a top-level field by name — the minimal "get(name)" facet
// the design notes call for.
func (r Resource) Get(name string) (any, bool) {
	v, ok := r[name]
	return v, ok
}

// Fields returns the resource's top-level field names.
func (r Resource) Fields() []string {
	names := make([]string, 0, len(r))
	for k := range r {
		names = append(names, k)
	}
	return names
}

// Clone returns a deep-enough copy of r suitable for mutation (used by
// the repository before stamping server-assigned id/meta, and by the
// transaction bundle processor before reference rewriting).
func (r Resource) Clone() Resource {
	raw, _ := json.Marshal(r)
	var cp map[string]any
	_ = json.Unmarshal(raw, &cp)
	return Resource(cp)
}

// MarshalJSON round-trips through the underlying map.
func (r Resource) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any(r))
}

// WalkReferences visits every string found under a key named
// "reference" anywhere in the resource document, depth-first. This is
// the narrow, concrete traversal design notes describe as a stand-in for
// a full FHIRPath "descendants().ofType(Reference)" pass: it does not
// understand FHIRPath generally, only the "reference" JSON shape every
// FHIR Reference datatype uses.
func (r Resource) WalkReferences(visit func(path []string, value string) string) {
	walkReferences(map[string]any(r), nil, visit)
}

func walkReferences(node any, path []string, visit func([]string, string) string) any {
	switch v := node.(type) {
	case map[string]any:
		if ref, ok := v["reference"].(string); ok {
			v["reference"] = visit(path, ref)
		}
		for k, child := range v {
			v[k] = walkReferences(child, append(append([]string{}, path...), k), visit)
		}
		return v
	case []any:
		for i, child := range v {
			v[i] = walkReferences(child, path, visit)
		}
		return v
	default:
		return v
	}
}
