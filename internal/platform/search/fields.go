package search

import (
	"strconv"
	"strings"

	"github.com/fhirway/fhirway/internal/platform/fhirmodel"
	"github.com/fhirway/fhirway/internal/platform/fhirpathmini"
)

// SearchParameterDef is a loaded SearchParameter artifact (spec §3's
// "SearchParameter" entity): a name for a resource type, the FHIRPath
// expression that selects its values, and the parameter's type.
type SearchParameterDef struct {
	ResourceType string
	Code         string // the indexed field key, e.g. "name" or "birthdate"
	URL          string
	Expression   string
	Type         ParamType
}

// FieldDeriver turns a stored resource into the indexed_fields mapping
// spec §3 describes, evaluating each applicable SearchParameterDef's
// FHIRPath expression against the resource via the fhirpathmini
// collaborator (spec.md Non-goals: full FHIRPath is external; this
// platform's own rule engine and indexer share the same narrow
// evaluator rather than each hand-rolling traversal).
type FieldDeriver struct {
	byType map[string][]SearchParameterDef
	eval   fhirpathmini.Evaluator
}

// NewFieldDeriver groups defs by resource type for fast per-document
// lookup and binds the shared FHIRPath-lite evaluator.
func NewFieldDeriver(defs []SearchParameterDef) *FieldDeriver {
	byType := map[string][]SearchParameterDef{}
	for _, d := range defs {
		byType[d.ResourceType] = append(byType[d.ResourceType], d)
	}
	return &FieldDeriver{byType: byType, eval: fhirpathmini.New()}
}

// Derive returns the indexed_fields map for resource, keyed by each
// matching SearchParameterDef's Code, typed per spec §4.3's mapping
// derivation rules.
func (d *FieldDeriver) Derive(resource fhirmodel.Resource) map[string]any {
	out := map[string]any{}
	for _, def := range d.byType[resource.TypeName()] {
		values := d.eval.Evaluate(def.Expression, resource)
		if len(values) == 0 {
			continue
		}
		typed := typeValues(def.Type, values)
		if typed != nil {
			out[def.Code] = typed
		}
	}
	return out
}

// typeValues converts the raw FHIRPath-lite result into the typed shape
// spec §4.3 specifies per search-parameter type. Unparseable values are
// dropped rather than failing the whole index attempt — indexing is
// at-least-once and best-effort per field (spec §4.4's "recoverable
// locally" class of failure).
func typeValues(t ParamType, values []any) any {
	switch t {
	case TypeString, TypeURI:
		s := stringOf(values[0])
		if s == "" {
			return nil
		}
		return strings.ToLower(s)
	case TypeToken:
		s := stringOf(values[0])
		if s == "" {
			return nil
		}
		system, code := splitPipe(s)
		return map[string]any{"system": system, "code": code}
	case TypeReference:
		s := stringOf(values[0])
		if s == "" {
			return nil
		}
		rt, id := splitSlash(s)
		return map[string]any{"resource_type": rt, "id": id, "uri": s}
	case TypeNumber:
		f, ok := floatOf(values[0])
		if !ok {
			return nil
		}
		return map[string]any{"start": f, "end": f}
	default:
		// date/quantity derivation needs a real resource-shaped value
		// (Period, Quantity) the mini evaluator doesn't model beyond
		// scalars; left for a fuller FHIRPath collaborator, per
		// spec.md's explicit non-goal on that evaluator.
		return nil
	}
}

func stringOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

func floatOf(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func splitPipe(s string) (system, code string) {
	if i := strings.IndexByte(s, '|'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return "", s
}

func splitSlash(s string) (resourceType, id string) {
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return "", s
}
