// Package fhirpathmini is a narrow FHIRPath-lite evaluator. Full
// FHIRPath is an explicit external collaborator (spec.md Non-goals):
// this package implements only the subset the access-control rule
// engine and the search FieldDeriver need —
// "resourceType = 'X'", simple dotted-path equality, and boolean
// "and" — not a general expression language.
package fhirpathmini

import (
	"strings"

	"github.com/fhirway/fhirway/internal/platform/fhirmodel"
)

// Evaluator is the external-collaborator contract spec §1 describes:
// evaluate(expression, roots) → values.
type Evaluator interface {
	Evaluate(expression string, root fhirmodel.Resource) []any
}

// miniEvaluator implements Evaluator for the narrow grammar this
// platform's access-control rule engine needs.
type miniEvaluator struct{}

// New returns the in-repo FHIRPath-lite evaluator.
func New() Evaluator { return miniEvaluator{} }

// Evaluate supports:
//   - "resourceType" → [root.TypeName()]
//   - "a.b.c" dotted path traversal over nested objects/arrays
//   - "expr1 and expr2 and ..." → [true] if every conjunct is truthy,
//     else [false]
func (miniEvaluator) Evaluate(expression string, root fhirmodel.Resource) []any {
	expression = strings.TrimSpace(expression)
	if strings.Contains(expression, " and ") {
		for _, part := range strings.Split(expression, " and ") {
			vals := miniEvaluator{}.Evaluate(part, root)
			if !Truthy(vals) {
				return []any{false}
			}
		}
		return []any{true}
	}

	if eq := strings.Index(expression, "="); eq >= 0 {
		left := strings.TrimSpace(expression[:eq])
		right := strings.Trim(strings.TrimSpace(expression[eq+1:]), "'\"")
		vals := resolvePath(root, left)
		for _, v := range vals {
			if s, ok := v.(string); ok && s == right {
				return []any{true}
			}
		}
		return []any{false}
	}

	return resolvePath(root, expression)
}

func resolvePath(root fhirmodel.Resource, path string) []any {
	if path == "resourceType" {
		return []any{root.TypeName()}
	}

	segments := strings.Split(path, ".")
	var current any = map[string]any(root)
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = m[seg]
		if !ok {
			return nil
		}
	}

	if arr, ok := current.([]any); ok {
		return arr
	}
	return []any{current}
}

// Truthy is the boolean-or-exists rule every caller of Evaluate's result
// uses to decide whether a predicate matched: a non-bool first value
// counts as true (it exists), a bool first value is taken at face
// value, and an empty result is false.
func Truthy(vals []any) bool {
	if len(vals) == 0 {
		return false
	}
	if b, ok := vals[0].(bool); ok {
		return b
	}
	return true
}
