package search

import (
	"strconv"
	"strings"
	"time"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/ferrors"
)

// BuildQuery translates req into an OpenSearch bool query, enforcing
// tenant/project isolation as a hard filter clause (never derived from
// caller input) and ANDing distinct parameters while ORing each
// parameter's comma-separated values, per spec §4.3.
func BuildQuery(tenant ids.TenantID, project ids.ProjectID, req Request) (map[string]any, error) {
	must := []map[string]any{
		{"term": map[string]any{"tenant": tenant.String()}},
		{"term": map[string]any{"project": project.String()}},
	}

	for _, p := range req.Params {
		clause, err := buildParamClause(p)
		if err != nil {
			return nil, err
		}
		if clause != nil {
			must = append(must, clause)
		}
	}

	query := map[string]any{
		"query": map[string]any{"bool": map[string]any{"must": must}},
	}
	if req.Count > 0 {
		query["size"] = req.Count
	}
	if req.Offset > 0 {
		query["from"] = req.Offset
	}
	return query, nil
}

func buildParamClause(p Param) (map[string]any, error) {
	if len(p.Values) == 0 {
		return nil, nil
	}

	var should []map[string]any
	for _, v := range p.Values {
		clause, err := buildValueClause(p, v)
		if err != nil {
			return nil, err
		}
		should = append(should, clause)
	}
	if len(should) == 1 {
		return should[0], nil
	}
	return map[string]any{"bool": map[string]any{"should": should, "minimum_should_match": 1}}, nil
}

func buildValueClause(p Param, v string) (map[string]any, error) {
	switch p.Type {
	case TypeDate:
		return buildDateClause(p.Name, v)
	case TypeNumber:
		return buildNumberClause(p.Name, v)
	case TypeQuantity:
		return buildQuantityClause(p.Name, v)
	case TypeReference:
		return buildReferenceClause(p.Name, v), nil
	case TypeString:
		return map[string]any{
			"match_phrase_prefix": map[string]any{p.Name: strings.ToLower(v)},
		}, nil
	case TypeToken:
		return buildTokenClause(p.Name, v), nil
	case TypeURI:
		return map[string]any{"term": map[string]any{p.Name: v}}, nil
	default:
		return nil, ferrors.Invalidf("unsupported-parameter-type", "unsupported search parameter type for %q", p.Name)
	}
}

func buildDateClause(field, v string) (map[string]any, error) {
	if _, err := time.Parse(time.RFC3339, v); err != nil {
		return nil, ferrors.Invalidf("invalid-date-format", "invalid date value %q for parameter %q", v, field)
	}
	return map[string]any{
		"bool": map[string]any{
			"must": []map[string]any{
				{"range": map[string]any{field + ".start": map[string]any{"lte": v}}},
				{"range": map[string]any{field + ".end": map[string]any{"gte": v}}},
			},
		},
	}, nil
}

func buildNumberClause(field, v string) (map[string]any, error) {
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, ferrors.Invalidf("invalid-number-format", "invalid number value %q for parameter %q", v, field)
	}
	// Symmetric decimal-precision rounding: the implicit precision is
	// derived from the number of digits after the decimal point.
	precision := 0.5
	if idx := strings.IndexByte(v, '.'); idx >= 0 {
		decimals := len(v) - idx - 1
		for i := 0; i < decimals; i++ {
			precision /= 10
		}
	}
	return map[string]any{
		"bool": map[string]any{
			"must": []map[string]any{
				{"range": map[string]any{field + ".start": map[string]any{"lte": n + precision}}},
				{"range": map[string]any{field + ".end": map[string]any{"gte": n - precision}}},
			},
		},
	}, nil
}

func buildQuantityClause(field, v string) (map[string]any, error) {
	segments := strings.Split(v, "|")
	if len(segments) > 3 {
		return nil, ferrors.Invalidf("unsupported-parameter-value", "4-segment quantity value %q for parameter %q is unsupported", v, field)
	}
	for len(segments) < 3 {
		segments = append(segments, "")
	}
	valueStr, system, code := segments[0], segments[1], segments[2]

	clauses := []map[string]any{}
	if valueStr != "" {
		n, err := strconv.ParseFloat(valueStr, 64)
		if err != nil {
			return nil, ferrors.Invalidf("invalid-quantity-format", "invalid quantity value %q for parameter %q", v, field)
		}
		clauses = append(clauses,
			map[string]any{"range": map[string]any{field + ".start_value": map[string]any{"lte": n}}},
			map[string]any{"range": map[string]any{field + ".end_value": map[string]any{"gte": n}}},
		)
	}
	if system != "" {
		clauses = append(clauses, map[string]any{"term": map[string]any{field + ".start_system": system}})
	}
	if code != "" {
		clauses = append(clauses, map[string]any{"term": map[string]any{field + ".start_code": code}})
	}
	return map[string]any{"bool": map[string]any{"must": clauses}}, nil
}

func buildReferenceClause(field, v string) map[string]any {
	if idx := strings.IndexByte(v, '/'); idx >= 0 {
		return map[string]any{
			"bool": map[string]any{
				"must": []map[string]any{
					{"term": map[string]any{field + ".resource_type": v[:idx]}},
					{"term": map[string]any{field + ".id": v[idx+1:]}},
				},
			},
		}
	}
	return map[string]any{"term": map[string]any{field + ".id": v}}
}

func buildTokenClause(field, v string) map[string]any {
	if idx := strings.IndexByte(v, '|'); idx >= 0 {
		system, code := v[:idx], v[idx+1:]
		clauses := []map[string]any{{"term": map[string]any{field + ".code": code}}}
		if system != "" {
			clauses = append(clauses, map[string]any{"term": map[string]any{field + ".system": system}})
		}
		return map[string]any{"bool": map[string]any{"must": clauses}}
	}
	return map[string]any{"term": map[string]any{field + ".code": v}}
}
