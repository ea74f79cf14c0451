package search

// MappingFromSearchParameters derives an OpenSearch mapping from loaded
// SearchParameter definitions, one typed field per parameter keyed by
// its code, per spec §4.3's seven type rules.
func MappingFromSearchParameters(params []SearchParameter) map[string]any {
	properties := map[string]any{
		"tenant":        map[string]any{"type": "keyword"},
		"project":       map[string]any{"type": "keyword"},
		"resource_type": map[string]any{"type": "keyword"},
		"resource_id":   map[string]any{"type": "keyword"},
		"version_id":    map[string]any{"type": "keyword"},
	}

	for _, p := range params {
		properties[p.Code] = fieldMapping(p.Type)
	}

	return map[string]any{"properties": properties}
}

func fieldMapping(t ParamType) map[string]any {
	switch t {
	case TypeNumber:
		return map[string]any{
			"properties": map[string]any{
				"start": map[string]any{"type": "long"},
				"end":   map[string]any{"type": "long"},
			},
		}
	case TypeDate:
		return map[string]any{
			"properties": map[string]any{
				"start": map[string]any{"type": "date"},
				"end":   map[string]any{"type": "date"},
			},
		}
	case TypeToken:
		return map[string]any{
			"properties": map[string]any{
				"system":  map[string]any{"type": "keyword"},
				"code":    map[string]any{"type": "keyword"},
				"display": map[string]any{"type": "text"},
			},
		}
	case TypeReference:
		return map[string]any{
			"properties": map[string]any{
				"resource_type": map[string]any{"type": "keyword"},
				"id":            map[string]any{"type": "keyword"},
				"uri":           map[string]any{"type": "keyword"},
			},
		}
	case TypeQuantity:
		return map[string]any{
			"properties": map[string]any{
				"start_value":  map[string]any{"type": "double"},
				"end_value":    map[string]any{"type": "double"},
				"start_system": map[string]any{"type": "keyword"},
				"end_system":   map[string]any{"type": "keyword"},
				"start_code":   map[string]any{"type": "keyword"},
				"end_code":     map[string]any{"type": "keyword"},
			},
		}
	case TypeString:
		return map[string]any{
			"type":     "text",
			"analyzer": "case_insensitive_prefix",
		}
	case TypeURI:
		return map[string]any{"type": "keyword"}
	default:
		return map[string]any{"type": "keyword"}
	}
}
