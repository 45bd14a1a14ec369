package llm

// BuildFieldsJSONSchema describes the post-processed fields object:
// every fixed key present, each a string or null, nothing else.
func BuildFieldsJSONSchema(fieldNames []string) map[string]any {
	props := make(map[string]any, len(fieldNames))
	required := make([]any, 0, len(fieldNames))
	for _, n := range fieldNames {
		props[n] = map[string]any{"type": []any{"string", "null"}}
		required = append(required, n)
	}
	return map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// BuildSubmittalsJSONSchema describes the normalized submittal list.
func BuildSubmittalsJSONSchema() map[string]any {
	return map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"item":   map[string]any{"type": "string"},
				"page":   map[string]any{"type": []any{"integer", "null"}, "minimum": 1},
				"reason": map[string]any{"type": "string"},
			},
			"required":             []any{"item", "page", "reason"},
			"additionalProperties": false,
		},
	}
}
