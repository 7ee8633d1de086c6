package llm

import (
	"github.com/joseph-ayodele/deeds-tracker/internal/common"
)

// BuildRecordSchema returns a JSON-Schema (draft 2020-12 subset) describing one
// model-proposed transaction. Values stay loosely typed: amounts and dates arrive
// as free text and are normalized later, so the schema only rejects shapes the
// normalizer cannot read (nested objects where text is expected and the like).
func BuildRecordSchema(fields []common.FieldSpec) map[string]any {
	props := make(map[string]any, len(fields))
	for _, f := range fields {
		switch f.Type {
		case common.FieldTypeNumber:
			props[f.Name] = map[string]any{"type": []string{"number", "string", "null"}}
		case common.FieldTypeList:
			props[f.Name] = map[string]any{
				"oneOf": []any{
					map[string]any{"type": "array", "items": scalarProp()},
					scalarProp(),
				},
			}
		case common.FieldTypeDates:
			props[f.Name] = map[string]any{
				"oneOf": []any{
					map[string]any{"type": "array", "items": scalarProp()},
					map[string]any{"type": "object", "additionalProperties": scalarProp()},
					scalarProp(),
				},
			}
		default:
			props[f.Name] = scalarProp()
		}
	}

	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

func scalarProp() map[string]any {
	return map[string]any{"type": []string{"string", "number", "null"}}
}
