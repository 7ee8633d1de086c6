package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"sort"
	"strings"

	"github.com/joseph-ayodele/deeds-tracker/internal/common"
)

var reFence = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")

// StripCodeFences unwraps a ```json ... ``` block; text without fences is returned trimmed.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := reFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	// unterminated fence: drop the opening line only
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			return strings.TrimSpace(s[i+1:])
		}
	}
	return s
}

// DecodeRecords parses a model reply into its list of records. A top-level array is
// returned as is; an object contributes its "transactions" array; anything else is
// empty. Numbers decode as json.Number. The error is non-nil only when no JSON
// could be read at all.
func DecodeRecords(reply string) ([]any, error) {
	body := StripCodeFences(reply)
	doc, err := decodeJSON(body)
	if err != nil {
		// prose around the payload: retry with the outermost bracketed span
		span, ok := bracketSpan(body)
		if !ok {
			return nil, fmt.Errorf("decode model reply: %w", err)
		}
		if doc, err = decodeJSON(span); err != nil {
			return nil, fmt.Errorf("decode model reply: %w", err)
		}
	}

	switch v := doc.(type) {
	case []any:
		return v, nil
	case map[string]any:
		if arr, ok := v["transactions"].([]any); ok {
			return arr, nil
		}
	}
	return nil, nil
}

// DecodeObject parses a reply expected to hold a single JSON object.
func DecodeObject(reply string) (map[string]any, error) {
	body := StripCodeFences(reply)
	doc, err := decodeJSON(body)
	if err != nil {
		span, ok := bracketSpan(body)
		if !ok {
			return nil, fmt.Errorf("decode model reply: %w", err)
		}
		if doc, err = decodeJSON(span); err != nil {
			return nil, fmt.Errorf("decode model reply: %w", err)
		}
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode model reply: expected object, got %T", doc)
	}
	return m, nil
}

func decodeJSON(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return v, nil
}

func bracketSpan(s string) (string, bool) {
	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return "", false
	}
	closer := byte(']')
	if s[start] == '{' {
		closer = '}'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// SanitizeRecord coerces a record toward the profile schema: nested values
// and booleans where text is expected are flattened to text, and a list where a single
// number is expected keeps its first element. Returns the repaired copy and the
// names of the fields it touched.
func SanitizeRecord(rec map[string]any, fields []common.FieldSpec) (map[string]any, []string) {
	out := maps.Clone(rec)
	var changed []string
	for _, f := range fields {
		v, ok := out[f.Name]
		if !ok || v == nil || isScalar(v) {
			continue
		}
		switch f.Type {
		case common.FieldTypeNumber:
			if arr, ok := v.([]any); ok && len(arr) > 0 && isScalar(arr[0]) {
				out[f.Name] = arr[0]
			} else {
				out[f.Name] = flatten(v)
			}
		case common.FieldTypeList:
			out[f.Name] = flattenItems(v)
		case common.FieldTypeDates:
			switch t := v.(type) {
			case map[string]any:
				m := make(map[string]any, len(t))
				for k, item := range t {
					m[k] = scalarOrText(item)
				}
				out[f.Name] = m
			default:
				out[f.Name] = flattenItems(v)
			}
		default:
			out[f.Name] = flatten(v)
		}
		changed = append(changed, f.Name)
	}
	return out, changed
}

// PruneInvalid removes profile fields whose value on its own fails v. It is
// the last repair step before a record is given up.
func PruneInvalid(rec map[string]any, fields []common.FieldSpec, v *SchemaValidator) (map[string]any, []string) {
	out := maps.Clone(rec)
	var removed []string
	for _, f := range fields {
		val, ok := out[f.Name]
		if !ok {
			continue
		}
		if err := v.Validate(map[string]any{f.Name: val}); err != nil {
			delete(out, f.Name)
			removed = append(removed, f.Name)
		}
	}
	return out, removed
}

// isScalar reports values the record schema accepts as-is; booleans are
// rendered to text.
func isScalar(v any) bool {
	switch v.(type) {
	case string, json.Number, float64, nil:
		return true
	}
	return false
}

func scalarOrText(v any) any {
	if isScalar(v) {
		return v
	}
	return flatten(v)
}

// flattenItems turns any list-ish value into a []any of scalars.
func flattenItems(v any) []any {
	switch t := v.(type) {
	case []any:
		items := make([]any, 0, len(t))
		for _, item := range t {
			items = append(items, scalarOrText(item))
		}
		return items
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]any, 0, len(t))
		for _, k := range keys {
			items = append(items, scalarOrText(t[k]))
		}
		return items
	}
	return []any{scalarOrText(v)}
}

// flatten renders a nested value as a single line of text.
func flatten(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case nil:
		return ""
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := strings.TrimSpace(flatten(item)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSpace(buf.String())
}
