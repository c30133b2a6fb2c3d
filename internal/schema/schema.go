// Package schema validates untyped tool and job inputs against declared
// shapes, applying defaults for absent optional fields.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// FieldType is the set of value types a field may declare.
type FieldType string

const (
	String      FieldType = "string"
	Number      FieldType = "number"
	Bool        FieldType = "boolean"
	StringArray FieldType = "string[]"
	NumberArray FieldType = "number[]"
	Object      FieldType = "object"
)

// Field declares the shape of one input field.
type Field struct {
	Type     FieldType
	Required bool
	Enum     []string // valid values, String fields only
	Default  any      // applied when an optional field is absent
}

// Shape maps field names to their declarations.
type Shape map[string]Field

// Violation describes one failed field check.
type Violation struct {
	Field  string
	Reason string
}

// ValidationError enumerates every violated field.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = fmt.Sprintf("%s: %s", v.Field, v.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}

// Validate checks input against the shape and returns a normalized map:
// every present field type-checked, every absent optional field with a
// declared default filled in. Types are never coerced. A nil input is
// treated as an empty map. Validating the returned map again yields an
// equal map.
func (s Shape) Validate(input map[string]any) (map[string]any, error) {
	if input == nil {
		input = map[string]any{}
	}

	var violations []Violation
	out := make(map[string]any, len(s))

	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field := s[name]
		value, present := input[name]

		if !present {
			if field.Required {
				violations = append(violations, Violation{Field: name, Reason: "missing"})
				continue
			}
			if field.Default != nil {
				out[name] = field.Default
			}
			continue
		}

		normalized, err := checkType(field, value)
		if err != "" {
			violations = append(violations, Violation{Field: name, Reason: err})
			continue
		}
		out[name] = normalized
	}

	for name := range input {
		if _, declared := s[name]; !declared {
			violations = append(violations, Violation{Field: name, Reason: "unknown field"})
		}
	}

	if len(violations) > 0 {
		sort.Slice(violations, func(i, j int) bool { return violations[i].Field < violations[j].Field })
		return nil, &ValidationError{Violations: violations}
	}
	return out, nil
}

// checkType validates a present value against its declared type.
// Returns the normalized value, or a non-empty reason on failure.
func checkType(field Field, value any) (any, string) {
	switch field.Type {
	case String:
		str, ok := value.(string)
		if !ok {
			return nil, fmt.Sprintf("expected string, got %T", value)
		}
		if len(field.Enum) > 0 && !contains(field.Enum, str) {
			return nil, fmt.Sprintf("%q not in enum [%s]", str, strings.Join(field.Enum, ", "))
		}
		return str, ""

	case Number:
		n, ok := asNumber(value)
		if !ok {
			return nil, fmt.Sprintf("expected number, got %T", value)
		}
		return n, ""

	case Bool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Sprintf("expected boolean, got %T", value)
		}
		return b, ""

	case StringArray:
		items, ok := asSlice(value)
		if !ok {
			return nil, fmt.Sprintf("expected string array, got %T", value)
		}
		strs := make([]string, len(items))
		for i, item := range items {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Sprintf("element %d: expected string, got %T", i, item)
			}
			strs[i] = str
		}
		return strs, ""

	case NumberArray:
		items, ok := asSlice(value)
		if !ok {
			return nil, fmt.Sprintf("expected number array, got %T", value)
		}
		nums := make([]float64, len(items))
		for i, item := range items {
			n, ok := asNumber(item)
			if !ok {
				return nil, fmt.Sprintf("element %d: expected number, got %T", i, item)
			}
			nums[i] = n
		}
		return nums, ""

	case Object:
		m, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Sprintf("expected object, got %T", value)
		}
		return m, ""
	}

	return nil, fmt.Sprintf("unknown field type %q", field.Type)
}

// asNumber accepts the numeric representations JSON decoding and Go
// callers produce. Strings and booleans are never coerced.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []float64:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	}
	return nil, false
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}

// JSONSchema renders the shape as a JSON Schema object for the model
// service tool catalogue.
func (s Shape) JSONSchema() map[string]any {
	properties := make(map[string]any, len(s))
	var required []string

	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field := s[name]
		properties[name] = fieldSchema(field)
		if field.Required {
			required = append(required, name)
		}
	}

	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func fieldSchema(field Field) map[string]any {
	switch field.Type {
	case StringArray:
		return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	case NumberArray:
		return map[string]any{"type": "array", "items": map[string]any{"type": "number"}}
	case Object:
		return map[string]any{"type": "object"}
	}

	out := map[string]any{"type": string(field.Type)}
	if len(field.Enum) > 0 {
		enum := make([]any, len(field.Enum))
		for i, e := range field.Enum {
			enum[i] = e
		}
		out["enum"] = enum
	}
	return out
}
