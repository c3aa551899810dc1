package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/semroute/semroute/internal/domain/fault"
)

// ValidateArguments checks a tool call's arguments against the tool's
// stored input schema: required parameters present, no unknown
// parameters, and primitive types matching. Schemas without declared
// properties accept anything.
func ValidateArguments(args map[string]any, schema *Schema) error {
	if schema == nil || schema.Properties == nil {
		return nil
	}

	for _, required := range schema.Required {
		if _, ok := args[required]; !ok {
			return fault.Validation("Missing required parameter: %s", required).
				WithData(map[string]any{"missing_field": required})
		}
	}

	for name, value := range args {
		propRaw, ok := schema.Properties[name]
		if !ok {
			return fault.Validation("Unknown parameter: %s", name).
				WithData(map[string]any{"unknown_field": name})
		}

		var prop struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(propRaw, &prop); err != nil || prop.Type == "" {
			continue
		}
		if !matchesType(value, prop.Type) {
			return fault.Validation(
				"Invalid type for parameter '%s': expected %s, got %s",
				name, prop.Type, jsonTypeName(value),
			).WithData(map[string]any{
				"parameter":     name,
				"expected_type": prop.Type,
				"actual_type":   jsonTypeName(value),
			})
		}
	}

	return nil
}

// ValidateSearchQuery checks the search_tools query argument: present, a
// string, and not empty or whitespace.
func ValidateSearchQuery(query any, present bool) (string, error) {
	if !present {
		return "", fault.Validation("Query parameter is required").
			WithData(map[string]any{"error": "missing_query"})
	}
	s, ok := query.(string)
	if !ok {
		return "", fault.Validation("Query must be a string, got %s", jsonTypeName(query)).
			WithData(map[string]any{"error": "invalid_type", "type": jsonTypeName(query)})
	}
	if strings.TrimSpace(s) == "" {
		return "", fault.Validation("Query cannot be empty or whitespace").
			WithData(map[string]any{"error": "empty_query"})
	}
	return s, nil
}

// matchesType checks a decoded JSON value against a JSON Schema primitive
// type name. Booleans are never numbers, and "integer" additionally
// requires an integral value. Unknown type names accept any value.
func matchesType(value any, expected string) bool {
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "null":
		return value == nil
	case "number":
		return asFloat(value) != nil
	case "integer":
		f := asFloat(value)
		return f != nil && *f == math.Trunc(*f)
	default:
		return true
	}
}

// asFloat extracts a numeric value. JSON decoding yields float64, but
// programmatic callers may pass Go integer types or json.Number.
func asFloat(value any) *float64 {
	switch v := value.(type) {
	case float64:
		return &v
	case float32:
		f := float64(v)
		return &f
	case int:
		f := float64(v)
		return &f
	case int64:
		f := float64(v)
		return &f
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// jsonTypeName names a decoded JSON value's type in schema vocabulary.
func jsonTypeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64, float32, int, int64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}
