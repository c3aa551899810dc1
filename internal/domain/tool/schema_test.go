package tool

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestSchema_RoundTripPreservesUnknownFields(t *testing.T) {
	t.Parallel()

	input := []byte(`{
		"type": "object",
		"properties": {"url": {"type": "string"}},
		"required": ["url"],
		"additionalProperties": false,
		"x-vendor-hint": {"nested": [1, 2, 3]},
		"$schema": "http://json-schema.org/draft-07/schema#"
	}`)

	schema, err := SchemaFromJSON(input)
	if err != nil {
		t.Fatalf("SchemaFromJSON: %v", err)
	}

	out, err := json.Marshal(schema)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got, want map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("re-decoding output: %v", err)
	}
	if err := json.Unmarshal(input, &want); err != nil {
		t.Fatalf("re-decoding input: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %v\nwant %v", got, want)
	}
}

func TestSchema_AdditionalPropertiesSpelling(t *testing.T) {
	t.Parallel()

	schema, err := SchemaFromJSON([]byte(`{"type": "object", "additionalProperties": true}`))
	if err != nil {
		t.Fatalf("SchemaFromJSON: %v", err)
	}

	out, err := json.Marshal(schema)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(out, &fields); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if _, ok := fields["additionalProperties"]; !ok {
		t.Errorf("output %s lacks additionalProperties key", out)
	}
	if _, ok := fields["additional_properties"]; ok {
		t.Errorf("output %s must not contain snake_case spelling", out)
	}
}

func TestSchema_TypeDefaultsToObject(t *testing.T) {
	t.Parallel()

	schema, err := SchemaFromJSON([]byte(`{"properties": {}}`))
	if err != nil {
		t.Fatalf("SchemaFromJSON: %v", err)
	}
	if schema.Type != "object" {
		t.Errorf("Type = %q, want object", schema.Type)
	}
	if schema.Properties == nil {
		t.Error("Properties should be non-nil when present in the input")
	}
}

func TestSchema_NilInput(t *testing.T) {
	t.Parallel()

	schema, err := SchemaFromJSON(nil)
	if err != nil {
		t.Fatalf("SchemaFromJSON(nil): %v", err)
	}
	if schema.Type != "object" {
		t.Errorf("Type = %q, want object", schema.Type)
	}
	if schema.Properties != nil {
		t.Error("Properties should stay nil for absent input")
	}
}

func TestSchema_OmitsAbsentSections(t *testing.T) {
	t.Parallel()

	schema, err := SchemaFromJSON([]byte(`{"type": "object"}`))
	if err != nil {
		t.Fatalf("SchemaFromJSON: %v", err)
	}
	out, err := json.Marshal(schema)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(out, &fields); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	for _, key := range []string{"properties", "required", "items", "enum", "default", "description"} {
		if _, ok := fields[key]; ok {
			t.Errorf("output should omit absent section %q", key)
		}
	}
}
