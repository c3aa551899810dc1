package tool

import "encoding/json"

// knownSchemaFields are the JSON Schema keys modeled explicitly; anything
// else round-trips through Extra untouched.
var knownSchemaFields = map[string]struct{}{
	"type":                 {},
	"properties":           {},
	"required":             {},
	"additionalProperties": {},
	"description":          {},
	"items":                {},
	"enum":                 {},
	"default":              {},
}

// Schema is a JSON-Schema-shaped description of a tool's input object.
// Unknown fields are preserved verbatim so the schema forwarded to the
// MCP client carries every field the upstream advertised. The forwarded
// bytes are a re-encoding, not a copy: keys come out sorted, whitespace
// is compacted, and "type" is emitted as "object" when the upstream
// omitted it. Wire casing follows the JSON Schema spelling
// (additionalProperties).
type Schema struct {
	Type                 string
	Properties           map[string]json.RawMessage
	Required             []string
	AdditionalProperties json.RawMessage
	Description          string
	Items                json.RawMessage
	Enum                 json.RawMessage
	Default              json.RawMessage
	Extra                map[string]json.RawMessage
}

// UnmarshalJSON decodes a schema, defaulting type to "object" when absent
// and collecting unmodeled fields into Extra.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	s.Type = "object"
	if raw, ok := fields["type"]; ok {
		if err := json.Unmarshal(raw, &s.Type); err != nil {
			return err
		}
	}
	if raw, ok := fields["properties"]; ok {
		if err := json.Unmarshal(raw, &s.Properties); err != nil {
			return err
		}
		if s.Properties == nil {
			s.Properties = map[string]json.RawMessage{}
		}
	}
	if raw, ok := fields["required"]; ok {
		if err := json.Unmarshal(raw, &s.Required); err != nil {
			return err
		}
		if s.Required == nil {
			s.Required = []string{}
		}
	}
	if raw, ok := fields["additionalProperties"]; ok {
		s.AdditionalProperties = raw
	}
	if raw, ok := fields["description"]; ok {
		if err := json.Unmarshal(raw, &s.Description); err != nil {
			return err
		}
	}
	if raw, ok := fields["items"]; ok {
		s.Items = raw
	}
	if raw, ok := fields["enum"]; ok {
		s.Enum = raw
	}
	if raw, ok := fields["default"]; ok {
		s.Default = raw
	}

	for key, raw := range fields {
		if _, known := knownSchemaFields[key]; known {
			continue
		}
		if s.Extra == nil {
			s.Extra = map[string]json.RawMessage{}
		}
		s.Extra[key] = raw
	}
	return nil
}

// MarshalJSON encodes the schema back to its wire shape, emitting only
// the sections that were present plus all preserved unknown fields.
func (s *Schema) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, 8+len(s.Extra))

	typeRaw, err := json.Marshal(s.Type)
	if err != nil {
		return nil, err
	}
	fields["type"] = typeRaw

	if s.Properties != nil {
		raw, err := json.Marshal(s.Properties)
		if err != nil {
			return nil, err
		}
		fields["properties"] = raw
	}
	if s.Required != nil {
		raw, err := json.Marshal(s.Required)
		if err != nil {
			return nil, err
		}
		fields["required"] = raw
	}
	if s.AdditionalProperties != nil {
		fields["additionalProperties"] = s.AdditionalProperties
	}
	if s.Description != "" {
		raw, err := json.Marshal(s.Description)
		if err != nil {
			return nil, err
		}
		fields["description"] = raw
	}
	if s.Items != nil {
		fields["items"] = s.Items
	}
	if s.Enum != nil {
		fields["enum"] = s.Enum
	}
	if s.Default != nil {
		fields["default"] = s.Default
	}
	for key, raw := range s.Extra {
		fields[key] = raw
	}

	return json.Marshal(fields)
}

// SchemaFromJSON parses raw schema bytes as received from an upstream.
// Nil or empty input yields a bare object schema.
func SchemaFromJSON(raw json.RawMessage) (*Schema, error) {
	s := &Schema{Type: "object"}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, err
	}
	return s, nil
}
