// Package tool contains domain types for tools discovered from upstream
// MCP servers: metadata, input schemas, namespacing, and argument
// validation.
package tool

import (
	"encoding/json"
	"sort"

	"github.com/semroute/semroute/pkg/mcp"
)

// Metadata describes one tool in the router's catalog.
type Metadata struct {
	// NamespacedName is "<prefix>.<original name>", globally unique in the
	// catalog. The prefix is the upstream's semantic prefix when configured,
	// otherwise its canonical id.
	NamespacedName string
	// OriginalName is the name the upstream itself uses.
	OriginalName string
	// Description is the free-text description from the upstream.
	Description string
	// InputSchema is preserved verbatim on the outbound path, unknown
	// fields included.
	InputSchema *Schema
	// UpstreamID is the canonical id of the owning upstream.
	UpstreamID string
	// CategoryDescription is operator-supplied embedding context. It is
	// never shown to the MCP client.
	CategoryDescription string
	// Embedding is the fixed-dimension vector assigned by the embedding
	// model; nil until scored.
	Embedding []float32
}

// HasEmbedding reports whether the tool has been scored.
func (m *Metadata) HasEmbedding() bool {
	return m.Embedding != nil
}

// ParameterNames returns the sorted property names of the input schema.
func (m *Metadata) ParameterNames() []string {
	if m.InputSchema == nil || m.InputSchema.Properties == nil {
		return nil
	}
	names := make([]string, 0, len(m.InputSchema.Properties))
	for name := range m.InputSchema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToEntry converts the metadata to its tools/list wire shape. The
// embedding and category description are never serialized.
func (m *Metadata) ToEntry() (mcp.ToolEntry, error) {
	entry := mcp.ToolEntry{
		Name:        m.NamespacedName,
		Description: m.Description,
	}
	if m.InputSchema != nil {
		raw, err := json.Marshal(m.InputSchema)
		if err != nil {
			return mcp.ToolEntry{}, err
		}
		entry.InputSchema = raw
	}
	return entry, nil
}
