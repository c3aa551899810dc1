// Package mcp provides MCP wire types and JSON-RPC codec utilities
// for the semroute router.
package mcp

import "encoding/json"

// ContentItem is one element of a tool result's content list.
// Field casing matches the MCP wire format exactly (mimeType, not mime_type).
type ContentItem struct {
	// Type is the content kind: "text", "image", or "resource".
	Type string `json:"type"`
	// Text is the text payload (type="text").
	Text string `json:"text,omitempty"`
	// Data is the base64-encoded payload (type="image").
	Data string `json:"data,omitempty"`
	// MimeType is the payload MIME type (type="image").
	MimeType string `json:"mimeType,omitempty"`
	// URI is the resource URI (type="resource").
	URI string `json:"uri,omitempty"`
}

// ToolCallResult is the MCP-shaped result of a tool invocation.
// The router returns upstream results through this shape without
// rewriting text, re-encoding images, or reinterpreting error status.
type ToolCallResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError"`
}

// TextResult builds a single-text-item success result.
func TextResult(text string) *ToolCallResult {
	return &ToolCallResult{
		Content: []ContentItem{{Type: "text", Text: text}},
	}
}

// ToolEntry is one tool in a tools/list response.
type ToolEntry struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ToolsListResult is the result payload of a tools/list response.
type ToolsListResult struct {
	Tools []ToolEntry `json:"tools"`
}
