package embeddings

import (
	"strings"

	"github.com/semroute/semroute/internal/domain/tool"
)

// EmbeddingText composes the text a tool is embedded under:
// original name | description [| category description]
// [| "Parameters: " + comma-joined property names], emitting only the
// sections with content.
func EmbeddingText(t *tool.Metadata) string {
	parts := []string{t.OriginalName}

	if t.Description != "" {
		parts = append(parts, t.Description)
	}
	if t.CategoryDescription != "" {
		parts = append(parts, t.CategoryDescription)
	}
	if names := t.ParameterNames(); len(names) > 0 {
		parts = append(parts, "Parameters: "+strings.Join(names, ", "))
	}

	return strings.Join(parts, " | ")
}
