package embeddings

import (
	"testing"

	"github.com/semroute/semroute/internal/domain/tool"
)

func metadataFor(t *testing.T, schemaJSON string) *tool.Metadata {
	t.Helper()
	var schema *tool.Schema
	if schemaJSON != "" {
		s, err := tool.SchemaFromJSON([]byte(schemaJSON))
		if err != nil {
			t.Fatalf("SchemaFromJSON: %v", err)
		}
		schema = s
	}
	return &tool.Metadata{
		NamespacedName: "browser.navigate",
		OriginalName:   "navigate",
		UpstreamID:     "playwright",
		InputSchema:    schema,
	}
}

func TestEmbeddingText_AllSections(t *testing.T) {
	t.Parallel()

	m := metadataFor(t, `{"type":"object","properties":{"url":{"type":"string"}}}`)
	m.Description = "Navigate to a URL"
	m.CategoryDescription = "Web browser automation"

	want := "navigate | Navigate to a URL | Web browser automation | Parameters: url"
	if got := EmbeddingText(m); got != want {
		t.Errorf("EmbeddingText = %q, want %q", got, want)
	}
}

func TestEmbeddingText_OnlyPresentSections(t *testing.T) {
	t.Parallel()

	m := metadataFor(t, "")
	if got := EmbeddingText(m); got != "navigate" {
		t.Errorf("EmbeddingText = %q, want just the name", got)
	}

	m.Description = "Navigate to a URL"
	if got := EmbeddingText(m); got != "navigate | Navigate to a URL" {
		t.Errorf("EmbeddingText = %q", got)
	}
}

func TestEmbeddingText_ParameterNamesSorted(t *testing.T) {
	t.Parallel()

	m := metadataFor(t, `{"type":"object","properties":{"zeta":{},"alpha":{},"mid":{}}}`)
	want := "navigate | Parameters: alpha, mid, zeta"
	if got := EmbeddingText(m); got != want {
		t.Errorf("EmbeddingText = %q, want %q", got, want)
	}
}
