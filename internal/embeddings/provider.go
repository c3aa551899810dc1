// Package embeddings provides embedding generation for tool metadata and
// search queries, backed by a local ONNX model with an optional on-disk
// cache.
package embeddings

import (
	"context"
	"errors"
)

// Sentinel errors for embedding operations.
var (
	// ErrEmptyInput is returned when a text to embed is empty or
	// whitespace.
	ErrEmptyInput = errors.New("embeddings: text cannot be empty")
	// ErrEmbeddingFailed wraps model-level failures.
	ErrEmbeddingFailed = errors.New("embeddings: generation failed")
	// ErrInvalidConfig is returned for unsupported models.
	ErrInvalidConfig = errors.New("embeddings: invalid configuration")
)

// Provider generates fixed-dimension embedding vectors. Initialization is
// one-shot and happens in the constructor; implementations are safe for
// concurrent use.
type Provider interface {
	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// EmbedDocuments embeds a batch of document texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension returns the vector dimension the provider produces.
	Dimension() int
	// Close releases model resources.
	Close() error
}
