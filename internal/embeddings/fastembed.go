//go:build cgo

package embeddings

import (
	"context"
	"fmt"
	"strings"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// FastEmbedConfig holds configuration for the local ONNX embedding model.
type FastEmbedConfig struct {
	// Model is the embedding model name. Defaults to BAAI/bge-small-en-v1.5
	// (384 dimensions).
	Model string
	// CacheDir is where downloaded model files live.
	CacheDir string
	// MaxLength is the maximum input sequence length. Defaults to 512.
	MaxLength int
}

// modelMapping maps friendly model names to fastembed constants.
var modelMapping = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
}

// modelDimensions maps fastembed models to their embedding dimensions.
var modelDimensions = map[fastembed.EmbeddingModel]int{
	fastembed.BGESmallENV15: 384,
	fastembed.BGESmallEN:    384,
	fastembed.AllMiniLML6V2: 384,
}

// FastEmbedProvider generates embeddings with a local ONNX model.
type FastEmbedProvider struct {
	model     *fastembed.FlagEmbedding
	modelName string
	dimension int
	mu        sync.RWMutex
}

// NewFastEmbedProvider loads the model, downloading it on first use. This
// is the provider's one-shot initialization.
func NewFastEmbedProvider(cfg FastEmbedConfig) (*FastEmbedProvider, error) {
	name := cfg.Model
	if name == "" {
		name = "BAAI/bge-small-en-v1.5"
	}
	model, ok := modelMapping[name]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported model %q", ErrInvalidConfig, name)
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = "local_cache"
	}
	maxLength := cfg.MaxLength
	if maxLength == 0 {
		maxLength = 512
	}
	showProgress := false

	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing fastembed: %w", err)
	}

	return &FastEmbedProvider{
		model:     flagEmbed,
		modelName: name,
		dimension: modelDimensions[model],
	}, nil
}

// EmbedQuery embeds a single query string with the model's query prefix.
func (p *FastEmbedProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	embedding, err := p.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return embedding, nil
}

// EmbedDocuments embeds a batch of document texts with the model's
// passage prefix.
func (p *FastEmbedProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w (index %d)", ErrEmptyInput, i)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	embeddings, err := p.model.PassageEmbed(texts, 256)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return embeddings, nil
}

// Dimension returns the embedding dimension for the loaded model.
func (p *FastEmbedProvider) Dimension() int {
	return p.dimension
}

// ModelName returns the loaded model's name.
func (p *FastEmbedProvider) ModelName() string {
	return p.modelName
}

// Close releases the ONNX runtime resources.
func (p *FastEmbedProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model != nil {
		return p.model.Destroy()
	}
	return nil
}

var _ Provider = (*FastEmbedProvider)(nil)
