package embeddings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/semroute/semroute/internal/domain/tool"
	"github.com/semroute/semroute/internal/logging"
)

// Service embeds search queries and tool catalogs through a Provider,
// consulting the optional on-disk cache first. Cache failures are logged
// and never fail the embedding.
type Service struct {
	provider Provider
	cache    *Cache
	model    string
	logger   *slog.Logger
}

// NewService wires a provider with an optional cache. The model name
// keys cache entries; cache may be nil to disable caching.
func NewService(provider Provider, cache *Cache, model string, logger *slog.Logger) *Service {
	return &Service{
		provider: provider,
		cache:    cache,
		model:    model,
		logger:   logging.For(logger, "embeddings"),
	}
}

// Dimension returns the provider's vector dimension.
func (s *Service) Dimension() int {
	return s.provider.Dimension()
}

// EmbedQuery embeds one query string. Errors on empty or whitespace text.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	if s.cache != nil {
		if vector, ok := s.cache.Get(s.model, "query|"+text); ok {
			return vector, nil
		}
	}

	vector, err := s.provider.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	s.store("query|"+text, vector)
	return vector, nil
}

// EmbedTools scores every tool and stores the vector into its Embedding
// field. Texts already cached skip the model; the rest are embedded in
// one batch.
func (s *Service) EmbedTools(ctx context.Context, tools []*tool.Metadata) error {
	if len(tools) == 0 {
		return nil
	}

	texts := make([]string, len(tools))
	var missing []int
	for i, t := range tools {
		texts[i] = EmbeddingText(t)
		if strings.TrimSpace(texts[i]) == "" {
			return fmt.Errorf("%w: tool %s produced empty embedding text", ErrEmptyInput, t.NamespacedName)
		}
		if s.cache != nil {
			if vector, ok := s.cache.Get(s.model, texts[i]); ok {
				tools[i].Embedding = vector
				continue
			}
		}
		missing = append(missing, i)
	}

	if len(missing) == 0 {
		return nil
	}

	batch := make([]string, len(missing))
	for j, i := range missing {
		batch[j] = texts[i]
	}
	vectors, err := s.provider.EmbedDocuments(ctx, batch)
	if err != nil {
		return err
	}
	if len(vectors) != len(missing) {
		return fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vectors), len(missing))
	}

	for j, i := range missing {
		tools[i].Embedding = vectors[j]
		s.store(texts[i], vectors[j])
	}
	return nil
}

// Close releases provider and cache resources.
func (s *Service) Close() error {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn("failed to close embedding cache", "error", err)
		}
	}
	return s.provider.Close()
}

func (s *Service) store(text string, vector []float32) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(s.model, text, vector); err != nil {
		s.logger.Warn("failed to cache embedding", "error", err)
	}
}
