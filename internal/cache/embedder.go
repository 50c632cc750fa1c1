package cache

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/lexrag/internal/domain"
)

// Embedder serves query embeddings through the cache.
type Embedder struct {
	inner domain.Embedder
	cache *Cache
}

var _ domain.Embedder = (*Embedder)(nil)

// NewEmbedder creates a caching decorator around inner.
func NewEmbedder(inner domain.Embedder, c *Cache) *Embedder {
	return &Embedder{inner: inner, cache: c}
}

// Embed returns a cached embedding or calls the inner embedder.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	var usage domain.EmbeddingResult
	vec, _, err := e.cache.GetOrComputeEmbedding(ctx, text, func(ctx context.Context, t string) ([]float32, error) {
		res, err := e.inner.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		usage = res
		return res.Embedding, nil
	})
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    vec,
		PromptTokens: usage.PromptTokens,
		TotalTokens:  usage.TotalTokens,
	}, nil
}

// HealthCheck forwards to the inner embedder when it supports health checks.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
