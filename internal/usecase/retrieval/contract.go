package retrieval

import (
	"context"

	"github.com/kailas-cloud/lexrag/internal/domain"
	"github.com/kailas-cloud/lexrag/internal/domain/search/filter"
)

// VectorSearcher finds chunks by embedding similarity.
type VectorSearcher interface {
	Search(ctx context.Context, embedding []float32, threshold float64, count int, f filter.Filter) ([]domain.ScoredResult, error)
}

// LexicalSearcher finds chunks by keyword relevance.
type LexicalSearcher interface {
	Search(ctx context.Context, query string, count int, f filter.Filter) ([]domain.ScoredResult, error)
}

// Embedder vectorizes the query. Callers pass the cache-wrapped embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
