// Package lexical serves keyword search over the chunk index: BM25-style
// ranking where the backend supports it, substring matching otherwise.
package lexical

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lexrag/internal/db"
	"github.com/kailas-cloud/lexrag/internal/domain"
	"github.com/kailas-cloud/lexrag/internal/domain/search/filter"
	"github.com/kailas-cloud/lexrag/internal/domain/search/mode"
	"github.com/kailas-cloud/lexrag/internal/metrics"
	"github.com/kailas-cloud/lexrag/internal/repository/chunkstore"
)

// FallbackScore is the neutral score given to every substring match.
const FallbackScore = 0.5

// store is the consumer interface for lexical search (ISP).
type store interface {
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SearchContains(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// ResolveRanked turns the configured mode into the ranked/substring decision.
// Auto asks the backend; the answer holds for the life of the process, so a
// failed capability check is returned instead of being read as unsupported.
func ResolveRanked(ctx context.Context, m mode.Lexical, c db.TextCapability) (bool, error) {
	switch m {
	case mode.Ranked:
		return true, nil
	case mode.Substring:
		return false, nil
	default:
		ok, err := c.SupportsTextSearch(ctx)
		if err != nil {
			return false, fmt.Errorf("resolve lexical mode: %w", err)
		}
		return ok, nil
	}
}

// Repo runs lexical queries on the path chosen at construction.
type Repo struct {
	store  store
	ranked bool
	logger *zap.Logger
}

// New creates a lexical search repository. ranked selects BM25-style ranking;
// otherwise every query runs in degraded substring mode.
func New(s store, ranked bool, logger *zap.Logger) *Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{store: s, ranked: ranked, logger: logger}
}

// Ranked reports whether queries are ranked.
func (r *Repo) Ranked() bool {
	return r.ranked
}

// Search returns up to count chunks matching query, best first, ranked from 1.
// A ranked backend error is returned as is; it never switches to substring mode.
func (r *Repo) Search(ctx context.Context, query string, count int, f filter.Filter) ([]domain.ScoredResult, error) {
	if count <= 0 {
		return nil, nil
	}

	q := &db.TextQuery{
		IndexName:    chunkstore.IndexName,
		KeyPrefix:    chunkstore.KeyPrefix,
		Query:        query,
		Filter:       f,
		TopK:         count,
		ReturnFields: chunkstore.ReturnFields(),
	}

	if r.ranked {
		sr, err := r.store.SearchBM25(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("lexical search: %w: %w", err, domain.ErrRetrieval)
		}
		return toResults(sr, count, nil)
	}

	r.logger.Warn("Lexical search in degraded substring mode", zap.Int("count", count))
	metrics.LexicalFallbackTotal.Inc()

	sr, err := r.store.SearchContains(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("lexical substring search: %w: %w", err, domain.ErrRetrieval)
	}
	score := FallbackScore
	return toResults(sr, count, &score)
}

// toResults maps entries in store order. fixed overrides the entry score.
func toResults(sr *db.SearchResult, count int, fixed *float64) ([]domain.ScoredResult, error) {
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}
	n := min(len(sr.Entries), count)
	results := make([]domain.ScoredResult, 0, n)
	for i := 0; i < n; i++ {
		e := &sr.Entries[i]
		c, err := chunkstore.FromEntry(e)
		if err != nil {
			return nil, fmt.Errorf("lexical search: %w: %w", err, domain.ErrRetrieval)
		}
		score := e.Score
		if fixed != nil {
			score = *fixed
		}
		results = append(results, domain.ScoredResult{Chunk: c, Score: score, Rank: i + 1})
	}
	return results, nil
}
