// Package vector serves dense similarity search over the chunk index.
package vector

import (
	"context"
	"fmt"
	"sort"

	"github.com/kailas-cloud/lexrag/internal/db"
	"github.com/kailas-cloud/lexrag/internal/domain"
	"github.com/kailas-cloud/lexrag/internal/domain/search/filter"
	"github.com/kailas-cloud/lexrag/internal/repository/chunkstore"
)

// store is the consumer interface for vector search (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo runs KNN queries and maps hits to scored chunks.
type Repo struct {
	store store
}

// New creates a vector search repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Search returns up to count chunks whose cosine similarity to embedding is
// at least threshold, most similar first, ranked from 1.
// The filter is applied as given; an empty filter searches every language.
func (r *Repo) Search(
	ctx context.Context, embedding []float32, threshold float64, count int, f filter.Filter,
) ([]domain.ScoredResult, error) {
	if count <= 0 {
		return nil, nil
	}

	q := &db.KNNQuery{
		IndexName:    chunkstore.IndexName,
		Filter:       f,
		Vector:       embedding,
		K:            count,
		ReturnFields: append(chunkstore.ReturnFields(), db.FieldVectorScore),
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w: %w", err, domain.ErrRetrieval)
	}
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	entries := sr.Entries
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })

	results := make([]domain.ScoredResult, 0, len(entries))
	for i := range entries {
		if entries[i].Score < threshold {
			break
		}
		c, err := chunkstore.FromEntry(&entries[i])
		if err != nil {
			return nil, fmt.Errorf("vector search: %w: %w", err, domain.ErrRetrieval)
		}
		results = append(results, domain.ScoredResult{Chunk: c, Score: entries[i].Score, Rank: len(results) + 1})
		if len(results) == count {
			break
		}
	}
	return results, nil
}
