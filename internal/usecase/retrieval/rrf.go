package retrieval

import (
	"sort"

	"github.com/kailas-cloud/lexrag/internal/domain"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// Default source weights.
const (
	DefaultVectorWeight  = 0.6
	DefaultLexicalWeight = 0.4
)

// Weights scale each source's RRF contribution.
type Weights struct {
	Vector  float64
	Lexical float64
}

// fuseRRF merges vector and lexical results via weighted Reciprocal Rank Fusion.
// contribution = weight / (rrfK + rank), rank being the 1-based position in
// its own list. Items are deduplicated by chunk id; the first-seen chunk is
// kept, vector list first. Fused scores are divided by the best attainable
// score (both lists at rank 1) so they fall in [0, 1]. Items scoring at least
// threshold survive, at most count of them, ties keeping first-seen order.
func fuseRRF(vector, lexical []domain.ScoredResult, w Weights, threshold float64, count int) []domain.RetrievedChunk {
	type scored struct {
		chunk domain.Chunk
		score float64
	}

	merged := make(map[string]*scored, len(vector)+len(lexical))
	order := make([]*scored, 0, len(vector)+len(lexical))

	add := func(list []domain.ScoredResult, weight float64) {
		for pos := range list {
			c := list[pos].Chunk
			s := weight / float64(rrfK+pos+1)
			if existing, ok := merged[c.ID]; ok {
				existing.score += s
				continue
			}
			item := &scored{chunk: c, score: s}
			merged[c.ID] = item
			order = append(order, item)
		}
	}
	add(vector, w.Vector)
	add(lexical, w.Lexical)

	if best := (w.Vector + w.Lexical) / float64(rrfK+1); best > 0 {
		for _, item := range order {
			item.score /= best
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].score > order[j].score
	})

	results := make([]domain.RetrievedChunk, 0, min(len(order), max(count, 0)))
	for _, item := range order {
		if len(results) >= count {
			break
		}
		if item.score < threshold {
			break
		}
		results = append(results, domain.RetrievedChunk{Chunk: item.chunk, Score: item.score})
	}
	return results
}
