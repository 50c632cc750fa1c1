package cache

import "sync/atomic"

// TypeStats counts lookups of one kind. HitRate is a percentage.
type TypeStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Total   int64   `json:"total_requests"`
	HitRate float64 `json:"hit_rate"`
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Embedding TypeStats `json:"embedding"`
	Answer    TypeStats `json:"answer"`
	Overall   TypeStats `json:"overall"`
}

type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (c *counters) snapshot() TypeStats {
	return newTypeStats(c.hits.Load(), c.misses.Load())
}

func (c *counters) reset() {
	c.hits.Store(0)
	c.misses.Store(0)
}

func newTypeStats(hits, misses int64) TypeStats {
	s := TypeStats{Hits: hits, Misses: misses, Total: hits + misses}
	if s.Total > 0 {
		s.HitRate = float64(hits) / float64(s.Total) * 100
	}
	return s
}
