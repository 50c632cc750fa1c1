// Package memory is an in-process chunk index with the same hash and search
// contracts as the Redis store: cosine KNN, Okapi BM25 and substring search.
// It backs local runs without Redis and the retrieval tests.
package memory

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/kailas-cloud/lexrag/internal/db"
	"github.com/kailas-cloud/lexrag/internal/domain"
)

// Compile-time check: Index serves both search paths.
var _ db.Searcher = (*Index)(nil)

// Okapi BM25 parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

type entry struct {
	fields map[string]string
	vector []float32
	terms  map[string]int
	length int
}

// Index holds chunk hashes keyed like the Redis store.
type Index struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	df       map[string]int
	totalLen int
	ranked   bool
}

// Option configures an Index.
type Option func(*Index)

// WithoutTextSearch makes the index report no ranked text search, so lexical
// queries take the substring path.
func WithoutTextSearch() Option {
	return func(ix *Index) { ix.ranked = false }
}

// New creates an empty index.
func New(opts ...Option) *Index {
	ix := &Index{
		entries: make(map[string]*entry),
		df:      make(map[string]int),
		ranked:  true,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Len returns the number of stored chunks.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// HSetMulti stores chunk hashes. The vector field is decoded from its
// little-endian float32 encoding. Existing keys are replaced.
func (ix *Index) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	parsed := make([]*entry, len(items))
	for i, item := range items {
		e := &entry{fields: make(map[string]string, len(item.Fields))}
		for k, v := range item.Fields {
			if k == db.FieldVector {
				vec, err := decodeVector(v)
				if err != nil {
					return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("%s: %w", item.Key, err)}
				}
				e.vector = vec
				continue
			}
			e.fields[k] = v
		}
		e.terms, e.length = termFrequencies(e.fields[db.FieldContent])
		parsed[i] = e
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	for i, item := range items {
		if old, ok := ix.entries[item.Key]; ok {
			ix.unindex(old)
		}
		ix.entries[item.Key] = parsed[i]
		ix.totalLen += parsed[i].length
		for t := range parsed[i].terms {
			ix.df[t]++
		}
	}
	return nil
}

func (ix *Index) unindex(e *entry) {
	ix.totalLen -= e.length
	for t := range e.terms {
		if ix.df[t]--; ix.df[t] <= 0 {
			delete(ix.df, t)
		}
	}
}

// Ping always succeeds; the index lives in process.
func (ix *Index) Ping(context.Context) error {
	return nil
}

// SupportsTextSearch reports whether BM25 ranking is enabled.
func (ix *Index) SupportsTextSearch(context.Context) (bool, error) {
	return ix.ranked, nil
}

// SearchKNN scores every filtered chunk by cosine similarity and keeps the K closest.
func (ix *Index) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	tags := q.Filter.Tags()
	var hits []db.SearchEntry
	for key, e := range ix.entries {
		if e.vector == nil || !matchesTags(e.fields, tags) {
			continue
		}
		sim, err := domain.CosineSimilarity(q.Vector, e.vector)
		if err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%s: %w", key, err)}
		}
		hits = append(hits, db.SearchEntry{Key: key, Score: sim, Fields: copyFields(e.fields)})
	}
	return topK(hits, q.K), nil
}

// SearchBM25 ranks filtered chunks with Okapi BM25 over the query words.
// Chunks sharing no word with the query are left out.
func (ix *Index) SearchBM25(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if q.TopK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}
	terms, _ := termFrequencies(q.Query)
	if len(terms) == 0 {
		return &db.SearchResult{}, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := float64(len(ix.entries))
	if n == 0 {
		return &db.SearchResult{}, nil
	}
	avgLen := float64(ix.totalLen) / n

	tags := q.Filter.Tags()
	var hits []db.SearchEntry
	for key, e := range ix.entries {
		if !matchesTags(e.fields, tags) {
			continue
		}
		var score float64
		for t := range terms {
			tf := float64(e.terms[t])
			if tf == 0 {
				continue
			}
			df := float64(ix.df[t])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := 1 - bm25B + bm25B*float64(e.length)/avgLen
			score += idf * tf * (bm25K1 + 1) / (tf + bm25K1*norm)
		}
		if score > 0 {
			hits = append(hits, db.SearchEntry{Key: key, Score: score, Fields: copyFields(e.fields)})
		}
	}
	return topK(hits, q.TopK), nil
}

// SearchContains returns filtered chunks whose content contains the query,
// case-insensitively, in key order and capped at TopK.
func (ix *Index) SearchContains(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if q.TopK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}
	needle := strings.ToLower(strings.TrimSpace(q.Query))
	if needle == "" {
		return &db.SearchResult{}, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	keys := make([]string, 0, len(ix.entries))
	for k := range ix.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := q.Filter.Tags()
	var hits []db.SearchEntry
	for _, key := range keys {
		e := ix.entries[key]
		if !matchesTags(e.fields, tags) {
			continue
		}
		if !strings.Contains(strings.ToLower(e.fields[db.FieldContent]), needle) {
			continue
		}
		hits = append(hits, db.SearchEntry{Key: key, Fields: copyFields(e.fields)})
		if len(hits) == q.TopK {
			break
		}
	}
	return &db.SearchResult{Total: len(hits), Entries: hits}, nil
}

// topK orders by score, breaking ties by key so results are deterministic.
func topK(hits []db.SearchEntry, k int) *db.SearchResult {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Key < hits[j].Key
	})
	total := len(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return &db.SearchResult{Total: total, Entries: hits}
}

func matchesTags(fields, tags map[string]string) bool {
	for k, v := range tags {
		if fields[k] != v {
			return false
		}
	}
	return true
}

func copyFields(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// termFrequencies lower-cases text and counts its words. Word boundaries
// match the Redis query tokenizer: anything but letters, digits and marks.
func termFrequencies(text string) (map[string]int, int) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r)
	})
	tf := make(map[string]int, len(words))
	for _, w := range words {
		tf[w]++
	}
	return tf, len(words)
}

func decodeVector(s string) ([]float32, error) {
	if len(s)%4 != 0 {
		return nil, fmt.Errorf("invalid vector encoding: len=%d (not multiple of 4)", len(s))
	}
	b := []byte(s)
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
