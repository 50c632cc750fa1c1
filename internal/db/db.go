package db

import (
	"context"
	"time"
)

// Store is the Redis/Valkey facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	HashStore
	KVStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem holds a single key+fields pair for pipelined HSET.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HSetMulti(ctx context.Context, items []HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// KVStore provides simple key-value operations with server-side expiry.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	TextCapability
}

// TextCapability reports whether a backend ranks full-text matches.
// It is asked once at startup, never per query. An error means the backend
// could not answer, which is not the same as answering no.
type TextCapability interface {
	SupportsTextSearch(ctx context.Context) (bool, error)
}

// VectorSearcher runs KNN queries.
type VectorSearcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}

// TextSearcher runs ranked full-text queries and the substring fallback.
type TextSearcher interface {
	TextCapability
	SearchBM25(ctx context.Context, q *TextQuery) (*SearchResult, error)
	SearchContains(ctx context.Context, q *TextQuery) (*SearchResult, error)
}

// Searcher provides every search operation over FT indexes.
type Searcher interface {
	VectorSearcher
	TextSearcher
}
