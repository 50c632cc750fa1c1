package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kailas-cloud/lexrag/internal/db"
)

// Backend stores raw cache entries. Get returns db.ErrKeyNotFound on a miss.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// selfExpiring backends drop entries on their own; sweeping them is a no-op.
type selfExpiring interface {
	SelfExpiring() bool
}

// MemoryBackend is a process-local backend. Expired entries stay until swept.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryBackend creates an empty in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

// Get returns a copy of the stored value.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set overwrites key. The ttl is enforced by the cache on read and on sweep.
func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	v := make([]byte, len(value))
	copy(v, value)
	m.mu.Lock()
	m.data[key] = v
	m.mu.Unlock()
	return nil
}

// Delete removes keys.
func (m *MemoryBackend) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.data, k)
	}
	m.mu.Unlock()
	return nil
}

// Keys lists keys with the prefix in sorted order.
func (m *MemoryBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	m.mu.RUnlock()
	sort.Strings(keys)
	return keys, nil
}

// KVBackend stores entries in Redis or Valkey with server-side expiry.
type KVBackend struct {
	store db.KVStore
}

// NewKVBackend wraps a key-value store.
func NewKVBackend(s db.KVStore) *KVBackend {
	return &KVBackend{store: s}
}

// Get reads a value.
func (k *KVBackend) Get(ctx context.Context, key string) ([]byte, error) {
	return k.store.Get(ctx, key) //nolint:wrapcheck // db errors already carry the op
}

// Set writes a value that the server expires after ttl.
func (k *KVBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return k.store.SetWithTTL(ctx, key, value, ttl) //nolint:wrapcheck // db errors already carry the op
}

// Delete removes keys.
func (k *KVBackend) Delete(ctx context.Context, keys ...string) error {
	return k.store.Del(ctx, keys...) //nolint:wrapcheck // db errors already carry the op
}

// Keys scans keys with the prefix.
func (k *KVBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	return k.store.Scan(ctx, prefix+"*") //nolint:wrapcheck // db errors already carry the op
}

// SelfExpiring reports that the server expires entries.
func (k *KVBackend) SelfExpiring() bool { return true }
