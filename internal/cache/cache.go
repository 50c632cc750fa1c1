// Package cache memoizes query embeddings and generated answers with
// per-kind TTLs. It is best-effort: a backend failure is logged and reads as
// a miss, and never fails the caller.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lexrag/internal/db"
	"github.com/kailas-cloud/lexrag/internal/domain"
	"github.com/kailas-cloud/lexrag/internal/domain/language"
)

// Key prefixes per cache kind.
var (
	embeddingPrefix = domain.KeyPrefix + "emb_cache:"
	answerPrefix    = domain.KeyPrefix + "answer_cache:"
)

// Cache kinds, used as the "cache" metric label.
const (
	KindEmbedding = "embedding"
	KindAnswer    = "answer"
)

// Default TTLs.
const (
	DefaultEmbeddingTTL = 24 * time.Hour
	DefaultAnswerTTL    = time.Hour
)

const headerLen = 8 // stored-at unix nanos, little-endian

// Config controls caching behavior.
type Config struct {
	Enabled      bool
	EmbeddingTTL time.Duration
	AnswerTTL    time.Duration
}

// CachedAnswer is a stored answer with its citations.
type CachedAnswer struct {
	Answer    string            `json:"answer"`
	Citations []domain.Citation `json:"citations"`
	StoredAt  time.Time         `json:"-"`
}

// Sizes counts stored entries per kind.
type Sizes struct {
	Embeddings int `json:"embeddings"`
	Answers    int `json:"answers"`
}

// Cache is safe for concurrent use.
type Cache struct {
	backend Backend
	cfg     Config
	now     func() time.Time
	metric  *prometheus.CounterVec
	logger  *zap.Logger

	embStats counters
	ansStats counters
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for deterministic TTL tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithMetrics records lookups on a counter vec labeled (cache, result).
func WithMetrics(v *prometheus.CounterVec) Option {
	return func(c *Cache) { c.metric = v }
}

// WithLogger sets the logger for swallowed backend errors.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates a cache. Zero TTLs select the defaults.
func New(backend Backend, cfg Config, opts ...Option) *Cache {
	if cfg.EmbeddingTTL <= 0 {
		cfg.EmbeddingTTL = DefaultEmbeddingTTL
	}
	if cfg.AnswerTTL <= 0 {
		cfg.AnswerTTL = DefaultAnswerTTL
	}
	c := &Cache{
		backend: backend,
		cfg:     cfg,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether caching is active.
func (c *Cache) Enabled() bool {
	return c.cfg.Enabled
}

// GetOrComputeEmbedding returns the cached embedding of text, or calls
// compute once and stores its result. The hit flag is true when compute was
// not called. Concurrent misses on the same text may both compute; the last
// write wins. Empty vectors are returned but never stored.
func (c *Cache) GetOrComputeEmbedding(
	ctx context.Context, text string, compute func(context.Context, string) ([]float32, error),
) (vec []float32, hit bool, err error) {
	if !c.cfg.Enabled {
		vec, err = compute(ctx, text)
		return vec, false, err
	}

	key := embeddingPrefix + hashKey(text)
	if payload, ok := c.load(ctx, key, c.cfg.EmbeddingTTL); ok {
		if v, err := bytesToVector(payload); err == nil {
			c.record(KindEmbedding, true)
			return v, true, nil
		}
		c.logger.Warn("Discarding corrupt cached embedding", zap.String("key", key))
	}
	c.record(KindEmbedding, false)

	vec, err = compute(ctx, text)
	if err != nil {
		return nil, false, err
	}
	if len(vec) > 0 {
		c.save(ctx, key, vectorToBytes(vec), c.cfg.EmbeddingTTL)
	}
	return vec, false, nil
}

// GetAnswer returns the answer cached for query in lang.
func (c *Cache) GetAnswer(ctx context.Context, query string, lang language.Language) (CachedAnswer, bool) {
	if !c.cfg.Enabled {
		return CachedAnswer{}, false
	}

	key := answerKey(query, lang)
	payload, ok := c.load(ctx, key, c.cfg.AnswerTTL)
	if ok {
		var a CachedAnswer
		if err := json.Unmarshal(payload[headerLen:], &a); err == nil {
			a.StoredAt = storedAt(payload)
			c.record(KindAnswer, true)
			return a, true
		}
		c.logger.Warn("Discarding corrupt cached answer", zap.String("key", key))
	}
	c.record(KindAnswer, false)
	return CachedAnswer{}, false
}

// StoreAnswer caches an answer, overwriting any previous entry.
func (c *Cache) StoreAnswer(
	ctx context.Context, query string, lang language.Language, answer string, citations []domain.Citation,
) {
	if !c.cfg.Enabled {
		return
	}
	data, err := json.Marshal(CachedAnswer{Answer: answer, Citations: citations})
	if err != nil {
		c.logger.Warn("Failed to encode answer for cache", zap.Error(err))
		return
	}
	c.save(ctx, answerKey(query, lang), data, c.cfg.AnswerTTL)
}

// Sweep deletes expired entries of both kinds and returns how many it removed.
// Backends that expire entries themselves are skipped.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	if se, ok := c.backend.(selfExpiring); ok && se.SelfExpiring() {
		return 0, nil
	}

	removed := 0
	for _, kind := range []struct {
		prefix string
		ttl    time.Duration
	}{
		{embeddingPrefix, c.cfg.EmbeddingTTL},
		{answerPrefix, c.cfg.AnswerTTL},
	} {
		keys, err := c.backend.Keys(ctx, kind.prefix)
		if err != nil {
			return removed, fmt.Errorf("list %s: %w", kind.prefix, err)
		}
		var expired []string
		for _, k := range keys {
			raw, err := c.backend.Get(ctx, k)
			if err != nil {
				continue
			}
			if len(raw) < headerLen || c.expired(raw, kind.ttl) {
				expired = append(expired, k)
			}
		}
		if len(expired) == 0 {
			continue
		}
		if err := c.backend.Delete(ctx, expired...); err != nil {
			return removed, fmt.Errorf("delete expired: %w", err)
		}
		removed += len(expired)
	}
	return removed, nil
}

// RunSweeper sweeps every interval until ctx is done. The host owns the goroutine.
func (c *Cache) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.Sweep(ctx)
			if err != nil {
				c.logger.Warn("Cache sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				c.logger.Debug("Cache sweep removed expired entries", zap.Int("removed", n))
			}
		}
	}
}

// Stats returns a snapshot of hit and miss counters.
func (c *Cache) Stats() Stats {
	emb := c.embStats.snapshot()
	ans := c.ansStats.snapshot()
	return Stats{
		Embedding: emb,
		Answer:    ans,
		Overall:   newTypeStats(emb.Hits+ans.Hits, emb.Misses+ans.Misses),
	}
}

// Clear removes every entry and resets the counters.
func (c *Cache) Clear(ctx context.Context) error {
	for _, prefix := range []string{embeddingPrefix, answerPrefix} {
		keys, err := c.backend.Keys(ctx, prefix)
		if err != nil {
			return fmt.Errorf("list %s: %w", prefix, err)
		}
		if err := c.backend.Delete(ctx, keys...); err != nil {
			return fmt.Errorf("delete %s: %w", prefix, err)
		}
	}
	c.embStats.reset()
	c.ansStats.reset()
	return nil
}

// Sizes counts stored entries, expired or not.
func (c *Cache) Sizes(ctx context.Context) (Sizes, error) {
	emb, err := c.backend.Keys(ctx, embeddingPrefix)
	if err != nil {
		return Sizes{}, fmt.Errorf("list embeddings: %w", err)
	}
	ans, err := c.backend.Keys(ctx, answerPrefix)
	if err != nil {
		return Sizes{}, fmt.Errorf("list answers: %w", err)
	}
	return Sizes{Embeddings: len(emb), Answers: len(ans)}, nil
}

// load returns the raw entry (header included) when present and fresh.
func (c *Cache) load(ctx context.Context, key string, ttl time.Duration) ([]byte, bool) {
	raw, err := c.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(raw) < headerLen || c.expired(raw, ttl) {
		return nil, false
	}
	return raw, true
}

func (c *Cache) save(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	raw := make([]byte, headerLen+len(payload))
	binary.LittleEndian.PutUint64(raw, uint64(c.now().UnixNano()))
	copy(raw[headerLen:], payload)
	if err := c.backend.Set(ctx, key, raw, ttl); err != nil {
		c.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// expired reports whether more than ttl has passed since the entry was stored.
func (c *Cache) expired(raw []byte, ttl time.Duration) bool {
	return c.now().Sub(storedAt(raw)) > ttl
}

func (c *Cache) record(kind string, hit bool) {
	stats := &c.embStats
	if kind == KindAnswer {
		stats = &c.ansStats
	}
	result := "miss"
	if hit {
		stats.hits.Add(1)
		result = "hit"
	} else {
		stats.misses.Add(1)
	}
	if c.metric != nil {
		c.metric.WithLabelValues(kind, result).Inc()
	}
}

func storedAt(raw []byte) time.Time {
	return time.Unix(0, int64(binary.LittleEndian.Uint64(raw[:headerLen])))
}

func answerKey(query string, lang language.Language) string {
	return answerPrefix + hashKey(query+":"+string(lang))
}

func hashKey(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func vectorToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToVector decodes an embedding entry, header included.
func bytesToVector(raw []byte) ([]float32, error) {
	data := raw[headerLen:]
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
