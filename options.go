package lexrag

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "memory" (default), "valkey" or "redis"
	addrs    []string
	password string

	embedder  Embedder
	generator Generator

	vectorDimensions int
	hnswM            int
	hnswEFConstruct  int
	lexicalMode      string

	vectorWeight  float64
	lexicalWeight float64

	embedTimeout time.Duration

	cacheDisabled bool
	embeddingTTL  time.Duration
	answerTTL     time.Duration
	sweepInterval time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithValkey stores chunks in a Valkey instance. Valkey has no ranked text
// search, so lexical matching runs in substring mode.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis stores chunks in a Redis 8+ instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithEmbedder sets the text embedding provider. Required.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithGenerator sets the answer generation model. Required for Answer.
func WithGenerator(g Generator) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = g
	})
}

// WithVectorDimensions sets the embedding dimension of the chunk index.
// Defaults to 1536 (text-embedding-3-small).
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorDimensions = dim
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithLexicalMode forces "ranked" or "substring" lexical search.
// Default "auto" asks the backend once at construction.
func WithLexicalMode(mode string) Option {
	return optionFunc(func(c *clientConfig) {
		c.lexicalMode = mode
	})
}

// WithWeights sets the fusion weights of the vector and lexical lists.
// Defaults: 0.6 and 0.4.
func WithWeights(vector, lexical float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorWeight = vector
		c.lexicalWeight = lexical
	})
}

// WithCacheTTL sets the embedding and answer cache lifetimes.
// Defaults: 24h and 1h.
func WithCacheTTL(embedding, answer time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.embeddingTTL = embedding
		c.answerTTL = answer
	})
}

// WithCacheSweepInterval sets how often expired in-process cache entries are
// purged. Defaults to 10 minutes. Redis and Valkey expire entries themselves.
func WithCacheSweepInterval(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.sweepInterval = d
	})
}

// WithEmbeddingTimeout bounds every embedder call. Defaults to 10s;
// a non-positive value removes the bound.
func WithEmbeddingTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedTimeout = d
	})
}

// WithoutCache disables the embedding and answer caches.
func WithoutCache() Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheDisabled = true
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
