package lexrag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lexrag/internal/cache"
	"github.com/kailas-cloud/lexrag/internal/db"
	"github.com/kailas-cloud/lexrag/internal/db/memory"
	dbRedis "github.com/kailas-cloud/lexrag/internal/db/redis"
	"github.com/kailas-cloud/lexrag/internal/domain"
	"github.com/kailas-cloud/lexrag/internal/domain/search/mode"
	"github.com/kailas-cloud/lexrag/internal/repository/chunkstore"
	"github.com/kailas-cloud/lexrag/internal/repository/lexical"
	"github.com/kailas-cloud/lexrag/internal/repository/vector"
	answeruc "github.com/kailas-cloud/lexrag/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/lexrag/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/lexrag/internal/usecase/ingest"
	"github.com/kailas-cloud/lexrag/internal/usecase/retrieval"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultDimensions       = 1536
	defaultEmbeddingTimeout = 10 * time.Second
	defaultSweepInterval    = 10 * time.Minute
)

// Internal interfaces for substitution in tests.
type retrievalUseCase interface {
	Retrieve(ctx context.Context, query string, opts retrieval.Options) ([]domain.RetrievedChunk, error)
}

type answerUseCase interface {
	Generate(ctx context.Context, query string, lang Language) (domain.Answer, error)
}

type ingestUseCase interface {
	Ingest(ctx context.Context, doc *domain.Document) (ingestuc.Report, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// chunkStore is what the client needs from a chunk backend.
type chunkStore interface {
	db.Pinger
	db.VectorSearcher
	db.TextSearcher
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
}

// Client is the lexrag entry point.
type Client struct {
	close     func()
	stopSweep context.CancelFunc // nil when the backend expires entries itself
	sweepDone chan struct{}
	retrieval retrievalUseCase
	answers   answerUseCase // nil without a generator
	ingest    ingestUseCase
	health    healthUseCase
	cache     *cache.Cache
	obs       *observer
}

// New creates a Client. Without WithRedis or WithValkey chunks live in an
// in-process index. The provided context is used for the readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		driver:           "memory",
		vectorDimensions: defaultDimensions,
		embedTimeout:     defaultEmbeddingTimeout,
		sweepInterval:    defaultSweepInterval,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.embedder == nil {
		return nil, errors.New("lexrag: embedder required (use WithEmbedder)")
	}
	lexMode, err := mode.Parse(cfg.lexicalMode)
	if err != nil {
		return nil, fmt.Errorf("lexrag: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, kv, closeFn, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c, err := wireClient(ctx, cfg, store, kv, lexMode)
	if err != nil {
		closeFn()
		return nil, err
	}
	c.close = closeFn
	c.obs = obs
	if kv == nil {
		c.startSweeper(cfg.sweepInterval)
	}
	return c, nil
}

func openStore(ctx context.Context, cfg *clientConfig) (chunkStore, db.KVStore, func(), error) {
	switch cfg.driver {
	case "memory":
		return memory.New(), nil, func() {}, nil
	case "redis", "valkey":
		if len(cfg.addrs) == 0 {
			return nil, nil, nil, errors.New("lexrag: database address required")
		}
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
			Flavor:   dbRedis.Flavor(cfg.driver),
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("lexrag: create %s store: %w", cfg.driver, err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, nil, nil, fmt.Errorf("lexrag: database not ready: %w", err)
		}
		if _, err := chunkstore.EnsureIndex(ctx, s, chunkstore.IndexConfig{
			Dimensions:  cfg.vectorDimensions,
			Algorithm:   db.VectorHNSW,
			M:           cfg.hnswM,
			EFConstruct: cfg.hnswEFConstruct,
		}); err != nil {
			s.Close()
			return nil, nil, nil, fmt.Errorf("lexrag: %w", err)
		}
		return s, s, s.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("lexrag: unknown driver %q", cfg.driver)
	}
}

func wireClient(
	ctx context.Context, cfg *clientConfig, store chunkStore, kv db.KVStore, lexMode mode.Lexical,
) (*Client, error) {
	logger := zap.NewNop()
	emb := domain.NewDeadlineEmbedder(&embedderAdapter{inner: cfg.embedder}, cfg.embedTimeout)

	var backend cache.Backend = cache.NewMemoryBackend()
	if kv != nil {
		backend = cache.NewKVBackend(kv)
	}
	queryCache := cache.New(backend, cache.Config{
		Enabled:      !cfg.cacheDisabled,
		EmbeddingTTL: cfg.embeddingTTL,
		AnswerTTL:    cfg.answerTTL,
	})

	ranked, err := lexical.ResolveRanked(ctx, lexMode, store)
	if err != nil {
		return nil, fmt.Errorf("lexrag: %w", err)
	}

	retrievalSvc := retrieval.New(
		cache.NewEmbedder(emb, queryCache),
		vector.New(store),
		lexical.New(store, ranked, logger),
		retrieval.Config{Weights: retrieval.Weights{Vector: cfg.vectorWeight, Lexical: cfg.lexicalWeight}},
		logger,
	)

	c := &Client{
		retrieval: retrievalSvc,
		ingest:    ingestuc.New(emb, logger, chunkstore.NewWriter(store)),
		health:    healthuc.New(healthuc.Store("vector_store", store, true)),
		cache:     queryCache,
	}
	if cfg.generator != nil {
		c.answers = answeruc.New(retrievalSvc, cfg.generator, queryCache, answeruc.Config{}, logger)
	}
	return c, nil
}

// startSweeper purges expired in-process cache entries until Close.
func (c *Client) startSweeper(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	c.stopSweep = cancel
	c.sweepDone = make(chan struct{})
	go func() {
		defer close(c.sweepDone)
		c.cache.RunSweeper(ctx, interval)
	}()
}

// Close stops the cache sweeper and releases all resources.
func (c *Client) Close() {
	if c.stopSweep != nil {
		c.stopSweep()
		<-c.sweepDone
	}
	if c.close != nil {
		c.close()
	}
}

// Ingest chunks, embeds and stores the Arabic and French content of doc.
// A document without an id gets one.
func (c *Client) Ingest(ctx context.Context, doc *Document) (_ IngestReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest", start, err) }()

	report, err := c.ingest.Ingest(ctx, doc)
	if err != nil {
		return report, fmt.Errorf("ingest: %w", err)
	}
	return report, nil
}

// Retrieve returns the chunks most relevant to query, best first.
// An empty result is not an error.
func (c *Client) Retrieve(ctx context.Context, query string, opts RetrieveOptions) (_ []RetrievedChunk, err error) {
	start := time.Now()
	defer func() { c.obs.observe("retrieve", start, err) }()

	chunks, err := c.retrieval.Retrieve(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	return chunks, nil
}

// Answer returns a grounded answer in lang, or in the detected language when
// lang is NoLanguage. Without relevant chunks it returns the fixed fallback.
func (c *Client) Answer(ctx context.Context, query string, lang Language) (_ Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("answer", start, err) }()

	if c.answers == nil {
		return Answer{}, ErrGeneratorNotConfigured
	}
	ans, err := c.answers.Generate(ctx, query, lang)
	if err != nil {
		return Answer{}, fmt.Errorf("answer: %w", err)
	}
	return ans, nil
}

// Health checks the health of all system components.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.health.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}

// CacheStats returns hit and miss counters of the query cache.
func (c *Client) CacheStats() CacheStats {
	return c.cache.Stats()
}

// ClearCache drops every cached embedding and answer.
func (c *Client) ClearCache(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("clear_cache", start, err) }()

	if err = c.cache.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// embedderAdapter wraps the public Embedder to satisfy the internal
// single and batch embedding contracts.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w: %w", err, domain.ErrEmbeddingProviderError)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

func (a *embedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	be, ok := a.inner.(BatchEmbedder)
	if !ok {
		return domain.BatchFallback(ctx, a, texts)
	}
	r, err := be.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w: %w", err, domain.ErrEmbeddingProviderError)
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   r.Embeddings,
		TokenCounts:  domain.SplitTokens(r.TotalTokens, len(r.Embeddings)),
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}
