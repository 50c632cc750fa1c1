package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lexrag/internal/cache"
	"github.com/kailas-cloud/lexrag/internal/config"
	"github.com/kailas-cloud/lexrag/internal/db"
	"github.com/kailas-cloud/lexrag/internal/db/memory"
	"github.com/kailas-cloud/lexrag/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/lexrag/internal/db/redis"
	"github.com/kailas-cloud/lexrag/internal/domain"
	logpkg "github.com/kailas-cloud/lexrag/internal/logger"
	"github.com/kailas-cloud/lexrag/internal/metrics"
	"github.com/kailas-cloud/lexrag/internal/repository/chunkstore"
	openaiTransport "github.com/kailas-cloud/lexrag/internal/transport/openai"
	healthuc "github.com/kailas-cloud/lexrag/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/lexrag/internal/usecase/ingest"
)

// stores bundles the backends selected by configuration.
type stores struct {
	vector     db.VectorSearcher
	text       db.TextSearcher
	kv         db.KVStore // nil for the in-process index
	writers    []ingestuc.ChunkWriter
	components []healthuc.Component
	persistent bool
	closers    []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores connects the chunk store and, when configured, the PostgreSQL
// lexical store. PostgreSQL replaces the chunk store for lexical search.
func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	s := &stores{}

	switch cfg.Database.Driver {
	case "redis", "valkey":
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Username: cfg.Database.Username,
			Password: cfg.Database.Password,
			DB:       cfg.Database.DB,
			Flavor:   dbRedis.Flavor(cfg.Database.Driver),
		})
		if err != nil {
			return nil, fmt.Errorf("create %s store: %w", cfg.Database.Driver, err)
		}
		s.closers = append(s.closers, store.Close)

		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			s.Close()
			return nil, fmt.Errorf("database not ready: %w", err)
		}
		logger.Info("Connected to database", zap.String("driver", cfg.Database.Driver))

		algo, err := db.ParseVectorAlgorithm(cfg.Index.Algorithm)
		if err != nil {
			s.Close()
			return nil, err
		}
		created, err := chunkstore.EnsureIndex(ctx, store, chunkstore.IndexConfig{
			Dimensions:  cfg.Embedding.Dimensions,
			Algorithm:   algo,
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		if created {
			logger.Info("Created chunk index", zap.String("index", chunkstore.IndexName))
		}

		s.vector = store
		s.text = store
		s.kv = store
		s.persistent = true
		s.writers = append(s.writers, chunkstore.NewWriter(store))
		s.components = append(s.components, healthuc.Store("vector_store", store, true))
	case "memory":
		ix := memory.New()
		s.vector = ix
		s.text = ix
		s.writers = append(s.writers, chunkstore.NewWriter(ix))
		s.components = append(s.components, healthuc.Store("vector_store", ix, true))
		logger.Warn("Using the in-process chunk index; ingested chunks are lost on exit")
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	if cfg.Postgres.DSN != "" {
		sqlDB, err := postgres.OpenDB(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		pg, err := postgres.New(sqlDB, cfg.Postgres.TextConfig)
		if err != nil {
			_ = sqlDB.Close()
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, pg.Close)

		if err := pg.EnsureSchema(ctx, cfg.Postgres.CreateFTS); err != nil {
			s.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
		logger.Info("Connected to postgres", zap.String("text_config", cfg.Postgres.TextConfig))

		s.text = pg
		s.writers = append(s.writers, pg)
		// Lexical failures degrade retrieval, they never fail it.
		s.components = append(s.components, healthuc.Store("lexical_store", pg, false))
	}

	return s, nil
}

// newEmbedder builds the provider client wrapped with a per-call deadline.
// The same chain serves queries (single) and ingestion (batch).
func newEmbedder(cfg *config.Config, logger *zap.Logger) *domain.DeadlineEmbedder {
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   "openai",
		Logger:     logger,
	})
	return domain.NewDeadlineEmbedder(base, time.Duration(cfg.Embedding.TimeoutSec)*time.Second)
}

// newCache builds the query cache on the configured backend.
func newCache(cfg *config.Config, kv db.KVStore, logger *zap.Logger) (*cache.Cache, error) {
	ttls, err := cfg.Cache.TTLs()
	if err != nil {
		return nil, err
	}

	var backend cache.Backend
	switch cfg.Cache.Backend {
	case "kv":
		if kv == nil {
			return nil, fmt.Errorf("cache backend kv needs a redis or valkey database")
		}
		backend = cache.NewKVBackend(kv)
	default:
		backend = cache.NewMemoryBackend()
	}

	return cache.New(backend, cache.Config{
		Enabled:      cfg.Cache.IsEnabled(),
		EmbeddingTTL: ttls[0],
		AnswerTTL:    ttls[1],
	}, cache.WithMetrics(metrics.CacheRequestsTotal), cache.WithLogger(logger)), nil
}

// loadConfig resolves the environment, loads its config and builds the logger.
func loadConfig() (config.Config, *zap.Logger, string, error) {
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return config.Config{}, nil, "", fmt.Errorf("load config: %w", err)
	}
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, "", fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, env, nil
}
