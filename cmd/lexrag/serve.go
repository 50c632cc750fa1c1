package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lexrag/internal/cache"
	"github.com/kailas-cloud/lexrag/internal/domain/search/mode"
	"github.com/kailas-cloud/lexrag/internal/metrics"
	"github.com/kailas-cloud/lexrag/internal/repository/lexical"
	"github.com/kailas-cloud/lexrag/internal/repository/vector"
	chiTransport "github.com/kailas-cloud/lexrag/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/lexrag/internal/transport/openai"
	answeruc "github.com/kailas-cloud/lexrag/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/lexrag/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/lexrag/internal/usecase/ingest"
	"github.com/kailas-cloud/lexrag/internal/usecase/retrieval"
	"github.com/kailas-cloud/lexrag/internal/version"
)

var serveSeed string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Starts the retrieval and answering API. With --seed the given documents
are ingested before the server starts listening, which is how the in-process
index gets its content.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveSeed, "seed", "", "YAML file of documents to ingest at startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, logger, env, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting lexrag API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Register application metrics explicitly (no init())
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	embedder := newEmbedder(&cfg, logger)

	queryCache, err := newCache(&cfg, st.kv, logger)
	if err != nil {
		return err
	}
	go queryCache.RunSweeper(ctx, time.Duration(cfg.Cache.SweepIntervalSec)*time.Second)

	if serveSeed != "" {
		ingester := ingestuc.New(embedder, logger, st.writers...)
		if err := ingestFile(ctx, ingester, serveSeed, logger); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	// Resolved once; the decision holds for the life of the process.
	lexMode, err := mode.Parse(cfg.Lexical.Mode)
	if err != nil {
		return err
	}
	ranked, err := lexical.ResolveRanked(ctx, lexMode, st.text)
	if err != nil {
		return err
	}
	logger.Info("Lexical search mode resolved",
		zap.String("configured", string(lexMode)), zap.Bool("ranked", ranked))

	retrievalSvc := retrieval.New(
		cache.NewEmbedder(embedder, queryCache),
		vector.New(st.vector),
		lexical.New(st.text, ranked, logger),
		retrieval.Config{
			Weights: retrieval.Weights{
				Vector:  cfg.Retrieval.VectorWeight,
				Lexical: cfg.Retrieval.LexicalWeight,
			},
			VectorThreshold: cfg.Retrieval.VectorThreshold,
			LexicalTimeout:  time.Duration(cfg.Retrieval.LexicalTimeoutMs) * time.Millisecond,
		},
		logger,
	)

	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:              cfg.Generation.APIKey,
		BaseURL:             cfg.Generation.BaseURL,
		Model:               cfg.Generation.Model,
		Timeout:             time.Duration(cfg.Generation.TimeoutSec) * time.Second,
		BreakerMinRequests:  cfg.Generation.Breaker.MinRequests,
		BreakerFailureRatio: cfg.Generation.Breaker.FailureRatio,
		BreakerOpenTimeout:  time.Duration(cfg.Generation.Breaker.OpenSec) * time.Second,
		Logger:              logger,
	})
	answerSvc := answeruc.New(retrievalSvc, generator, queryCache, answeruc.Config{
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
		Threshold:   cfg.Retrieval.Threshold,
		Count:       cfg.Retrieval.Count,
		Timeout:     time.Duration(cfg.Generation.TimeoutSec) * time.Second,
	}, logger)

	components := append(st.components, healthuc.Provider("embedding_provider", embedder, true))
	healthSvc := healthuc.New(components...)

	server := chiTransport.NewServer(retrievalSvc, answerSvc, queryCache, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}
