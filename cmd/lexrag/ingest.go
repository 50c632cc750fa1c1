package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/lexrag/internal/domain"
	"github.com/kailas-cloud/lexrag/internal/metrics"
	ingestuc "github.com/kailas-cloud/lexrag/internal/usecase/ingest"
)

var (
	ingestBatchSize int
	ingestChunkSize int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Chunk, embed and store legal documents",
	Long: `Reads YAML files of legal documents and writes their Arabic and French
chunks to every configured store. Requires a persistent chunk store.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", ingestuc.DefaultBatchSize, "chunks per embedding request")
	ingestCmd.Flags().IntVar(&ingestChunkSize, "chunk-size", ingestuc.DefaultMaxChunkSize, "maximum characters per chunk")
	rootCmd.AddCommand(ingestCmd)
}

// documentFile is the on-disk layout of an ingestion file.
type documentFile struct {
	Documents []domain.Document `yaml:"documents"`
}

// loadDocuments reads a YAML file holding a documents list.
func loadDocuments(path string) ([]domain.Document, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var f documentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(f.Documents) == 0 {
		return nil, fmt.Errorf("%s: no documents", path)
	}
	return f.Documents, nil
}

// ingester is the slice of the ingest service the commands use.
type ingester interface {
	Ingest(ctx context.Context, doc *domain.Document) (ingestuc.Report, error)
}

// ingestFile ingests every document of path, stopping at the first failure.
func ingestFile(ctx context.Context, svc ingester, path string, logger *zap.Logger) error {
	docs, err := loadDocuments(path)
	if err != nil {
		return err
	}

	start := time.Now()
	var chunks, tokens int
	for i := range docs {
		report, err := svc.Ingest(ctx, &docs[i])
		if err != nil {
			return err
		}
		for _, n := range report.Chunks {
			chunks += n
		}
		tokens += report.Tokens
	}

	logger.Info("Ingestion file done",
		zap.String("file", path),
		zap.Int("documents", len(docs)),
		zap.Int("chunks", chunks),
		zap.Int("tokens", tokens),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, logger, _, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	metrics.Register()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openStores(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if !st.persistent && cfg.Postgres.DSN == "" {
		return errors.New("ingest needs a redis, valkey or postgres store; use serve --seed with the memory driver")
	}

	svc := ingestuc.New(newEmbedder(&cfg, logger), logger, st.writers...).
		WithBatchSize(ingestBatchSize).
		WithMaxChunkSize(ingestChunkSize)

	for _, path := range args {
		if err := ingestFile(ctx, svc, path, logger); err != nil {
			return err
		}
	}
	return nil
}
