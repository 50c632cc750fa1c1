package chunkstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/lexrag/internal/db"
)

// IndexConfig sizes the vector field of the chunk index.
type IndexConfig struct {
	Dimensions  int
	Algorithm   db.VectorAlgorithm
	M           int
	EFConstruct int
}

// Definition builds the chunk index: tag filters on domain, language and
// document, a TEXT content field for BM25 and the COSINE vector field.
func Definition(cfg IndexConfig) (*db.IndexDefinition, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("vector dimensions must be positive, got %d", cfg.Dimensions)
	}
	return db.NewIndex(IndexName).
		Prefix(KeyPrefix).
		Tag(db.FieldDomain).
		Tag(db.FieldLanguage).
		Tag(db.FieldDocumentID).
		Text(db.FieldContent).
		Vector(db.FieldVector, cfg.Dimensions, cfg.Algorithm, cfg.M, cfg.EFConstruct).
		Build()
}

type indexManager interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// EnsureIndex creates the chunk index unless it already exists.
// It reports whether the index was created by this call.
func EnsureIndex(ctx context.Context, m indexManager, cfg IndexConfig) (bool, error) {
	exists, err := m.IndexExists(ctx, IndexName)
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", IndexName, err)
	}
	if exists {
		return false, nil
	}

	def, err := Definition(cfg)
	if err != nil {
		return false, err
	}
	if err := m.CreateIndex(ctx, def); err != nil {
		// Another instance won the race.
		if errors.Is(err, db.ErrIndexExists) {
			return false, nil
		}
		return false, fmt.Errorf("create index %s: %w", IndexName, err)
	}
	return true, nil
}
