package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/lexrag/internal/db"
	"github.com/kailas-cloud/lexrag/internal/domain"
)

// WriteChunks inserts chunks in one transaction. Chunks are immutable, so an
// id that already exists is left untouched. Vectors are not stored here.
func (s *Store) WriteChunks(ctx context.Context, chunks []domain.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: db.OpSQLExec, Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO `+chunksTable+` (id, document_id, content, language, domain, article_number, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return &db.Error{Op: db.OpSQLExec, Err: fmt.Errorf("prepare insert: %w", err)}
	}
	defer func() {
		_ = stmt.Close()
	}()

	for i := range chunks {
		c := &chunks[i].Chunk
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata %s: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.DocumentID, c.Content, string(c.Language), string(c.Domain), c.ArticleNumber, string(meta),
		); err != nil {
			return &db.Error{Op: db.OpSQLExec, Err: fmt.Errorf("insert chunk %s: %w", c.ID, err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &db.Error{Op: db.OpSQLExec, Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}
