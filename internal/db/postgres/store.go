// Package postgres serves lexical search over legal chunks with PostgreSQL
// full-text search, plus the chunk table the ingestion writes to.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kailas-cloud/lexrag/internal/db"
)

// Compile-time check: Store serves lexical search.
var _ db.TextSearcher = (*Store)(nil)

const (
	chunksTable = "lexrag_chunks"
	ftsIndex    = "idx_lexrag_chunks_fts"

	// schemaLockID serializes bootstrap DDL across concurrent startups.
	schemaLockID int64 = 2026101901
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Store implements ranked (ts_rank_cd) and substring (ILIKE) lexical search.
type Store struct {
	db         *sql.DB
	textConfig string
}

// OpenDB opens a pgx-backed database/sql pool and verifies connectivity.
func OpenDB(ctx context.Context, dsn string, maxConns int) (*sql.DB, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 10
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return sqlDB, nil
}

// New wraps an open pool. textConfig is the text search configuration used for
// both the index and queries, e.g. "simple" or "arabic".
func New(sqlDB *sql.DB, textConfig string) (*Store, error) {
	if textConfig == "" {
		textConfig = "simple"
	}
	if !identRe.MatchString(textConfig) {
		return nil, fmt.Errorf("invalid text search config %q", textConfig)
	}
	return &Store{db: sqlDB, textConfig: textConfig}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	_ = s.db.Close()
}

// EnsureSchema creates the chunk table and, when withFTS is set, the GIN
// full-text index whose presence enables ranked search.
func (s *Store) EnsureSchema(ctx context.Context, withFTS bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: db.OpSQLSchema, Err: fmt.Errorf("begin schema tx: %w", err)}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return &db.Error{Op: db.OpSQLSchema, Err: fmt.Errorf("acquire schema lock: %w", err)}
	}

	ddl := `
CREATE TABLE IF NOT EXISTS ` + chunksTable + ` (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	content TEXT NOT NULL,
	language TEXT NOT NULL,
	domain TEXT NOT NULL DEFAULT '',
	article_number TEXT NOT NULL DEFAULT '',
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_lexrag_chunks_domain ON ` + chunksTable + `(domain);
CREATE INDEX IF NOT EXISTS idx_lexrag_chunks_document ON ` + chunksTable + `(document_id);
`
	if withFTS {
		ddl += `CREATE INDEX IF NOT EXISTS ` + ftsIndex + ` ON ` + chunksTable +
			` USING GIN (` + s.tsvector() + `);`
	}

	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return &db.Error{Op: db.OpSQLSchema, Err: fmt.Errorf("execute schema ddl: %w", err)}
	}

	if err := tx.Commit(); err != nil {
		return &db.Error{Op: db.OpSQLSchema, Err: fmt.Errorf("commit schema tx: %w", err)}
	}
	return nil
}

// SupportsTextSearch reports whether the full-text index exists.
// Only a missing index means unsupported; a failed lookup is returned as an error.
func (s *Store) SupportsTextSearch(ctx context.Context) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `SELECT to_regclass($1) IS NOT NULL`, ftsIndex).Scan(&ok)
	if err != nil {
		return false, &db.Error{Op: db.OpSQLQuery, Err: fmt.Errorf("look up full-text index: %w", err)}
	}
	return ok, nil
}

func (s *Store) tsvector() string {
	return "to_tsvector('" + s.textConfig + "', content)"
}

func (s *Store) tsquery(param string) string {
	return "plainto_tsquery('" + s.textConfig + "', " + param + ")"
}
