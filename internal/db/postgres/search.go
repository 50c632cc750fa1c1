package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kailas-cloud/lexrag/internal/db"
)

const chunkColumns = `id, document_id, content, language, domain, article_number, metadata::text`

// SearchBM25 ranks chunks with ts_rank_cd, normalization 32 (rank/(rank+1)).
func (s *Store) SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if q.TopK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}
	if strings.TrimSpace(q.Query) == "" {
		return &db.SearchResult{}, nil
	}

	query := `
SELECT ` + chunkColumns + `,
	ts_rank_cd(` + s.tsvector() + `, ` + s.tsquery("$1") + `, 32) AS score
FROM ` + chunksTable + `
WHERE ` + s.tsvector() + ` @@ ` + s.tsquery("$1") + `
	AND ($2 = '' OR domain = $2)
	AND ($3 = '' OR language = $3)
ORDER BY score DESC, id
LIMIT $4`

	rows, err := s.db.QueryContext(ctx, query,
		q.Query, string(q.Filter.Domain()), string(q.Filter.Language()), q.TopK)
	if err != nil {
		return nil, &db.Error{Op: db.OpSQLQuery, Err: err}
	}
	return scanEntries(rows, true)
}

// SearchContains matches content with a case-insensitive ILIKE, capped at TopK.
// Entries carry no score; the caller assigns the neutral fallback score.
func (s *Store) SearchContains(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if q.TopK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}
	needle := strings.TrimSpace(q.Query)
	if needle == "" {
		return &db.SearchResult{}, nil
	}

	query := `
SELECT ` + chunkColumns + `
FROM ` + chunksTable + `
WHERE content ILIKE $1 ESCAPE '\'
	AND ($2 = '' OR domain = $2)
	AND ($3 = '' OR language = $3)
ORDER BY id
LIMIT $4`

	rows, err := s.db.QueryContext(ctx, query,
		"%"+likeEscaper.Replace(needle)+"%", string(q.Filter.Domain()), string(q.Filter.Language()), q.TopK)
	if err != nil {
		return nil, &db.Error{Op: db.OpSQLQuery, Err: err}
	}
	return scanEntries(rows, false)
}

func scanEntries(rows *sql.Rows, withScore bool) (*db.SearchResult, error) {
	defer func() {
		_ = rows.Close()
	}()

	var entries []db.SearchEntry
	for rows.Next() {
		var id, documentID, content, lang, domain, article, metadata string
		var score float64
		dest := []any{&id, &documentID, &content, &lang, &domain, &article, &metadata}
		if withScore {
			dest = append(dest, &score)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, &db.Error{Op: db.OpSQLQuery, Err: fmt.Errorf("scan chunk: %w", err)}
		}
		entries = append(entries, db.SearchEntry{
			Key:   id,
			Score: score,
			Fields: map[string]string{
				db.FieldDocumentID: documentID,
				db.FieldContent:    content,
				db.FieldLanguage:   lang,
				db.FieldDomain:     domain,
				db.FieldArticle:    article,
				db.FieldMetadata:   metadata,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpSQLQuery, Err: err}
	}
	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
