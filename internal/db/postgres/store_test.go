package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kailas-cloud/lexrag/internal/db"
	"github.com/kailas-cloud/lexrag/internal/domain"
	"github.com/kailas-cloud/lexrag/internal/domain/language"
	"github.com/kailas-cloud/lexrag/internal/domain/legal"
	"github.com/kailas-cloud/lexrag/internal/domain/search/filter"
)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	s, err := New(sqlDB, "simple")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s, mock, func() { _ = sqlDB.Close() }
}

var resultColumns = []string{"id", "document_id", "content", "language", "domain", "article_number", "metadata"}

func TestNew_RejectsInjectedConfig(t *testing.T) {
	if _, err := New(nil, "simple'); DROP TABLE x; --"); err == nil {
		t.Fatal("expected error for invalid text search config")
	}
	s, err := New(nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.textConfig != "simple" {
		t.Errorf("default config = %q, want simple", s.textConfig)
	}
}

func TestSearchBM25_RanksWithTsRankCd(t *testing.T) {
	s, mock, done := newStoreWithMock(t)
	defer done()

	rows := sqlmock.NewRows(append(resultColumns, "score")).
		AddRow("c1", "d1", "يعاقب على السرقة", "ar", "penal_law", "505", `{"documentTitle":"Code pénal"}`, 0.42).
		AddRow("c2", "d1", "Le vol est puni", "fr", "penal_law", "", `{}`, 0.17)

	mock.ExpectQuery(`ts_rank_cd\(to_tsvector\('simple', content\), plainto_tsquery\('simple', \$1\), 32\)`).
		WithArgs("vol", "penal_law", "", 20).
		WillReturnRows(rows)

	res, err := s.SearchBM25(context.Background(), &db.TextQuery{
		Query:  "vol",
		Filter: filter.ByDomain(legal.PenalLaw),
		TopK:   20,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(res.Entries))
	}
	e := res.Entries[0]
	if e.Key != "c1" || e.Score != 0.42 {
		t.Errorf("entry[0] = %s %.2f", e.Key, e.Score)
	}
	if e.Fields[db.FieldArticle] != "505" || e.Fields[db.FieldContent] != "يعاقب على السرقة" {
		t.Errorf("fields = %v", e.Fields)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchBM25_QueryError(t *testing.T) {
	s, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectQuery("ts_rank_cd").WillReturnError(errors.New("connection reset"))

	_, err := s.SearchBM25(context.Background(), &db.TextQuery{Query: "vol", TopK: 5})
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpSQLQuery {
		t.Fatalf("expected db.Error SQL.QUERY, got %v", err)
	}
}

func TestSearchBM25_BlankQuerySkipsDatabase(t *testing.T) {
	s, mock, done := newStoreWithMock(t)
	defer done()

	res, err := s.SearchBM25(context.Background(), &db.TextQuery{Query: "  ", TopK: 5})
	if err != nil || len(res.Entries) != 0 {
		t.Fatalf("res=%v err=%v", res, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchContains_EscapesPattern(t *testing.T) {
	s, mock, done := newStoreWithMock(t)
	defer done()

	rows := sqlmock.NewRows(resultColumns).
		AddRow("c9", "d2", "taux de 100% applicable", "fr", "tax_law", "", `{}`)

	mock.ExpectQuery("ILIKE").
		WithArgs(`%100\%%`, "", "fr", 3).
		WillReturnRows(rows)

	res, err := s.SearchContains(context.Background(), &db.TextQuery{
		Query:  "100%",
		Filter: filter.New(legal.Undetermined, language.French),
		TopK:   3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].Score != 0 {
		t.Fatalf("entries = %+v", res.Entries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSupportsTextSearch(t *testing.T) {
	tests := []struct {
		name   string
		expect  func(m sqlmock.Sqlmock)
		want    bool
		wantErr bool
	}{
		{"index present", func(m sqlmock.Sqlmock) {
			m.ExpectQuery("to_regclass").WithArgs(ftsIndex).
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		}, true, false},
		{"index missing", func(m sqlmock.Sqlmock) {
			m.ExpectQuery("to_regclass").WithArgs(ftsIndex).
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		}, false, false},
		{"lookup failed", func(m sqlmock.Sqlmock) {
			m.ExpectQuery("to_regclass").WillReturnError(errors.New("timeout"))
		}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock, done := newStoreWithMock(t)
			defer done()
			tt.expect(mock)
			got, err := s.SupportsTextSearch(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("SupportsTextSearch() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("SupportsTextSearch() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnsureSchema_WithFTS(t *testing.T) {
	s, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(schemaLockID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS lexrag_chunks(.|\n)*USING GIN`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := s.EnsureSchema(context.Background(), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestWriteChunks(t *testing.T) {
	s, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO lexrag_chunks")
	prep.ExpectExec().
		WithArgs("c1", "d1", "Article 505", "fr", "penal_law", "505", `{"documentTitle":"Code pénal","tokenCount":4}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.WriteChunks(context.Background(), []domain.EmbeddedChunk{{
		Chunk: domain.Chunk{
			ID: "c1", DocumentID: "d1", Content: "Article 505",
			Language: language.French, Domain: legal.PenalLaw, ArticleNumber: "505",
			Metadata: domain.ChunkMetadata{DocumentTitle: "Code pénal", TokenCount: 4},
		},
		Vector: []float32{0.1},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestWriteChunks_RollsBackOnError(t *testing.T) {
	s, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO lexrag_chunks")
	prep.ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.WriteChunks(context.Background(), []domain.EmbeddedChunk{{Chunk: domain.Chunk{ID: "c1"}}})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
