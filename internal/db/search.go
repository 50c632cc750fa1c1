package db

import "github.com/kailas-cloud/lexrag/internal/domain/search/filter"

// Chunk field names shared by every backend (hash fields, SQL aliases, memory index).
const (
	FieldID          = "id"
	FieldDocumentID  = "document_id"
	FieldContent     = "__content"
	FieldLanguage    = "language"
	FieldDomain      = "domain"
	FieldArticle     = "article_number"
	FieldMetadata    = "metadata"
	FieldVector      = "__vector"
	FieldVectorScore = "__vector_score"
)

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Filter       filter.Filter
	Vector       []float32
	K            int
	ReturnFields []string
}

// TextQuery is the input for lexical search.
type TextQuery struct {
	IndexName    string
	KeyPrefix    string // key pattern prefix for backends that scan (substring fallback)
	Query        string
	Filter       filter.Filter
	TopK         int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single chunk hit from a search.
// Score is similarity for KNN (higher is closer) and relevance for text search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
