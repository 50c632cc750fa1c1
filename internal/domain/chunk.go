package domain

import (
	"github.com/kailas-cloud/lexrag/internal/domain/language"
	"github.com/kailas-cloud/lexrag/internal/domain/legal"
)

// KeyPrefix namespaces every key this service writes.
const KeyPrefix = "lexrag:"

// OfficialPortalURL is the government portal cited for every legal source.
const OfficialPortalURL = "https://www.sgg.gov.ma"

// Chunk is an immutable unit of retrievable legal text.
// Chunks are created at ingestion and never updated in place.
type Chunk struct {
	ID            string
	DocumentID    string
	Content       string
	Language      language.Language
	Domain        legal.Tag
	ArticleNumber string // empty when the text carries no article reference
	Metadata      ChunkMetadata
}

// ChunkMetadata is the free-form part of a chunk.
type ChunkMetadata struct {
	DocumentTitle string            `json:"documentTitle,omitempty"`
	OfficialRef   string            `json:"officialRef,omitempty"`
	TokenCount    int               `json:"tokenCount,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// EmbeddedChunk is a chunk paired with its embedding, as written at ingestion.
type EmbeddedChunk struct {
	Chunk  Chunk
	Vector []float32
}

// ScoredResult is a chunk with its score and 1-based rank within one source list.
type ScoredResult struct {
	Chunk Chunk
	Score float64
	Rank  int
}

// RetrievedChunk is a fused result that survived the threshold and count cutoffs.
type RetrievedChunk struct {
	Chunk Chunk
	Score float64
}

// Citation points an answer back to its legal source.
type Citation struct {
	Source     string   `json:"source"`
	Article    string   `json:"article,omitempty"`
	Reference  string   `json:"reference"`
	URL        string   `json:"url,omitempty"`
	Similarity *float64 `json:"similarity,omitempty"`
}

// Answer is a grounded response to a legal question.
type Answer struct {
	Text                string
	Citations           []Citation
	Language            language.Language
	RetrievedChunkCount int
	Domain              legal.Tag // Undetermined when no domain matched
}

// Document is a legal text submitted for ingestion.
type Document struct {
	ID           string    `yaml:"id"`
	Title        string    `yaml:"title"`
	Domain       legal.Tag `yaml:"domain"`
	DocumentType string    `yaml:"document_type"`
	OfficialRef  string    `yaml:"official_ref"`
	ContentAr    string    `yaml:"content_ar"`
	ContentFr    string    `yaml:"content_fr"`
}
