// Package ingest turns legal documents into embedded, searchable chunks.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lexrag/internal/domain"
	"github.com/kailas-cloud/lexrag/internal/domain/language"
)

// DefaultBatchSize is the number of chunks embedded per provider call.
const DefaultBatchSize = 20

// Report summarizes one ingested document.
type Report struct {
	DocumentID string
	Chunks     map[language.Language]int
	Tokens     int
}

// Service ingests documents.
type Service struct {
	embed        domain.BatchEmbedder
	writers      []ChunkWriter
	batchSize    int
	maxChunkSize int
	newID        func() string
	logger       *zap.Logger
}

// New creates an ingestion service writing every chunk to each of writers.
func New(embed domain.BatchEmbedder, l *zap.Logger, writers ...ChunkWriter) *Service {
	if l == nil {
		l = zap.NewNop()
	}
	return &Service{
		embed:        embed,
		writers:      writers,
		batchSize:    DefaultBatchSize,
		maxChunkSize: DefaultMaxChunkSize,
		newID:        uuid.NewString,
		logger:       l,
	}
}

// WithBatchSize configures the embedding batch size.
func (s *Service) WithBatchSize(size int) *Service {
	if size > 0 {
		s.batchSize = size
	}
	return s
}

// WithMaxChunkSize configures the maximum chunk length in characters.
func (s *Service) WithMaxChunkSize(size int) *Service {
	if size > 0 {
		s.maxChunkSize = size
	}
	return s
}

// Ingest chunks, embeds and stores the Arabic and French content of doc.
// Each language is processed separately. A document without an id gets one.
func (s *Service) Ingest(ctx context.Context, doc *domain.Document) (Report, error) {
	if strings.TrimSpace(doc.Title) == "" {
		return Report{}, fmt.Errorf("document title is required")
	}
	if strings.TrimSpace(doc.ContentAr) == "" && strings.TrimSpace(doc.ContentFr) == "" {
		return Report{}, fmt.Errorf("document %q has no content", doc.Title)
	}
	if doc.Domain != "" && !doc.Domain.IsValid() {
		return Report{}, fmt.Errorf("document %q: unknown legal domain %q", doc.Title, doc.Domain)
	}
	if doc.ID == "" {
		doc.ID = s.newID()
	}

	report := Report{DocumentID: doc.ID, Chunks: make(map[language.Language]int, 2)}
	for _, part := range []struct {
		lang    language.Language
		content string
	}{
		{language.Arabic, doc.ContentAr},
		{language.French, doc.ContentFr},
	} {
		if strings.TrimSpace(part.content) == "" {
			continue
		}
		n, tokens, err := s.process(ctx, doc, part.lang, part.content)
		if err != nil {
			return report, fmt.Errorf("ingest %s content of %q: %w", part.lang, doc.Title, err)
		}
		report.Chunks[part.lang] = n
		report.Tokens += tokens
	}

	s.logger.Info("Document ingested",
		zap.String("document_id", doc.ID),
		zap.String("title", doc.Title),
		zap.Int("chunks_ar", report.Chunks[language.Arabic]),
		zap.Int("chunks_fr", report.Chunks[language.French]),
		zap.Int("tokens", report.Tokens),
	)
	return report, nil
}

func (s *Service) process(ctx context.Context, doc *domain.Document, lang language.Language, content string) (int, int, error) {
	texts := ChunkText(content, s.maxChunkSize)
	var tokens int

	for start := 0; start < len(texts); start += s.batchSize {
		end := min(start+s.batchSize, len(texts))
		batch := texts[start:end]

		res, err := s.embed.BatchEmbed(ctx, batch)
		if err != nil {
			return start, tokens, fmt.Errorf("embed chunks %d-%d: %w", start+1, end, err)
		}
		if len(res.Embeddings) != len(batch) {
			return start, tokens, fmt.Errorf("embed chunks %d-%d: got %d vectors: %w",
				start+1, end, len(res.Embeddings), domain.ErrEmbeddingProviderError)
		}

		chunks := make([]domain.EmbeddedChunk, len(batch))
		for i, text := range batch {
			var tokenCount int
			if i < len(res.TokenCounts) {
				tokenCount = res.TokenCounts[i]
			}
			chunks[i] = domain.EmbeddedChunk{
				Chunk: domain.Chunk{
					ID:            s.newID(),
					DocumentID:    doc.ID,
					Content:       text,
					Language:      lang,
					Domain:        doc.Domain,
					ArticleNumber: ExtractArticleNumber(text),
					Metadata: domain.ChunkMetadata{
						DocumentTitle: doc.Title,
						OfficialRef:   doc.OfficialRef,
						TokenCount:    tokenCount,
					},
				},
				Vector: res.Embeddings[i],
			}
		}

		for _, w := range s.writers {
			if err := w.WriteChunks(ctx, chunks); err != nil {
				return start, tokens, fmt.Errorf("write chunks %d-%d: %w", start+1, end, err)
			}
		}
		tokens += res.TotalTokens
		s.logger.Debug("Chunk batch stored",
			zap.String("document_id", doc.ID),
			zap.String("language", string(lang)),
			zap.Int("from", start+1),
			zap.Int("to", end),
		)
	}
	return len(texts), tokens, nil
}
