// Package answer turns retrieved legal chunks into a grounded answer with
// citations, or a fixed fallback when nothing relevant was retrieved.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lexrag/internal/domain"
	"github.com/kailas-cloud/lexrag/internal/domain/language"
	"github.com/kailas-cloud/lexrag/internal/domain/legal"
	"github.com/kailas-cloud/lexrag/internal/domain/search/request"
	"github.com/kailas-cloud/lexrag/internal/logger"
	"github.com/kailas-cloud/lexrag/internal/metrics"
	"github.com/kailas-cloud/lexrag/internal/usecase/retrieval"
)

// Generation defaults.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
	DefaultTimeout     = 60 * time.Second
)

// Config tunes answer generation. Zero values and nil pointers select the
// defaults; a non-nil zero temperature or threshold is kept.
type Config struct {
	Temperature *float32
	MaxTokens   int
	Threshold   *float64
	Count       int
	// Timeout bounds the generation call.
	Timeout time.Duration
}

// Service answers legal questions.
type Service struct {
	retriever Retriever
	generator domain.Generator
	cache     AnswerCache
	cfg       Config
	temp      float32
	threshold float64
	logger    *zap.Logger
}

// New creates an answer service. cache may be nil.
func New(r Retriever, g domain.Generator, c AnswerCache, cfg Config, l *zap.Logger) *Service {
	temp := float32(DefaultTemperature)
	if cfg.Temperature != nil {
		temp = *cfg.Temperature
	}
	threshold := request.DefaultThreshold
	if cfg.Threshold != nil {
		threshold = *cfg.Threshold
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Count <= 0 {
		cfg.Count = request.DefaultCount
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &Service{
		retriever: r, generator: g, cache: c, cfg: cfg,
		temp: temp, threshold: threshold, logger: l,
	}
}

// Generate answers query in lang, detecting the language when lang is empty.
// Errors are classified with domain.Kind; callers show Apology(lang) instead
// of the raw error.
func (s *Service) Generate(ctx context.Context, query string, lang language.Language) (domain.Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Answer{}, fmt.Errorf("query is required: %w", domain.ErrInvalidQuery)
	}
	if !lang.IsValid() {
		lang = language.Detect(query)
	}
	tag, _ := legal.Detect(query)

	if s.cache != nil {
		if cached, ok := s.cache.GetAnswer(ctx, query, lang); ok {
			metrics.AnswersTotal.WithLabelValues("cached").Inc()
			return domain.Answer{
				Text:                cached.Answer,
				Citations:           cached.Citations,
				Language:            lang,
				RetrievedChunkCount: len(cached.Citations),
				Domain:              tag,
			}, nil
		}
	}

	threshold := s.threshold
	chunks, err := s.retriever.Retrieve(ctx, query, retrieval.Options{
		Threshold: &threshold,
		Count:     s.cfg.Count,
		Domain:    tag,
	})
	if err != nil {
		metrics.AnswersTotal.WithLabelValues("error").Inc()
		return domain.Answer{}, fmt.Errorf("retrieve: %w", err)
	}

	if len(chunks) == 0 {
		metrics.AnswersTotal.WithLabelValues("fallback").Inc()
		logger.FromContext(ctx).Info("No chunk cleared the threshold, answering with fallback",
			zap.String("language", string(lang)),
			zap.String("domain", string(tag)),
		)
		return Fallback(lang, tag), nil
	}

	tpl := templateFor(lang)
	prompt := domain.Prompt{
		System:      tpl.System,
		User:        fmt.Sprintf(tpl.User, buildContext(chunks, tpl), query),
		Temperature: s.temp,
		MaxTokens:   s.cfg.MaxTokens,
	}

	text, err := s.generate(ctx, prompt)
	if err != nil {
		metrics.AnswersTotal.WithLabelValues("error").Inc()
		s.logger.Warn("Answer generation failed", zap.Int("chunks", len(chunks)), zap.Error(err))
		return domain.Answer{}, err
	}

	citations := extractCitations(chunks, tpl)
	if s.cache != nil {
		s.cache.StoreAnswer(ctx, query, lang, text, citations)
	}
	metrics.AnswersTotal.WithLabelValues("generated").Inc()

	return domain.Answer{
		Text:                text,
		Citations:           citations,
		Language:            lang,
		RetrievedChunkCount: len(chunks),
		Domain:              tag,
	}, nil
}

func (s *Service) generate(ctx context.Context, p domain.Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	text, err := s.generator.Generate(ctx, p)
	if err != nil {
		if errors.Is(err, domain.ErrGeneration) {
			return "", fmt.Errorf("generate: %w", err)
		}
		return "", fmt.Errorf("generate: %w: %w", err, domain.ErrGeneration)
	}
	return text, nil
}

// Fallback is the deterministic answer given when retrieval found nothing.
func Fallback(lang language.Language, tag legal.Tag) domain.Answer {
	if !lang.IsValid() {
		lang = language.Default
	}
	tpl := templateFor(lang)
	return domain.Answer{
		Text: tpl.Fallback,
		Citations: []domain.Citation{{
			Source:    tpl.FallbackSource,
			Reference: tpl.FallbackReference,
			URL:       domain.OfficialPortalURL,
		}},
		Language:            lang,
		RetrievedChunkCount: 0,
		Domain:              tag,
	}
}

// buildContext numbers the chunks from 1 and shows each similarity as a percentage.
func buildContext(chunks []domain.RetrievedChunk, tpl PromptTemplate) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		article := ""
		if c.Chunk.ArticleNumber != "" {
			article = fmt.Sprintf(tpl.ArticleLabel, c.Chunk.ArticleNumber)
		}
		parts[i] = fmt.Sprintf("[%d] %s\n%s\n(Similarité: %.1f%%)", i+1, article, c.Chunk.Content, c.Score*100)
	}
	return tpl.ContextIntro + strings.Join(parts, "\n\n---\n\n")
}

func extractCitations(chunks []domain.RetrievedChunk, tpl PromptTemplate) []domain.Citation {
	out := make([]domain.Citation, len(chunks))
	for i, c := range chunks {
		meta := c.Chunk.Metadata
		source := meta.DocumentTitle
		if source == "" {
			source = tpl.DefaultSource
		}
		ref := meta.OfficialRef
		if ref == "" {
			ref = tpl.DefaultReference
		}
		similarity := c.Score
		out[i] = domain.Citation{
			Source:     source,
			Article:    c.Chunk.ArticleNumber,
			Reference:  ref,
			URL:        domain.OfficialPortalURL,
			Similarity: &similarity,
		}
	}
	return out
}
