// Package retrieval implements hybrid retrieval: the query embedding is
// resolved through the cache, vector and lexical search run concurrently and
// their rankings are fused with weighted RRF.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/lexrag/internal/domain"
	"github.com/kailas-cloud/lexrag/internal/domain/language"
	"github.com/kailas-cloud/lexrag/internal/domain/legal"
	"github.com/kailas-cloud/lexrag/internal/domain/search/filter"
	"github.com/kailas-cloud/lexrag/internal/domain/search/request"
	"github.com/kailas-cloud/lexrag/internal/logger"
	"github.com/kailas-cloud/lexrag/internal/metrics"
)

// DefaultVectorThreshold is the minimum cosine similarity a vector candidate needs.
const DefaultVectorThreshold = 0.1

// Config tunes the retrieval pipeline. Zero values select the defaults.
type Config struct {
	Weights         Weights
	VectorThreshold *float64 // nil selects DefaultVectorThreshold
	// LexicalTimeout bounds the lexical search; on expiry the query continues
	// with vector results only. Zero means no separate bound.
	LexicalTimeout time.Duration
}

// Options are the per-query retrieval parameters.
type Options struct {
	Threshold *float64 // nil selects request.DefaultThreshold
	Count     int      // <= 0 selects request.DefaultCount
	Domain    legal.Tag
	Language  language.Language
}

// Service runs hybrid retrieval.
type Service struct {
	embed   Embedder
	vector  VectorSearcher
	lexical LexicalSearcher
	cfg     Config
	minSim  float64
	logger  *zap.Logger
}

// New creates a retrieval service.
func New(embed Embedder, vector VectorSearcher, lexical LexicalSearcher, cfg Config, l *zap.Logger) *Service {
	if cfg.Weights == (Weights{}) {
		cfg.Weights = Weights{Vector: DefaultVectorWeight, Lexical: DefaultLexicalWeight}
	}
	minSim := DefaultVectorThreshold
	if cfg.VectorThreshold != nil {
		minSim = *cfg.VectorThreshold
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &Service{embed: embed, vector: vector, lexical: lexical, cfg: cfg, minSim: minSim, logger: l}
}

// Retrieve returns the fused chunks for query, best first.
// An empty result is not an error. Embedding and vector failures fail the
// query; a lexical failure only removes the lexical contribution.
func (s *Service) Retrieve(ctx context.Context, query string, opts Options) ([]domain.RetrievedChunk, error) {
	req, err := request.New(query, opts.Threshold, opts.Count, filter.New(opts.Domain, opts.Language))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	chunks, err := s.retrieve(ctx, &req)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RetrievalDuration.WithLabelValues("hybrid", status).Observe(time.Since(start).Seconds())
	return chunks, err
}

func (s *Service) retrieve(ctx context.Context, req *request.Request) ([]domain.RetrievedChunk, error) {
	emb, err := s.embed.Embed(ctx, req.Query())
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingProviderError) {
			return nil, fmt.Errorf("vectorize query: %w", err)
		}
		return nil, fmt.Errorf("vectorize query: %w: %w", err, domain.ErrEmbeddingProviderError)
	}
	if len(emb.Embedding) == 0 {
		return nil, fmt.Errorf("vectorize query: empty embedding: %w", domain.ErrEmbeddingProviderError)
	}

	candidates := req.Count() * 2
	var vectorResults, lexicalResults []domain.ScoredResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		res, err := s.vector.Search(gctx, emb.Embedding, s.minSim, candidates, req.Filter())
		observe("vector", start, err)
		if err != nil {
			return fmt.Errorf("vector search: %w", err)
		}
		vectorResults = res
		return nil
	})
	g.Go(func() error {
		lexicalResults = s.searchLexical(gctx, req, candidates)
		return nil
	})
	if err := g.Wait(); err != nil {
		if !errors.Is(err, domain.ErrRetrieval) {
			err = fmt.Errorf("%w: %w", err, domain.ErrRetrieval)
		}
		return nil, err
	}

	fused := fuseRRF(vectorResults, lexicalResults, s.cfg.Weights, req.Threshold(), req.Count())

	logger.FromContext(ctx).Debug("Hybrid retrieval",
		zap.Int("vector_candidates", len(vectorResults)),
		zap.Int("lexical_candidates", len(lexicalResults)),
		zap.Int("fused", len(fused)),
		zap.String("domain", string(req.Filter().Domain())),
	)
	return fused, nil
}

// searchLexical never fails the query: errors and timeouts yield no results.
func (s *Service) searchLexical(ctx context.Context, req *request.Request, candidates int) []domain.ScoredResult {
	if s.cfg.LexicalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.LexicalTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := s.lexical.Search(ctx, req.Query(), candidates, req.Filter())
	observe("lexical", start, err)
	if err != nil {
		s.logger.Warn("Lexical search failed, continuing with vector results only",
			zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return nil
	}
	return res
}

func observe(source string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RetrievalDuration.WithLabelValues(source, status).Observe(time.Since(start).Seconds())
}
