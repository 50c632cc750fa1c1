// Package chi exposes retrieval and answering over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lexrag/internal/cache"
	"github.com/kailas-cloud/lexrag/internal/domain"
	"github.com/kailas-cloud/lexrag/internal/domain/language"
	"github.com/kailas-cloud/lexrag/internal/domain/legal"
	"github.com/kailas-cloud/lexrag/internal/logger"
	answeruc "github.com/kailas-cloud/lexrag/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/lexrag/internal/usecase/health"
	"github.com/kailas-cloud/lexrag/internal/usecase/retrieval"
)

// maxBodyBytes bounds request bodies; queries are capped well below this.
const maxBodyBytes = 64 << 10

// Retriever runs hybrid retrieval.
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts retrieval.Options) ([]domain.RetrievedChunk, error)
}

// Answerer generates grounded answers.
type Answerer interface {
	Generate(ctx context.Context, query string, lang language.Language) (domain.Answer, error)
}

// CacheInspector exposes cache statistics and maintenance.
type CacheInspector interface {
	Stats() cache.Stats
	Sizes(ctx context.Context) (cache.Sizes, error)
	Clear(ctx context.Context) error
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the lexrag HTTP API.
type Server struct {
	retrieval     Retriever
	answers       Answerer
	cache         CacheInspector
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	retrieval Retriever,
	answers Answerer,
	cache CacheInspector,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		retrieval: retrieval,
		answers:   answers,
		cache:     cache,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, ErrorResponseCodeValidationFailed),
		sentinelHandler(domain.ErrEmbeddingProviderError,
			http.StatusBadGateway, ErrorResponseCodeEmbeddingProviderError),
		sentinelHandler(domain.ErrGeneration, http.StatusBadGateway, ErrorResponseCodeGenerationFailed),
		sentinelHandler(domain.ErrRetrieval, http.StatusBadGateway, ErrorResponseCodeRetrievalFailed),
	}
	return s
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Post("/v1/retrieve", s.Retrieve)
	r.Post("/v1/answer", s.Answer)
	r.Get("/v1/cache/stats", s.CacheStats)
	r.Delete("/v1/cache", s.ClearCache)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Retrieve handles POST /v1/retrieve.
func (s *Server) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tag, err := legal.Parse(req.Domain)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, err.Error())
		return
	}
	lang, err := language.Parse(req.Language)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, err.Error())
		return
	}

	chunks, err := s.retrieval.Retrieve(r.Context(), req.Query, retrieval.Options{
		Threshold: req.Threshold,
		Count:     req.Count,
		Domain:    tag,
		Language:  lang,
	})
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	resp := RetrieveResponse{Chunks: make([]Chunk, len(chunks))}
	for i := range chunks {
		resp.Chunks[i] = chunkToDTO(&chunks[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// Answer handles POST /v1/answer. Backend failures answer 502 with a
// language-appropriate apology instead of the raw error.
func (s *Server) Answer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	lang, err := language.Parse(req.Language)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, err.Error())
		return
	}

	ans, err := s.answers.Generate(r.Context(), req.Query, lang)
	if err != nil {
		kind := domain.Kind(err)
		if kind == domain.KindInvalid {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, domain.ErrInvalidQuery.Error())
			return
		}
		if !lang.IsValid() {
			lang = language.Detect(req.Query)
		}
		status := http.StatusBadGateway
		if kind == domain.KindInternal {
			status = http.StatusInternalServerError
		}
		logger.FromContext(r.Context()).Warn("Answer failed",
			zap.String("error_kind", string(kind)), zap.Error(err))
		writeJSON(w, status, AnswerResponse{
			Answer:    answeruc.Apology(lang),
			Citations: []Citation{},
			Language:  string(lang),
			Direction: lang.Direction(),
			ErrorKind: string(kind),
		})
		return
	}

	writeJSON(w, http.StatusOK, answerToDTO(&ans))
}

// CacheStats handles GET /v1/cache/stats.
func (s *Server) CacheStats(w http.ResponseWriter, r *http.Request) {
	sizes, err := s.cache.Sizes(r.Context())
	if err != nil {
		s.logger.Warn("cache sizes unavailable", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stats": s.cache.Stats(),
		"sizes": sizes,
	})
}

// ClearCache handles DELETE /v1/cache.
func (s *Server) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.cache.Clear(r.Context()); err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrEmbeddingProviderError,
		domain.ErrGeneration,
		domain.ErrRetrieval,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	l := logger.FromContext(ctx)
	l.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, "internal error")
}

func chunkToDTO(c *domain.RetrievedChunk) Chunk {
	return Chunk{
		ID:            c.Chunk.ID,
		DocumentID:    c.Chunk.DocumentID,
		Content:       c.Chunk.Content,
		Language:      string(c.Chunk.Language),
		Domain:        string(c.Chunk.Domain),
		ArticleNumber: c.Chunk.ArticleNumber,
		DocumentTitle: c.Chunk.Metadata.DocumentTitle,
		OfficialRef:   c.Chunk.Metadata.OfficialRef,
		Score:         c.Score,
	}
}

func answerToDTO(a *domain.Answer) AnswerResponse {
	citations := make([]Citation, len(a.Citations))
	for i, c := range a.Citations {
		citations[i] = Citation{
			Source:     c.Source,
			Article:    c.Article,
			Reference:  c.Reference,
			URL:        c.URL,
			Similarity: c.Similarity,
		}
	}

	var tag *string
	if a.Domain != legal.Undetermined {
		d := string(a.Domain)
		tag = &d
	}

	return AnswerResponse{
		Answer:              a.Text,
		Citations:           citations,
		Language:            string(a.Language),
		Direction:           a.Language.Direction(),
		RetrievedChunkCount: a.RetrievedChunkCount,
		Domain:              tag,
	}
}
