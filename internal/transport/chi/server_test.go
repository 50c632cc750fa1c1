package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/lexrag/internal/cache"
	"github.com/kailas-cloud/lexrag/internal/domain"
	"github.com/kailas-cloud/lexrag/internal/domain/language"
	"github.com/kailas-cloud/lexrag/internal/domain/legal"
	answeruc "github.com/kailas-cloud/lexrag/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/lexrag/internal/usecase/health"
	"github.com/kailas-cloud/lexrag/internal/usecase/retrieval"
)

// --- Mocks ---

type mockRetriever struct {
	chunks []domain.RetrievedChunk
	err    error
	opts   retrieval.Options
}

func (m *mockRetriever) Retrieve(_ context.Context, _ string, opts retrieval.Options) ([]domain.RetrievedChunk, error) {
	m.opts = opts
	return m.chunks, m.err
}

type mockAnswerer struct {
	answer domain.Answer
	err    error
	lang   language.Language
}

func (m *mockAnswerer) Generate(_ context.Context, _ string, lang language.Language) (domain.Answer, error) {
	m.lang = lang
	return m.answer, m.err
}

type mockCache struct {
	cleared bool
}

func (m *mockCache) Stats() cache.Stats {
	return cache.Stats{Embedding: cache.TypeStats{Hits: 3, Misses: 1, Total: 4, HitRate: 75}}
}

func (m *mockCache) Sizes(context.Context) (cache.Sizes, error) {
	return cache.Sizes{Embeddings: 4, Answers: 1}, nil
}

func (m *mockCache) Clear(context.Context) error {
	m.cleared = true
	return nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func newTestRouter(ret Retriever, ans Answerer, c CacheInspector, vectorErr error) http.Handler {
	health := healthuc.New(healthuc.Store("vector_store", pinger{err: vectorErr}, true))
	srv := NewServer(ret, ans, c, health, nil)
	r := chi.NewRouter()
	srv.Register(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

// --- Retrieve ---

func TestRetrieve_OK(t *testing.T) {
	ret := &mockRetriever{chunks: []domain.RetrievedChunk{{
		Chunk: domain.Chunk{
			ID: "c1", DocumentID: "d1", Content: "Le vol est puni", Language: language.French,
			Domain: legal.PenalLaw, ArticleNumber: "505",
			Metadata: domain.ChunkMetadata{DocumentTitle: "Code pénal"},
		},
		Score: 0.8,
	}}}
	h := newTestRouter(ret, &mockAnswerer{}, &mockCache{}, nil)

	rr := do(t, h, http.MethodPost, "/v1/retrieve", `{"query":"vol","threshold":0.5,"count":3,"domain":"penal_law","language":"fr"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	resp := decode[RetrieveResponse](t, rr)
	if len(resp.Chunks) != 1 || resp.Chunks[0].ArticleNumber != "505" || resp.Chunks[0].DocumentTitle != "Code pénal" {
		t.Errorf("chunks = %+v", resp.Chunks)
	}
	if ret.opts.Count != 3 || *ret.opts.Threshold != 0.5 || ret.opts.Domain != legal.PenalLaw || ret.opts.Language != language.French {
		t.Errorf("options = %+v", ret.opts)
	}
}

func TestRetrieve_EmptyListIsNotNull(t *testing.T) {
	h := newTestRouter(&mockRetriever{}, &mockAnswerer{}, &mockCache{}, nil)

	rr := do(t, h, http.MethodPost, "/v1/retrieve", `{"query":"hello"}`)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"chunks":[]`) {
		t.Errorf("status = %d, body = %s", rr.Code, rr.Body)
	}
}

func TestRetrieve_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		code   ErrorResponseCode
	}{
		{"malformed body", `{"query":`, nil, http.StatusBadRequest, ErrorResponseCodeBadRequest},
		{"unknown domain", `{"query":"x","domain":"maritime"}`, nil, http.StatusBadRequest, ErrorResponseCodeValidationFailed},
		{"unknown language", `{"query":"x","language":"de"}`, nil, http.StatusBadRequest, ErrorResponseCodeValidationFailed},
		{"invalid query", `{"query":""}`, fmt.Errorf("query is required: %w", domain.ErrInvalidQuery),
			http.StatusBadRequest, ErrorResponseCodeValidationFailed},
		{"embedding", `{"query":"x"}`, fmt.Errorf("vectorize: %w", domain.ErrEmbeddingProviderError),
			http.StatusBadGateway, ErrorResponseCodeEmbeddingProviderError},
		{"retrieval", `{"query":"x"}`, fmt.Errorf("vector search: %w", domain.ErrRetrieval),
			http.StatusBadGateway, ErrorResponseCodeRetrievalFailed},
		{"internal", `{"query":"x"}`, errors.New("boom"), http.StatusInternalServerError, ErrorResponseCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&mockRetriever{err: tt.err}, &mockAnswerer{}, &mockCache{}, nil)
			rr := do(t, h, http.MethodPost, "/v1/retrieve", tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			resp := decode[ErrorResponse](t, rr)
			if resp.Code != tt.code {
				t.Errorf("code = %s, want %s", resp.Code, tt.code)
			}
			if tt.name == "internal" && strings.Contains(resp.Message, "boom") {
				t.Error("internal error details must not leak")
			}
		})
	}
}

// --- Answer ---

func TestAnswer_OK(t *testing.T) {
	sim := 0.9
	ans := &mockAnswerer{answer: domain.Answer{
		Text:                "الجواب",
		Citations:           []domain.Citation{{Source: "مجموعة القانون الجنائي", Article: "505", Reference: "ظهير", Similarity: &sim}},
		Language:            language.Arabic,
		RetrievedChunkCount: 1,
		Domain:              legal.PenalLaw,
	}}
	h := newTestRouter(&mockRetriever{}, ans, &mockCache{}, nil)

	rr := do(t, h, http.MethodPost, "/v1/answer", `{"query":"ما هي عقوبة السرقة","language":"ar"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	resp := decode[AnswerResponse](t, rr)
	if resp.Answer != "الجواب" || resp.Direction != "rtl" || resp.RetrievedChunkCount != 1 {
		t.Errorf("response = %+v", resp)
	}
	if resp.Domain == nil || *resp.Domain != "penal_law" {
		t.Errorf("domain = %v", resp.Domain)
	}
	if len(resp.Citations) != 1 || resp.Citations[0].Article != "505" {
		t.Errorf("citations = %+v", resp.Citations)
	}
	if ans.lang != language.Arabic {
		t.Errorf("language hint = %q", ans.lang)
	}
}

func TestAnswer_UndeterminedDomainIsNull(t *testing.T) {
	ans := &mockAnswerer{answer: answeruc.Fallback(language.French, legal.Undetermined)}
	h := newTestRouter(&mockRetriever{}, ans, &mockCache{}, nil)

	rr := do(t, h, http.MethodPost, "/v1/answer", `{"query":"hello"}`)
	if !strings.Contains(rr.Body.String(), `"domain":null`) {
		t.Errorf("body = %s", rr.Body)
	}
}

func TestAnswer_FailureReturnsApology(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		err    error
		status int
		kind   domain.ErrorKind
		lang   language.Language
	}{
		{"generation arabic", "ما هي عقوبة السرقة", fmt.Errorf("generate: %w", domain.ErrGeneration),
			http.StatusBadGateway, domain.KindGenerate, language.Arabic},
		{"retrieval french", "quelle peine pour le vol", fmt.Errorf("retrieve: %w", domain.ErrRetrieval),
			http.StatusBadGateway, domain.KindRetrieval, language.French},
		{"embedding", "vol", fmt.Errorf("x: %w", domain.ErrEmbeddingProviderError),
			http.StatusBadGateway, domain.KindEmbedding, language.French},
		{"internal", "vol", errors.New("boom"), http.StatusInternalServerError, domain.KindInternal, language.French},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&mockRetriever{}, &mockAnswerer{err: tt.err}, &mockCache{}, nil)
			body, _ := json.Marshal(AnswerRequest{Query: tt.query})
			rr := do(t, h, http.MethodPost, "/v1/answer", string(body))
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			resp := decode[AnswerResponse](t, rr)
			if resp.ErrorKind != string(tt.kind) {
				t.Errorf("error_kind = %q, want %q", resp.ErrorKind, tt.kind)
			}
			if resp.Answer != answeruc.Apology(tt.lang) || resp.Language != string(tt.lang) {
				t.Errorf("answer = %q (%s)", resp.Answer, resp.Language)
			}
			if strings.Contains(rr.Body.String(), "boom") {
				t.Error("raw error leaked to the client")
			}
		})
	}
}

func TestAnswer_InvalidQuery(t *testing.T) {
	h := newTestRouter(&mockRetriever{}, &mockAnswerer{err: fmt.Errorf("x: %w", domain.ErrInvalidQuery)}, &mockCache{}, nil)

	rr := do(t, h, http.MethodPost, "/v1/answer", `{"query":" "}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rr.Code)
	}
}

// --- Cache, health ---

func TestCacheStats(t *testing.T) {
	h := newTestRouter(&mockRetriever{}, &mockAnswerer{}, &mockCache{}, nil)

	rr := do(t, h, http.MethodGet, "/v1/cache/stats", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp struct {
		Stats cache.Stats `json:"stats"`
		Sizes cache.Sizes `json:"sizes"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Stats.Embedding.HitRate != 75 || resp.Sizes.Embeddings != 4 {
		t.Errorf("response = %+v", resp)
	}
}

func TestClearCache(t *testing.T) {
	c := &mockCache{}
	h := newTestRouter(&mockRetriever{}, &mockAnswerer{}, c, nil)

	rr := do(t, h, http.MethodDelete, "/v1/cache", "")
	if rr.Code != http.StatusNoContent || !c.cleared {
		t.Errorf("status = %d, cleared = %v", rr.Code, c.cleared)
	}
}

func TestHealthCheck(t *testing.T) {
	h := newTestRouter(&mockRetriever{}, &mockAnswerer{}, &mockCache{}, nil)
	rr := do(t, h, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Errorf("healthy: status = %d", rr.Code)
	}

	h = newTestRouter(&mockRetriever{}, &mockAnswerer{}, &mockCache{}, errors.New("down"))
	rr = do(t, h, http.MethodGet, "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy: status = %d", rr.Code)
	}
	resp := decode[HealthResponse](t, rr)
	if resp.Status != "error" || resp.Checks["vector_store"] != "error" {
		t.Errorf("response = %+v", resp)
	}
}
