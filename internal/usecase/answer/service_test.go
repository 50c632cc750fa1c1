package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/lexrag/internal/cache"
	"github.com/kailas-cloud/lexrag/internal/domain"
	"github.com/kailas-cloud/lexrag/internal/domain/language"
	"github.com/kailas-cloud/lexrag/internal/domain/legal"
	"github.com/kailas-cloud/lexrag/internal/metrics"
	"github.com/kailas-cloud/lexrag/internal/usecase/retrieval"
)

func TestMain(m *testing.M) {
	metrics.Register()
	m.Run()
}

// --- Mocks ---

type mockRetriever struct {
	chunks   []domain.RetrievedChunk
	err      error
	calls    int
	lastOpts retrieval.Options
}

func (m *mockRetriever) Retrieve(_ context.Context, _ string, opts retrieval.Options) ([]domain.RetrievedChunk, error) {
	m.calls++
	m.lastOpts = opts
	return m.chunks, m.err
}

type mockGenerator struct {
	text   string
	err    error
	calls  int
	prompt domain.Prompt
}

func (m *mockGenerator) Generate(_ context.Context, p domain.Prompt) (string, error) {
	m.calls++
	m.prompt = p
	return m.text, m.err
}

func theftChunks() []domain.RetrievedChunk {
	return []domain.RetrievedChunk{
		{
			Chunk: domain.Chunk{
				ID: "ar-505", Content: "يعاقب على السرقة بالحبس", Language: language.Arabic,
				Domain: legal.PenalLaw, ArticleNumber: "505",
				Metadata: domain.ChunkMetadata{DocumentTitle: "مجموعة القانون الجنائي", OfficialRef: "ظهير شريف رقم 1.59.413"},
			},
			Score: 0.873,
		},
		{
			Chunk: domain.Chunk{ID: "fr-x", Content: "Le vol qualifié est puni", Language: language.French, Domain: legal.PenalLaw},
			Score: 0.5,
		},
	}
}

func newCache() *cache.Cache {
	return cache.New(cache.NewMemoryBackend(), cache.Config{Enabled: true, EmbeddingTTL: time.Hour, AnswerTTL: time.Hour})
}

// --- Tests ---

func TestGenerate_ExplicitZerosAreKept(t *testing.T) {
	ret := &mockRetriever{chunks: theftChunks()}
	gen := &mockGenerator{text: "ok"}
	var temp float32
	var threshold float64
	svc := New(ret, gen, nil, Config{Temperature: &temp, Threshold: &threshold}, nil)

	if _, err := svc.Generate(context.Background(), "Quelle est la peine pour le vol ?", language.French); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.prompt.Temperature != 0 {
		t.Errorf("temperature = %v, want 0", gen.prompt.Temperature)
	}
	if *ret.lastOpts.Threshold != 0 {
		t.Errorf("threshold = %v, want 0", *ret.lastOpts.Threshold)
	}
}

func TestGenerate_GroundedAnswer(t *testing.T) {
	ret := &mockRetriever{chunks: theftChunks()}
	gen := &mockGenerator{text: "Le vol est puni par l'article cinq cent cinq."}
	svc := New(ret, gen, nil, Config{}, nil)

	ans, err := svc.Generate(context.Background(), "Quelle est la peine pour le vol ?", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Language != language.French {
		t.Errorf("language = %q, want fr", ans.Language)
	}
	if ans.Domain != legal.PenalLaw {
		t.Errorf("domain = %q, want penal_law", ans.Domain)
	}
	if ans.RetrievedChunkCount != 2 || ans.Text != gen.text {
		t.Errorf("answer = %+v", ans)
	}
	if ret.lastOpts.Domain != legal.PenalLaw || ret.lastOpts.Count != 10 || *ret.lastOpts.Threshold != 0.30 {
		t.Errorf("retrieval options = %+v", ret.lastOpts)
	}
	if gen.prompt.Temperature != DefaultTemperature || gen.prompt.MaxTokens != DefaultMaxTokens {
		t.Errorf("prompt params = %v / %d", gen.prompt.Temperature, gen.prompt.MaxTokens)
	}
	if gen.prompt.System != Templates[language.French].System {
		t.Error("expected the French system prompt")
	}
}

func TestGenerate_PromptContext(t *testing.T) {
	gen := &mockGenerator{text: "ok"}
	svc := New(&mockRetriever{chunks: theftChunks()}, gen, nil, Config{}, nil)

	if _, err := svc.Generate(context.Background(), "ما هي عقوبة السرقة؟", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	user := gen.prompt.User
	for _, want := range []string{
		"النصوص القانونية المرجعية:\n\n",
		"[1] المادة 505\nيعاقب على السرقة بالحبس\n(Similarité: 87.3%)",
		"\n\n---\n\n[2] \nLe vol qualifié est puni\n(Similarité: 50.0%)",
		"السؤال: ما هي عقوبة السرقة؟",
	} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q:\n%s", want, user)
		}
	}
}

func TestGenerate_Citations(t *testing.T) {
	svc := New(&mockRetriever{chunks: theftChunks()}, &mockGenerator{text: "ok"}, nil, Config{}, nil)

	ans, err := svc.Generate(context.Background(), "vol", language.French)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ans.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(ans.Citations))
	}
	first := ans.Citations[0]
	if first.Source != "مجموعة القانون الجنائي" || first.Article != "505" || first.Reference != "ظهير شريف رقم 1.59.413" {
		t.Errorf("citation[0] = %+v", first)
	}
	if first.URL != domain.OfficialPortalURL || first.Similarity == nil || *first.Similarity != 0.873 {
		t.Errorf("citation[0] url/similarity = %s %v", first.URL, first.Similarity)
	}
	second := ans.Citations[1]
	if second.Source != "القانون المغربي" || second.Reference != "مصادر رسمية" || second.Article != "" {
		t.Errorf("citation[1] defaults = %+v", second)
	}
}

func TestGenerate_EmptyResultFallback(t *testing.T) {
	gen := &mockGenerator{text: "must not be used"}
	svc := New(&mockRetriever{}, gen, nil, Config{}, nil)

	before := testutil.ToFloat64(metrics.AnswersTotal.WithLabelValues("fallback"))
	ans, err := svc.Generate(context.Background(), "quantum physics alien technology", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.calls != 0 {
		t.Fatal("generation model must not be invoked for the fallback")
	}
	if ans.RetrievedChunkCount != 0 {
		t.Errorf("retrieved = %d", ans.RetrievedChunkCount)
	}
	if ans.Domain != legal.Undetermined {
		t.Errorf("domain = %q, want undetermined", ans.Domain)
	}
	if ans.Text != Templates[language.French].Fallback {
		t.Errorf("unexpected fallback text: %q", ans.Text)
	}
	if len(ans.Citations) != 1 || ans.Citations[0].Source != "Secrétariat Général du Gouvernement" ||
		ans.Citations[0].Reference != "Sources officielles" || ans.Citations[0].URL != domain.OfficialPortalURL {
		t.Errorf("citations = %+v", ans.Citations)
	}
	if got := testutil.ToFloat64(metrics.AnswersTotal.WithLabelValues("fallback")) - before; got != 1 {
		t.Errorf("fallback counter delta = %v", got)
	}

	again, _ := svc.Generate(context.Background(), "quantum physics alien technology", "")
	if again.Text != ans.Text || len(again.Citations) != 1 {
		t.Error("fallback must be deterministic")
	}
}

func TestFallback_Arabic(t *testing.T) {
	ans := Fallback(language.Arabic, legal.FamilyLaw)
	if ans.Language != language.Arabic || ans.Domain != legal.FamilyLaw {
		t.Errorf("answer = %+v", ans)
	}
	if ans.Citations[0].Source != "الأمانة العامة للحكومة" || ans.Citations[0].Reference != "مصادر رسمية" {
		t.Errorf("citation = %+v", ans.Citations[0])
	}
	if !strings.Contains(ans.Text, domain.OfficialPortalURL) {
		t.Error("fallback must point at the official portal")
	}
}

func TestGenerate_RetrievalErrorPropagates(t *testing.T) {
	gen := &mockGenerator{}
	ret := &mockRetriever{err: fmt.Errorf("vector search: %w", domain.ErrRetrieval)}
	svc := New(ret, gen, nil, Config{}, nil)

	_, err := svc.Generate(context.Background(), "vol", "")
	if domain.Kind(err) != domain.KindRetrieval {
		t.Fatalf("kind = %q, err = %v", domain.Kind(err), err)
	}
	if gen.calls != 0 {
		t.Error("generator must not run after a retrieval failure")
	}
}

func TestGenerate_GenerationErrorClassified(t *testing.T) {
	c := newCache()
	svc := New(&mockRetriever{chunks: theftChunks()}, &mockGenerator{err: errors.New("503")}, c, Config{}, nil)

	_, err := svc.Generate(context.Background(), "vol", language.French)
	if !errors.Is(err, domain.ErrGeneration) || domain.Kind(err) != domain.KindGenerate {
		t.Fatalf("expected generation error, got %v", err)
	}
	if _, ok := c.GetAnswer(context.Background(), "vol", language.French); ok {
		t.Error("failed answers must not be cached")
	}
}

func TestGenerate_InvalidQuery(t *testing.T) {
	ret := &mockRetriever{}
	svc := New(ret, &mockGenerator{}, nil, Config{}, nil)

	_, err := svc.Generate(context.Background(), " \t ", "")
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
	if ret.calls != 0 {
		t.Error("retriever must not run for an invalid query")
	}
}

func TestGenerate_AnswerCache(t *testing.T) {
	c := newCache()
	ret := &mockRetriever{chunks: theftChunks()}
	gen := &mockGenerator{text: "réponse"}
	svc := New(ret, gen, c, Config{}, nil)
	ctx := context.Background()

	first, err := svc.Generate(ctx, "vol", language.French)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := svc.Generate(ctx, "vol", language.French)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if gen.calls != 1 || ret.calls != 1 {
		t.Errorf("calls: generator %d, retriever %d; want 1 each", gen.calls, ret.calls)
	}
	if second.Text != first.Text || len(second.Citations) != len(first.Citations) {
		t.Errorf("cached answer differs: %+v vs %+v", second, first)
	}
	if second.RetrievedChunkCount != 2 || second.Domain != legal.PenalLaw {
		t.Errorf("cached answer = %+v", second)
	}

	// Another language is another slot.
	if _, err := svc.Generate(ctx, "vol", language.Arabic); err != nil {
		t.Fatalf("arabic: %v", err)
	}
	if gen.calls != 2 {
		t.Errorf("generator calls = %d, want 2", gen.calls)
	}
}

func TestGenerate_FallbackNotCached(t *testing.T) {
	c := newCache()
	ret := &mockRetriever{}
	svc := New(ret, &mockGenerator{}, c, Config{}, nil)

	_, _ = svc.Generate(context.Background(), "hello", "")
	_, _ = svc.Generate(context.Background(), "hello", "")
	if ret.calls != 2 {
		t.Errorf("retriever calls = %d, want 2", ret.calls)
	}
}

func TestApology(t *testing.T) {
	if Apology(language.Arabic) == Apology(language.French) {
		t.Error("apology must be language specific")
	}
	if Apology("de") != Apology(language.French) {
		t.Error("unknown languages fall back to French")
	}
}
