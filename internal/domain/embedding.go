package domain

import (
	"context"
	"fmt"
	"time"
)

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single API call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker verifies provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries one vector and one token count per input text,
// plus the aggregate usage reported by the provider.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	TokenCounts  []int
	PromptTokens int
	TotalTokens  int
}

// BatchFallback calls Embed once per text for providers without a native batch endpoint.
func BatchFallback(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	embeddings := make([][]float32, len(texts))
	counts := make([]int, len(texts))
	var totalPrompt, totalTokens int

	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("fallback embed [%d]: %w", i, err)
		}
		embeddings[i] = res.Embedding
		counts[i] = res.TotalTokens
		totalPrompt += res.PromptTokens
		totalTokens += res.TotalTokens
	}

	return BatchEmbeddingResult{
		Embeddings:   embeddings,
		TokenCounts:  counts,
		PromptTokens: totalPrompt,
		TotalTokens:  totalTokens,
	}, nil
}

// SplitTokens spreads an aggregate token count evenly over n texts.
// The remainder goes to the first texts so the parts sum to total.
func SplitTokens(total, n int) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	base, rem := total/n, total%n
	for i := range out {
		out[i] = base
		if i < rem {
			out[i]++
		}
	}
	return out
}

// DeadlineEmbedder bounds every provider call with a timeout.
type DeadlineEmbedder struct {
	inner   Embedder
	timeout time.Duration
}

// NewDeadlineEmbedder wraps inner. A non-positive timeout disables the bound.
func NewDeadlineEmbedder(inner Embedder, timeout time.Duration) *DeadlineEmbedder {
	return &DeadlineEmbedder{inner: inner, timeout: timeout}
}

// Embed delegates to the inner embedder under the deadline.
func (e *DeadlineEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	res, err := e.inner.Embed(ctx, text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("deadline embed: %w", err)
	}
	return res, nil
}

// BatchEmbed delegates to the inner batch embedder under the deadline.
// Inner embedders without batch support fall back to per-text calls.
func (e *DeadlineEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	if be, ok := e.inner.(BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("deadline batch embed: %w", err)
		}
		return res, nil
	}

	res, err := BatchFallback(ctx, e.inner, texts)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("deadline batch embed fallback: %w", err)
	}
	return res, nil
}

// HealthCheck forwards to the inner embedder when it supports health checks.
func (e *DeadlineEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
