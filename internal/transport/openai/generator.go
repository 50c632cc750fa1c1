package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lexrag/internal/domain"
	"github.com/kailas-cloud/lexrag/internal/metrics"
)

var _ domain.Generator = (*Generator)(nil)

// GeneratorConfig holds the chat model settings.
type GeneratorConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	// Breaker trips after BreakerMinRequests calls with a failure ratio of at
	// least BreakerFailureRatio and stays open for BreakerOpenTimeout.
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration

	Logger *zap.Logger
}

// Generator answers prompts with an OpenAI-compatible chat model.
// Calls are never retried; an open breaker fails fast.
type Generator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[string]
	logger  *zap.Logger
}

// NewGenerator creates a chat generator guarded by a circuit breaker.
func NewGenerator(cfg *GeneratorConfig) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	minRequests := cfg.BreakerMinRequests
	if minRequests == 0 {
		minRequests = 5
	}
	ratio := cfg.BreakerFailureRatio
	if ratio <= 0 {
		ratio = 0.5
	}

	settings := gobreaker.Settings{
		Name:        "generation",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up is not a model failure.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}

	return &Generator{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		breaker: gobreaker.NewCircuitBreaker[string](settings),
		logger:  logger,
	}
}

// Generate sends the prompt and returns the first choice's text.
// Every failure wraps domain.ErrGeneration.
func (g *Generator) Generate(ctx context.Context, p domain.Prompt) (string, error) {
	start := time.Now()
	text, err := g.breaker.Execute(func() (string, error) {
		return g.complete(ctx, p)
	})
	metrics.GenerationRequestDuration.WithLabelValues(g.model).Observe(time.Since(start).Seconds())

	if err != nil {
		status := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			status = "rejected"
		}
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, status).Inc()
		if errors.Is(err, domain.ErrGeneration) {
			return "", err
		}
		return "", fmt.Errorf("generate: %w: %w", err, domain.ErrGeneration)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(g.model, "success").Inc()
	return text, nil
}

func (g *Generator) complete(ctx context.Context, p domain.Prompt) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	// go-openai omits a zero temperature, which the API reads as 1.
	temperature := p.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
		Temperature: temperature,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w: %w", describeChatError(err), domain.ErrGeneration)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty chat completion response: %w", domain.ErrGeneration)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty chat completion content: %w", domain.ErrGeneration)
	}
	return text, nil
}

func describeChatError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("API error %d: %s", reqErr.HTTPStatusCode, detail)
		}
		return fmt.Errorf("API error %d", reqErr.HTTPStatusCode)
	}
	return err
}
