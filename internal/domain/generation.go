package domain

import "context"

// Prompt is one chat completion request: a system instruction plus the user
// turn carrying the question and its legal context.
type Prompt struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Generator produces answer text from a prompt.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}
