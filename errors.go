package lexrag

import (
	"errors"

	"github.com/kailas-cloud/lexrag/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidQuery           = domain.ErrInvalidQuery
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrRetrieval              = domain.ErrRetrieval
	ErrGeneration             = domain.ErrGeneration

	// ErrGeneratorNotConfigured is returned by Answer without WithGenerator.
	ErrGeneratorNotConfigured = errors.New("lexrag: generator not configured (use WithGenerator)")
)
