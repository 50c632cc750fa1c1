package domain

import (
	"errors"
)

var (
	// ErrInvalidQuery signals an empty or oversized query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRetrieval signals a failure of the search backends.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrGeneration signals a failure of the answer generation model.
	ErrGeneration = errors.New("generation failed")
)

// ErrorKind is a coarse classification of a pipeline failure.
type ErrorKind string

// Error kinds reported to callers.
const (
	KindNone      ErrorKind = ""
	KindEmbedding ErrorKind = "embedding"
	KindRetrieval ErrorKind = "retrieval"
	KindGenerate  ErrorKind = "generation"
	KindInvalid   ErrorKind = "invalid_query"
	KindInternal  ErrorKind = "internal"
)

// Kind classifies err. Embedding failures take precedence over retrieval
// because the embedding step is wrapped by the retrieval step.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidQuery):
		return KindInvalid
	case errors.Is(err, ErrEmbeddingProviderError):
		return KindEmbedding
	case errors.Is(err, ErrGeneration):
		return KindGenerate
	case errors.Is(err, ErrRetrieval):
		return KindRetrieval
	default:
		return KindInternal
	}
}
