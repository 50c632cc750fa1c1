package request

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/lexrag/internal/domain"
	"github.com/kailas-cloud/lexrag/internal/domain/search/filter"
)

// Retrieval parameter limits.
const (
	// MaxQueryLength is the maximum allowed query length in bytes.
	MaxQueryLength   = 4096
	DefaultCount     = 10
	MaxCount         = 100
	DefaultThreshold = 0.30
)

// Request is a validated retrieval query.
type Request struct {
	query     string
	threshold float64
	count     int
	filter    filter.Filter
}

// New validates and normalizes retrieval parameters.
// A nil threshold selects DefaultThreshold; count <= 0 selects DefaultCount.
func New(query string, threshold *float64, count int, f filter.Filter) (Request, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Request{}, fmt.Errorf("query is required: %w", domain.ErrInvalidQuery)
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d bytes): %w", MaxQueryLength, domain.ErrInvalidQuery)
	}
	th := DefaultThreshold
	if threshold != nil {
		th = *threshold
	}
	if th < 0 || th > 1 {
		return Request{}, fmt.Errorf("threshold must be between 0 and 1: %w", domain.ErrInvalidQuery)
	}
	if count <= 0 {
		count = DefaultCount
	}
	if count > MaxCount {
		count = MaxCount
	}
	return Request{query: query, threshold: th, count: count, filter: f}, nil
}

// Query returns the query text.
func (r Request) Query() string { return r.query }

// Threshold returns the minimum fused score (inclusive).
func (r Request) Threshold() float64 { return r.threshold }

// Count returns the maximum number of chunks to return.
func (r Request) Count() int { return r.count }

// Filter returns the domain/language filter.
func (r Request) Filter() filter.Filter { return r.filter }
