package request

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/lexrag/internal/domain"
	"github.com/kailas-cloud/lexrag/internal/domain/legal"
	"github.com/kailas-cloud/lexrag/internal/domain/search/filter"
)

func ptr(f float64) *float64 { return &f }

func TestNew_Defaults(t *testing.T) {
	r, err := New("  vol  ", nil, 0, filter.Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Query() != "vol" {
		t.Errorf("Query() = %q", r.Query())
	}
	if r.Threshold() != DefaultThreshold {
		t.Errorf("Threshold() = %v", r.Threshold())
	}
	if r.Count() != DefaultCount {
		t.Errorf("Count() = %d", r.Count())
	}
}

func TestNew_ZeroThresholdIsKept(t *testing.T) {
	r, err := New("vol", ptr(0), 5, filter.ByDomain(legal.PenalLaw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Threshold() != 0 {
		t.Errorf("Threshold() = %v, want 0", r.Threshold())
	}
	if r.Count() != 5 || r.Filter().Domain() != legal.PenalLaw {
		t.Errorf("Count() = %d, Filter().Domain() = %q", r.Count(), r.Filter().Domain())
	}
}

func TestNew_ClampsCount(t *testing.T) {
	r, err := New("vol", nil, 1000, filter.Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Count() != MaxCount {
		t.Errorf("Count() = %d, want %d", r.Count(), MaxCount)
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		threshold *float64
	}{
		{"empty", "", nil},
		{"blank", "   ", nil},
		{"too long", strings.Repeat("a", MaxQueryLength+1), nil},
		{"negative threshold", "vol", ptr(-0.1)},
		{"threshold above one", "vol", ptr(1.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.query, tt.threshold, 0, filter.Filter{})
			if !errors.Is(err, domain.ErrInvalidQuery) {
				t.Errorf("expected ErrInvalidQuery, got %v", err)
			}
		})
	}
}
