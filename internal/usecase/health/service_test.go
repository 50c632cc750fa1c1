package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

// --- Mocks ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockProvider struct {
	err error
}

func (m *mockProvider) HealthCheck(_ context.Context) error { return m.err }

func newService(vectorErr, lexicalErr, embErr error) *Service {
	return New(
		Store("vector_store", &mockPinger{err: vectorErr}, true),
		Store("lexical_store", &mockPinger{err: lexicalErr}, false),
		Provider("embedding", &mockProvider{err: embErr}, true),
	)
}

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	r := newService(nil, nil, nil).Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, name := range []string{"vector_store", "lexical_store", "embedding"} {
		if r.Checks[name] != CheckOK {
			t.Errorf("expected %s %q, got %q", name, CheckOK, r.Checks[name])
		}
	}
}

func TestCheck_NonCriticalFailureDegrades(t *testing.T) {
	r := newService(nil, errors.New("conn refused"), nil).Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["lexical_store"] != CheckError {
		t.Errorf("expected lexical_store %q, got %q", CheckError, r.Checks["lexical_store"])
	}
	if r.Checks["vector_store"] != CheckOK {
		t.Errorf("expected vector_store %q, got %q", CheckOK, r.Checks["vector_store"])
	}
}

func TestCheck_CriticalFailureIsUnhealthy(t *testing.T) {
	r := newService(nil, nil, errors.New("timeout")).Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks["embedding"] != CheckError {
		t.Errorf("expected embedding %q, got %q", CheckError, r.Checks["embedding"])
	}
}

func TestCheck_CriticalWinsOverDegraded(t *testing.T) {
	r := newService(errors.New("db down"), errors.New("pg down"), nil).Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
}

func TestCheck_NoComponents(t *testing.T) {
	r := New().Check(context.Background())

	if r.Status != Healthy || len(r.Checks) != 0 {
		t.Errorf("report = %+v", r)
	}
}

func TestCheck_TimeoutCountsAsFailure(t *testing.T) {
	slow := Component{Name: "generation", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	r := New(slow).WithTimeout(10 * time.Millisecond).Check(context.Background())

	if r.Status != Degraded || r.Checks["generation"] != CheckError {
		t.Errorf("report = %+v", r)
	}
}
