package main

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lexrag/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
http:
  port: 8080
database:
  driver: memory
`))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

func TestNewCache_KVNeedsStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Backend = "kv"
	if _, err := newCache(&cfg, nil, zap.NewNop()); err == nil {
		t.Fatal("expected error for kv backend without a store")
	}
}

func TestNewCache_Memory(t *testing.T) {
	cfg := testConfig(t)
	c, err := newCache(&cfg, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.Enabled() {
		t.Error("cache should be enabled by default")
	}
}

func TestOpenStores_Memory(t *testing.T) {
	cfg := testConfig(t)
	st, err := openStores(context.Background(), &cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer st.Close()

	if st.persistent || st.kv != nil {
		t.Error("memory driver must not report persistence or a kv store")
	}
	if len(st.writers) != 1 || len(st.components) != 1 {
		t.Errorf("writers=%d components=%d", len(st.writers), len(st.components))
	}
	if ok, err := st.text.SupportsTextSearch(context.Background()); !ok || err != nil {
		t.Error("in-process index ranks text by default")
	}
	if err := st.components[0].Check(context.Background()); err != nil {
		t.Errorf("health check: %v", err)
	}
}
