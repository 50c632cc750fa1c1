package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/lexrag/internal/db"
	"github.com/kailas-cloud/lexrag/internal/domain/search/mode"
)

// Config holds the lexrag API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Cache      CacheConfig      `yaml:"cache"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Lexical    LexicalConfig    `yaml:"lexical"`
	Auth       AuthConfig       `yaml:"auth"`
	Index      IndexConfig      `yaml:"index"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig selects the chunk store: a Redis/Valkey server or the
// in-process index.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, valkey, memory (default: redis)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// PostgresConfig enables the PostgreSQL lexical backend when DSN is set.
type PostgresConfig struct {
	DSN        string `yaml:"dsn"`
	MaxConns   int    `yaml:"max_conns"`
	TextConfig string `yaml:"text_config"` // text search configuration (default: simple)
	CreateFTS  bool   `yaml:"create_fts_index"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// GenerationConfig holds chat model settings.
type GenerationConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Temperature *float32      `yaml:"temperature"` // default: 0.7; 0 is kept
	MaxTokens   int           `yaml:"max_tokens"`
	TimeoutSec  int           `yaml:"timeout_sec"`
	Breaker     BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the generation circuit breaker.
type BreakerConfig struct {
	MinRequests  uint32  `yaml:"min_requests"`
	FailureRatio float64 `yaml:"failure_ratio"`
	OpenSec      int     `yaml:"open_timeout_sec"`
}

// CacheConfig holds query cache settings.
type CacheConfig struct {
	Enabled          *bool  `yaml:"enabled"` // default: true
	Backend          string `yaml:"backend"` // memory, kv (default: memory)
	EmbeddingTTL     string `yaml:"embedding_ttl"`
	AnswerTTL        string `yaml:"answer_ttl"`
	SweepIntervalSec int    `yaml:"sweep_interval_sec"`
}

// RetrievalConfig holds fusion and search settings.
type RetrievalConfig struct {
	VectorWeight     float64  `yaml:"vector_weight"`
	LexicalWeight    float64  `yaml:"lexical_weight"`
	Threshold        *float64 `yaml:"threshold"` // default: 0.30; 0 is kept
	Count            int      `yaml:"count"`
	VectorThreshold  *float64 `yaml:"vector_threshold"` // default: 0.1; 0 is kept
	LexicalTimeoutMs int      `yaml:"lexical_timeout_ms"`
}

// LexicalConfig selects how lexical search is served.
type LexicalConfig struct {
	Mode string `yaml:"mode"` // auto, ranked, substring (default: auto)
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	Algorithm       string `yaml:"algorithm"` // hnsw, flat (default: hnsw)
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML with ${VAR} expansion, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 90
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Postgres.TextConfig == "" {
		c.Postgres.TextConfig = "simple"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 10
	}
	if c.Generation.APIKey == "" {
		c.Generation.APIKey = c.Embedding.APIKey
	}
	if c.Generation.BaseURL == "" {
		c.Generation.BaseURL = c.Embedding.BaseURL
	}
	if c.Generation.Model == "" {
		c.Generation.Model = "gpt-4o-mini"
	}
	if c.Generation.Temperature == nil {
		c.Generation.Temperature = ptr[float32](0.7)
	}
	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = 1000
	}
	if c.Generation.TimeoutSec <= 0 {
		c.Generation.TimeoutSec = 60
	}
	if c.Generation.Breaker.OpenSec <= 0 {
		c.Generation.Breaker.OpenSec = 30
	}
	if c.Cache.Enabled == nil {
		enabled := true
		c.Cache.Enabled = &enabled
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.EmbeddingTTL == "" {
		c.Cache.EmbeddingTTL = "24h"
	}
	if c.Cache.AnswerTTL == "" {
		c.Cache.AnswerTTL = "1h"
	}
	if c.Cache.SweepIntervalSec <= 0 {
		c.Cache.SweepIntervalSec = 600
	}
	if c.Retrieval.VectorWeight == 0 && c.Retrieval.LexicalWeight == 0 {
		c.Retrieval.VectorWeight = 0.6
		c.Retrieval.LexicalWeight = 0.4
	}
	if c.Retrieval.Threshold == nil {
		c.Retrieval.Threshold = ptr(0.30)
	}
	if c.Retrieval.Count <= 0 {
		c.Retrieval.Count = 10
	}
	if c.Retrieval.VectorThreshold == nil {
		c.Retrieval.VectorThreshold = ptr(0.1)
	}
	if c.Lexical.Mode == "" {
		c.Lexical.Mode = string(mode.Auto)
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "redis", "valkey":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be redis, valkey or memory, got %q", c.Database.Driver)
	}
	switch c.Cache.Backend {
	case "memory":
	case "kv":
		if c.Database.Driver == "memory" {
			return fmt.Errorf("cache.backend kv requires a redis or valkey database")
		}
	default:
		return fmt.Errorf("cache.backend must be memory or kv, got %q", c.Cache.Backend)
	}
	if _, err := c.Cache.TTLs(); err != nil {
		return err
	}
	if _, err := mode.Parse(c.Lexical.Mode); err != nil {
		return fmt.Errorf("lexical.mode: %w", err)
	}
	if _, err := db.ParseVectorAlgorithm(c.Index.Algorithm); err != nil {
		return fmt.Errorf("index.algorithm: %w", err)
	}
	if c.Retrieval.VectorWeight < 0 || c.Retrieval.LexicalWeight < 0 {
		return fmt.Errorf("retrieval weights must not be negative")
	}
	for _, th := range []struct {
		name  string
		value *float64
	}{
		{"retrieval.threshold", c.Retrieval.Threshold},
		{"retrieval.vector_threshold", c.Retrieval.VectorThreshold},
	} {
		if th.value != nil && (*th.value < 0 || *th.value > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %g", th.name, *th.value)
		}
	}
	if t := c.Generation.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("generation.temperature must be between 0 and 2, got %g", *t)
	}
	if r := c.Generation.Breaker.FailureRatio; r < 0 || r > 1 {
		return fmt.Errorf("generation.breaker.failure_ratio must be between 0 and 1, got %g", r)
	}
	return nil
}

// TTLs parses the embedding and answer TTLs.
func (c CacheConfig) TTLs() ([2]time.Duration, error) {
	var out [2]time.Duration
	for i, v := range []struct{ name, value string }{
		{"cache.embedding_ttl", c.EmbeddingTTL},
		{"cache.answer_ttl", c.AnswerTTL},
	} {
		d, err := time.ParseDuration(v.value)
		if err != nil {
			return out, fmt.Errorf("%s: %w", v.name, err)
		}
		if d <= 0 {
			return out, fmt.Errorf("%s must be positive, got %s", v.name, v.value)
		}
		out[i] = d
	}
	return out, nil
}

func ptr[T any](v T) *T { return &v }

// IsEnabled reports whether the cache is on. Call after ApplyDefaults.
func (c CacheConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
