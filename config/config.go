package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Vector store backends.
const (
	VectorStoreChromem  = "chromem"
	VectorStorePgvector = "pgvector"
)

// DefaultAPIKeyEnv names the environment variable holding the embedding API key.
const DefaultAPIKeyEnv = "DOCPIPE_API_KEY"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// StorageConfig locates the badger database holding jobs, documents and blobs.
type StorageConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// ChromemConfig configures the embedded vector store.
// An empty path keeps vectors in memory.
type ChromemConfig struct {
	Path     string `yaml:"path"`
	Compress bool   `yaml:"compress"`
}

// PgvectorConfig configures the Postgres vector store.
type PgvectorConfig struct {
	DSN       string `yaml:"dsn"`
	Table     string `yaml:"table"`
	Dimension int    `yaml:"dimension"`
}

// VectorStoreConfig selects and configures the vector store.
type VectorStoreConfig struct {
	Type     string         `yaml:"type"`
	Chromem  ChromemConfig  `yaml:"chromem"`
	Pgvector PgvectorConfig `yaml:"pgvector"`
}

// EmbeddingConfig configures the OpenAI-compatible embedding endpoint.
type EmbeddingConfig struct {
	Host              string  `yaml:"host"`
	Model             string  `yaml:"model"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// APIKey returns the key from the configured environment variable.
func (c EmbeddingConfig) APIKey() string {
	return os.Getenv(c.APIKeyEnv)
}

// RetryConfig bounds retries of failing embedding and vector store calls.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// WorkerConfig configures the vectorization worker group.
type WorkerConfig struct {
	Count          int           `yaml:"count"`
	DequeueTimeout time.Duration `yaml:"dequeue_timeout"`
	IdleSleep      time.Duration `yaml:"idle_sleep"`
	MinTextLength  int           `yaml:"min_text_length"`
	Retry          RetryConfig   `yaml:"retry"`
}

// ReaperConfig configures stale job recovery. Disabled by default.
type ReaperConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Interval    time.Duration `yaml:"interval"`
	StaleAfter  time.Duration `yaml:"stale_after"`
	Requeue     bool          `yaml:"requeue"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// SearchConfig configures retrieval.
type SearchConfig struct {
	TopK      int     `yaml:"top_k"`
	Threshold float32 `yaml:"threshold"`
}

// LimitsConfig bounds uploads and embedding requests.
type LimitsConfig struct {
	MaxDocumentBytes int64 `yaml:"max_document_bytes"`
	TokenCeiling     int   `yaml:"token_ceiling"`
	SafetyThreshold  int   `yaml:"safety_threshold"`
}

// Config is the root configuration.
type Config struct {
	Storage     StorageConfig     `yaml:"storage"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Worker      WorkerConfig      `yaml:"worker"`
	Reaper      ReaperConfig      `yaml:"reaper"`
	Search      SearchConfig      `yaml:"search"`
	Limits      LimitsConfig      `yaml:"limits"`
}

// Default returns the default configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// DefaultDataDir is where state lives when the file names no paths.
func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "docpipe")
	}
	return ".docpipe"
}

// applyDefaults fills every zero field.
func applyDefaults(cfg *Config) {
	if cfg.Storage.Path == "" && !cfg.Storage.InMemory {
		cfg.Storage.Path = filepath.Join(DefaultDataDir(), "db")
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = VectorStoreChromem
	}
	if cfg.VectorStore.Pgvector.Table == "" {
		cfg.VectorStore.Pgvector.Table = "docpipe_vectors"
	}

	if cfg.Embedding.Host == "" {
		cfg.Embedding.Host = "http://localhost:11434/v1"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "embeddinggemma"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = DefaultAPIKeyEnv
	}
	if cfg.Embedding.Burst == 0 {
		cfg.Embedding.Burst = 1
	}

	if cfg.Worker.Count == 0 {
		cfg.Worker.Count = 2
	}
	if cfg.Worker.DequeueTimeout == 0 {
		cfg.Worker.DequeueTimeout = 5 * time.Second
	}
	if cfg.Worker.IdleSleep == 0 {
		cfg.Worker.IdleSleep = time.Second
	}
	if cfg.Worker.MinTextLength == 0 {
		cfg.Worker.MinTextLength = 50
	}
	if cfg.Worker.Retry.MaxAttempts == 0 {
		cfg.Worker.Retry.MaxAttempts = 1
	}
	if cfg.Worker.Retry.BaseDelay == 0 {
		cfg.Worker.Retry.BaseDelay = 500 * time.Millisecond
	}
	if cfg.Worker.Retry.MaxDelay == 0 {
		cfg.Worker.Retry.MaxDelay = 10 * time.Second
	}

	if cfg.Reaper.Interval == 0 {
		cfg.Reaper.Interval = time.Minute
	}
	if cfg.Reaper.StaleAfter == 0 {
		cfg.Reaper.StaleAfter = 15 * time.Minute
	}
	if cfg.Reaper.MaxAttempts == 0 {
		cfg.Reaper.MaxAttempts = 3
	}

	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 5
	}
	if cfg.Search.Threshold == 0 {
		cfg.Search.Threshold = 0.5
	}

	if cfg.Limits.MaxDocumentBytes == 0 {
		cfg.Limits.MaxDocumentBytes = 50 << 20
	}
	if cfg.Limits.TokenCeiling == 0 {
		cfg.Limits.TokenCeiling = 8192
	}
	if cfg.Limits.SafetyThreshold == 0 {
		cfg.Limits.SafetyThreshold = 7500
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	var errs []error
	switch c.VectorStore.Type {
	case VectorStoreChromem:
	case VectorStorePgvector:
		if c.VectorStore.Pgvector.DSN == "" {
			errs = append(errs, errors.New("vector_store.pgvector.dsn is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown vector_store.type %q", c.VectorStore.Type))
	}
	if c.Worker.Count < 1 {
		errs = append(errs, fmt.Errorf("worker.count must be positive: %d", c.Worker.Count))
	}
	if c.Search.TopK < 1 {
		errs = append(errs, fmt.Errorf("search.top_k must be positive: %d", c.Search.TopK))
	}
	if c.Limits.MaxDocumentBytes < 1 {
		errs = append(errs, fmt.Errorf("limits.max_document_bytes must be positive: %d", c.Limits.MaxDocumentBytes))
	}
	if c.Limits.SafetyThreshold >= c.Limits.TokenCeiling {
		errs = append(errs, fmt.Errorf("limits.safety_threshold %d must be below token_ceiling %d",
			c.Limits.SafetyThreshold, c.Limits.TokenCeiling))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Load reads the configuration at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultPath returns the config file consulted when none is given.
func DefaultPath() string {
	return filepath.Join(DefaultDataDir(), "config.yaml")
}
