package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
	assert.Equal(t, "none", cfg.APIKey)
	assert.Zero(t, cfg.RequestsPerSecond)
	assert.Equal(t, 1, cfg.Burst)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with custom host and model", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithEmbeddingModel("text-embedding-3-small"),
		)

		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	})

	t.Run("with api key and rate limit", func(t *testing.T) {
		cfg := NewConfig(WithAPIKey("sk-test"), WithRateLimit(2.5, 3))

		assert.Equal(t, "sk-test", cfg.APIKey)
		assert.Equal(t, 2.5, cfg.RequestsPerSecond)
		assert.Equal(t, 3, cfg.Burst)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{"adds suffix", "http://localhost:11434", "http://localhost:11434/v1"},
		{"trailing slash", "http://localhost:11434/", "http://localhost:11434/v1"},
		{"already normalized", "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{EmbeddingHost: tt.host}
			cfg.Normalize()
			assert.Equal(t, tt.want, cfg.EmbeddingHost)
			assert.Equal(t, "none", cfg.APIKey)
			assert.Equal(t, 1, cfg.Burst)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid default", func(t *testing.T) {
		require.NoError(t, DefaultConfig().Validate())
	})

	t.Run("missing host", func(t *testing.T) {
		cfg := NewConfig(WithEmbeddingHost(""))
		assert.ErrorContains(t, cfg.Validate(), "EmbeddingHost is required")
	})

	t.Run("missing model", func(t *testing.T) {
		cfg := NewConfig(WithEmbeddingModel(""))
		assert.ErrorContains(t, cfg.Validate(), "EmbeddingModel is required")
	})

	t.Run("negative rate", func(t *testing.T) {
		cfg := NewConfig(WithRateLimit(-1, 1))
		assert.ErrorContains(t, cfg.Validate(), "RequestsPerSecond")
	})

	t.Run("normalizes before validating", func(t *testing.T) {
		cfg := NewConfig(WithEmbeddingHost("http://embed:8080"))
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
	})
}
