package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestDefault_BilingualSearchIsOn(t *testing.T) {
	assert.True(t, Default().Retrieval.EnableBilingualSearch)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
chunking:
  chunk_size: 1500
  chunk_overlap: 100
  strategy: fixed
retrieval:
  max_results: 25
  use_hybrid_search: true
  bm25_weight: 0.5
  vector_weight: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1500, cfg.Chunking.ChunkSize)
	assert.Equal(t, StrategyFixed, cfg.Chunking.Strategy)
	assert.Equal(t, 25, cfg.Retrieval.MaxResults)
	assert.Equal(t, 0.5, cfg.Retrieval.BM25Weight)
	// Untouched section keeps defaults
	assert.Equal(t, ProviderOllama, cfg.Embedding.Provider)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SCHOLIA_BM25_WEIGHT", "0.7")
	t.Setenv("SCHOLIA_VECTOR_WEIGHT", "0.3")
	t.Setenv("SCHOLIA_EMBEDDING_MODEL", "mxbai-embed-large")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 0.7, cfg.Retrieval.BM25Weight)
	assert.Equal(t, 0.3, cfg.Retrieval.VectorWeight)
	assert.Equal(t, "mxbai-embed-large", cfg.Embedding.Model)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.Chunking.ChunkSize = 0 }},
		{"overlap >= size", func(c *Config) { c.Chunking.ChunkOverlap = c.Chunking.ChunkSize }},
		{"bad strategy", func(c *Config) { c.Chunking.Strategy = "recursive" }},
		{"multimodal has no extractor", func(c *Config) { c.Chunking.EnableMultimodal = true }},
		{"threshold out of range", func(c *Config) { c.Retrieval.ScoreThreshold = 1.5 }},
		{"weights do not sum to one", func(c *Config) { c.Retrieval.BM25Weight = 0.9; c.Retrieval.VectorWeight = 0.9 }},
		{"openai without key", func(c *Config) { c.Embedding.Provider = ProviderOpenAI; c.Embedding.APIKey = "" }},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "azure" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveAndReload_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := Default()
	cfg.Retrieval.MaxResults = 42
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.Retrieval.MaxResults)
}
