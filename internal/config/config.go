// Package config loads and validates Scholia configuration.
//
// Precedence, lowest to highest:
//  1. Built-in defaults
//  2. Config file (~/.scholia/config.yaml or --config)
//  3. Environment variables (SCHOLIA_*)
//
// Per-library overrides of the chunking/embedding/retrieval sections live in
// the library record itself; this package defines the shared schema.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ChunkStrategy selects how oversized sections are split.
type ChunkStrategy string

const (
	StrategyFixed     ChunkStrategy = "fixed"
	StrategySemantic  ChunkStrategy = "semantic"
	StrategyParagraph ChunkStrategy = "paragraph"
)

// ProviderKind is the closed set of backend provider kinds.
// Selected once at configuration time, not per call.
type ProviderKind string

const (
	ProviderOpenAI ProviderKind = "openai" // OpenAI-compatible HTTP API
	ProviderOllama ProviderKind = "ollama" // local Ollama server
	ProviderLocal  ProviderKind = "local"  // in-process fallback (keyword rerank, static embeddings)
)

// Config is the complete Scholia configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	DataDir   string          `yaml:"data_dir" json:"data_dir"`
	Chunking  ChunkingConfig  `yaml:"chunking" json:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval" json:"retrieval"`
	Router    RouterConfig    `yaml:"router" json:"router"`
	Rerank    RerankConfig    `yaml:"rerank" json:"rerank"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// ChunkingConfig configures the segmenter.
type ChunkingConfig struct {
	// ChunkSize is the target chunk size in characters.
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`

	// ChunkOverlap is the overlap between adjacent chunks in characters.
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`

	// Strategy selects the secondary split strategy: fixed, semantic, paragraph.
	Strategy ChunkStrategy `yaml:"strategy" json:"strategy"`

	// Separators are the preferred split separators for the fixed strategy.
	Separators []string `yaml:"separators" json:"separators"`

	// EnableMultimodal reserves image/figure chunk extraction. The key is
	// part of the config schema but no extractor ships yet, so setting it
	// is rejected by Validate rather than silently ignored.
	EnableMultimodal bool `yaml:"enable_multimodal" json:"enable_multimodal"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider   ProviderKind `yaml:"provider" json:"provider"`
	Model      string       `yaml:"model" json:"model"`
	Dimensions int          `yaml:"dimensions" json:"dimensions"`

	// Endpoint is the provider base URL (Ollama host or OpenAI-compatible base).
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// APIKey authenticates OpenAI-compatible providers. Also via SCHOLIA_API_KEY.
	APIKey string `yaml:"api_key" json:"-"`

	// BatchSize is the number of texts per embedding request.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// Timeout is the per-call embedding timeout.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// RetrievalConfig configures hybrid search.
type RetrievalConfig struct {
	MaxResults     int     `yaml:"max_results" json:"max_results"`
	ScoreThreshold float64 `yaml:"score_threshold" json:"score_threshold"`

	// UseHybridSearch fuses lexical and vector scores; false means lexical only.
	UseHybridSearch bool `yaml:"use_hybrid_search" json:"use_hybrid_search"`

	// BM25Weight and VectorWeight control fusion. They should sum to 1.0.
	BM25Weight   float64 `yaml:"bm25_weight" json:"bm25_weight"`
	VectorWeight float64 `yaml:"vector_weight" json:"vector_weight"`

	// EnableQueryRewrite strips interrogative scaffolding from the query
	// before the BM25 leg, so term scoring sees content words only.
	EnableQueryRewrite bool `yaml:"enable_query_rewrite" json:"enable_query_rewrite"`

	// EnableBilingualSearch extends query routing to the Chinese rule
	// patterns; English rules always apply.
	EnableBilingualSearch bool `yaml:"enable_bilingual_search" json:"enable_bilingual_search"`
}

// RouterConfig configures the context router.
type RouterConfig struct {
	// Enabled turns context routing on. When off every query is treated
	// as a partial-context retrieval with default depth.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// UseLLM enables the LLM tier for low-confidence queries.
	UseLLM bool `yaml:"use_llm" json:"use_llm"`

	Provider ProviderKind  `yaml:"provider" json:"provider"`
	Model    string        `yaml:"model" json:"model"`
	Endpoint string        `yaml:"endpoint" json:"endpoint"`
	APIKey   string        `yaml:"api_key" json:"-"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`

	// CacheSize is the LRU size for routing decisions.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// RerankConfig configures the optional rerank pass.
type RerankConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Provider ProviderKind  `yaml:"provider" json:"provider"`
	Model    string        `yaml:"model" json:"model"`
	Endpoint string        `yaml:"endpoint" json:"endpoint"`
	APIKey   string        `yaml:"api_key" json:"-"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`

	// TopN is how many fused results enter the rerank pass.
	TopN int `yaml:"top_n" json:"top_n"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Version: 1,
		DataDir: defaultDataDir(),
		Chunking: ChunkingConfig{
			ChunkSize:    2000,
			ChunkOverlap: 200,
			Strategy:     StrategyParagraph,
			Separators:   []string{"\n\n", "\n", ". "},
		},
		Embedding: EmbeddingConfig{
			Provider:  ProviderOllama,
			Model:     "nomic-embed-text",
			Endpoint:  "http://localhost:11434",
			BatchSize: 32,
			Timeout:   30 * time.Second,
		},
		Retrieval: RetrievalConfig{
			MaxResults:            10,
			ScoreThreshold:        0.0,
			UseHybridSearch:       true,
			BM25Weight:            0.4,
			VectorWeight:          0.6,
			EnableBilingualSearch: true,
		},
		Router: RouterConfig{
			Enabled:   true,
			UseLLM:    false,
			Provider:  ProviderOllama,
			Model:     "llama3.2:1b",
			Endpoint:  "http://localhost:11434",
			Timeout:   5 * time.Second,
			CacheSize: 4096,
		},
		Rerank: RerankConfig{
			Enabled:  false,
			Provider: ProviderLocal,
			Timeout:  60 * time.Second,
			TopN:     30,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path (optional), applies environment
// overrides, and validates the result. An empty path loads pure defaults
// plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".scholia", "config.yaml")
	}
	return filepath.Join(home, ".scholia", "config.yaml")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".scholia")
	}
	return filepath.Join(home, ".scholia")
}

// applyEnv overlays SCHOLIA_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("SCHOLIA_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("SCHOLIA_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
		if cfg.Router.APIKey == "" {
			cfg.Router.APIKey = v
		}
		if cfg.Rerank.APIKey == "" {
			cfg.Rerank.APIKey = v
		}
	}
	if v := os.Getenv("SCHOLIA_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("SCHOLIA_EMBEDDING_ENDPOINT"); v != "" {
		cfg.Embedding.Endpoint = v
	}
	if v := os.Getenv("SCHOLIA_BM25_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Retrieval.BM25Weight = f
		}
	}
	if v := os.Getenv("SCHOLIA_VECTOR_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Retrieval.VectorWeight = f
		}
	}
	if v := os.Getenv("SCHOLIA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap must be in [0, chunk_size), got %d", c.Chunking.ChunkOverlap)
	}
	switch c.Chunking.Strategy {
	case StrategyFixed, StrategySemantic, StrategyParagraph:
	default:
		return fmt.Errorf("chunking.strategy must be fixed|semantic|paragraph, got %q", c.Chunking.Strategy)
	}
	if c.Chunking.EnableMultimodal {
		return fmt.Errorf("chunking.enable_multimodal is reserved, no extractor is available")
	}

	if c.Retrieval.ScoreThreshold < 0 || c.Retrieval.ScoreThreshold > 1 {
		return fmt.Errorf("retrieval.score_threshold must be in [0,1], got %f", c.Retrieval.ScoreThreshold)
	}
	if c.Retrieval.UseHybridSearch {
		sum := c.Retrieval.BM25Weight + c.Retrieval.VectorWeight
		if sum < 0.99 || sum > 1.01 {
			return fmt.Errorf("retrieval weights must sum to 1.0, got %.2f", sum)
		}
	}
	if c.Retrieval.MaxResults <= 0 {
		return fmt.Errorf("retrieval.max_results must be positive, got %d", c.Retrieval.MaxResults)
	}

	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderOllama, ProviderLocal:
	default:
		return fmt.Errorf("embedding.provider must be openai|ollama|local, got %q", c.Embedding.Provider)
	}
	if c.Embedding.Provider == ProviderOpenAI && strings.TrimSpace(c.Embedding.APIKey) == "" {
		return fmt.Errorf("embedding.api_key is required for the openai provider")
	}

	return nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}
