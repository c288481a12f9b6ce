package embed

import (
	"fmt"
	"log/slog"

	"github.com/scholia-dev/scholia/internal/config"
	scherr "github.com/scholia-dev/scholia/internal/errors"
)

// New builds the embedder named by the configuration, wrapped in the LRU
// cache. The provider is fixed here, once, from the validated config enum —
// there is no per-call dispatch on provider strings.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	var (
		inner Embedder
		err   error
	)

	switch cfg.Provider {
	case config.ProviderOllama:
		inner = NewOllamaEmbedder(cfg)
	case config.ProviderOpenAI:
		inner, err = NewOpenAIEmbedder(cfg)
	case config.ProviderLocal:
		inner = NewStaticEmbedder()
	default:
		return nil, scherr.New(scherr.ErrCodeNoProvider,
			fmt.Sprintf("unknown embedding provider %q", cfg.Provider), nil)
	}
	if err != nil {
		return nil, err
	}

	cached, err := NewCachedEmbedder(inner, DefaultCacheSize)
	if err != nil {
		inner.Close()
		return nil, err
	}

	slog.Debug("embedder configured",
		slog.String("provider", string(cfg.Provider)),
		slog.String("model", cached.ModelName()))

	return cached, nil
}
