// Package llm provides small text-completion clients for the query router
// and an HTTP reranking client, over Ollama or OpenAI-compatible endpoints.
package llm

import (
	"context"
	"time"

	"github.com/scholia-dev/scholia/internal/config"
	scherr "github.com/scholia-dev/scholia/internal/errors"
)

// DefaultTimeout bounds a single completion call. Router prompts are tiny;
// anything slower than this is worse than falling back to rules.
const DefaultTimeout = 10 * time.Second

// Completer produces one text completion for one prompt.
type Completer interface {
	// Complete returns the model's text response for prompt.
	Complete(ctx context.Context, prompt string) (string, error)

	// Available reports whether the backend is reachable.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// NewCompleter builds the completion client named by the router
// configuration. ProviderLocal has no completion backend and yields nil —
// callers treat a nil Completer as "rule tier only".
func NewCompleter(cfg config.RouterConfig) (Completer, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		return NewOllamaCompleter(cfg), nil
	case config.ProviderOpenAI:
		return NewOpenAICompleter(cfg)
	case config.ProviderLocal, "":
		return nil, nil
	default:
		return nil, scherr.New(scherr.ErrCodeNoProvider,
			"unknown completion provider "+string(cfg.Provider), nil)
	}
}
