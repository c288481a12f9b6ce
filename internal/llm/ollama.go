package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/scholia-dev/scholia/internal/config"
	scherr "github.com/scholia-dev/scholia/internal/errors"
)

// DefaultOllamaHost is the standard local Ollama endpoint.
const DefaultOllamaHost = "http://localhost:11434"

// OllamaCompleter generates completions through Ollama's /api/generate.
type OllamaCompleter struct {
	client  *http.Client
	host    string
	model   string
	timeout time.Duration
}

var _ Completer = (*OllamaCompleter)(nil)

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// NewOllamaCompleter creates a completion client for a local Ollama server.
func NewOllamaCompleter(cfg config.RouterConfig) *OllamaCompleter {
	host := cfg.Endpoint
	if host == "" {
		host = DefaultOllamaHost
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &OllamaCompleter{
		client:  &http.Client{},
		host:    host,
		model:   cfg.Model,
		timeout: timeout,
	}
}

func (c *OllamaCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(ollamaGenerateRequest{Model: c.model, Prompt: prompt})
	if err != nil {
		return "", scherr.InternalError("marshal completion request", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", scherr.InternalError("build completion request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return "", scherr.New(scherr.ErrCodeProviderTimeout,
				fmt.Sprintf("completion timed out after %s", c.timeout), err)
		}
		return "", scherr.New(scherr.ErrCodeProviderUnavailable, "cannot reach ollama", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", scherr.New(scherr.ErrCodeCompletionFailed,
			fmt.Sprintf("ollama generate returned %d", resp.StatusCode), nil)
	}

	var parsed ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", scherr.New(scherr.ErrCodeCompletionFailed, "decode ollama response", err)
	}
	return parsed.Response, nil
}

func (c *OllamaCompleter) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.host+"/api/version", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *OllamaCompleter) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
