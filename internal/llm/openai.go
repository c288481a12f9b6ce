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

// DefaultOpenAIEndpoint is the hosted OpenAI base URL; any compatible server
// works by overriding the endpoint.
const DefaultOpenAIEndpoint = "https://api.openai.com/v1"

// OpenAICompleter generates completions through an OpenAI-compatible
// /chat/completions endpoint.
type OpenAICompleter struct {
	client   *http.Client
	endpoint string
	apiKey   string
	model    string
	timeout  time.Duration
}

var _ Completer = (*OpenAICompleter)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenAICompleter creates a completion client for an OpenAI-compatible
// endpoint.
func NewOpenAICompleter(cfg config.RouterConfig) (*OpenAICompleter, error) {
	if cfg.APIKey == "" {
		return nil, scherr.New(scherr.ErrCodeMissingAPIKey,
			"openai completion provider requires an API key", nil)
	}
	if cfg.Model == "" {
		return nil, scherr.New(scherr.ErrCodeMissingModel,
			"openai completion provider requires a model name", nil)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultOpenAIEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &OpenAICompleter{
		client:   &http.Client{},
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		timeout:  timeout,
	}, nil
}

func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", scherr.InternalError("marshal chat request", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", scherr.InternalError("build chat request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return "", scherr.New(scherr.ErrCodeProviderTimeout,
				fmt.Sprintf("completion timed out after %s", c.timeout), err)
		}
		return "", scherr.New(scherr.ErrCodeProviderUnavailable, "cannot reach completion endpoint", err)
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", scherr.New(scherr.ErrCodeCompletionFailed, "decode chat response", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("chat endpoint returned %d", resp.StatusCode)
		if parsed.Error != nil {
			msg += ": " + parsed.Error.Message
		}
		return "", scherr.New(scherr.ErrCodeCompletionFailed, msg, nil)
	}
	if len(parsed.Choices) == 0 {
		return "", scherr.New(scherr.ErrCodeCompletionFailed, "chat endpoint returned no choices", nil)
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *OpenAICompleter) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.endpoint+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *OpenAICompleter) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
