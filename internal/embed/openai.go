package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/scholia-dev/scholia/internal/config"
	scherr "github.com/scholia-dev/scholia/internal/errors"
)

// DefaultOpenAIEndpoint is the hosted OpenAI embeddings base URL. Any
// OpenAI-compatible server (vLLM, LM Studio, llamafile) works by overriding
// the endpoint.
const DefaultOpenAIEndpoint = "https://api.openai.com/v1"

// OpenAIEmbedder generates embeddings through an OpenAI-compatible
// /embeddings endpoint.
type OpenAIEmbedder struct {
	client    *http.Client
	transport *http.Transport
	endpoint  string
	apiKey    string
	model     string
	batchSize int
	timeout   time.Duration

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ Embedder = (*OpenAIEmbedder)(nil)

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenAIEmbedder creates an embedder for an OpenAI-compatible endpoint.
func NewOpenAIEmbedder(cfg config.EmbeddingConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, scherr.New(scherr.ErrCodeMissingAPIKey,
			"openai embedding provider requires an API key (set SCHOLIA_API_KEY)", nil)
	}
	if cfg.Model == "" {
		return nil, scherr.New(scherr.ErrCodeMissingModel,
			"openai embedding provider requires a model name", nil)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultOpenAIEndpoint
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
	}

	return &OpenAIEmbedder{
		client:    &http.Client{Transport: transport},
		transport: transport,
		endpoint:  endpoint,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		batchSize: batchSize,
		timeout:   timeout,
		dims:      cfg.Dimensions,
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))

		var vectors [][]float32
		err := scherr.Retry(ctx, scherr.DefaultRetryConfig(), func() error {
			var callErr error
			vectors, callErr = e.embedOnce(ctx, texts[start:end])
			return callErr
		})
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	body, err := json.Marshal(openAIEmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, scherr.InternalError("marshal embed request", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.endpoint+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, scherr.InternalError("build embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, scherr.New(scherr.ErrCodeProviderTimeout,
				fmt.Sprintf("embedding request timed out after %s", e.timeout), err)
		}
		return nil, scherr.New(scherr.ErrCodeProviderUnavailable, "cannot reach embedding endpoint", err)
	}
	defer resp.Body.Close()

	var parsed openAIEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, scherr.New(scherr.ErrCodeEmbeddingFailed, "decode embedding response", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("embedding endpoint returned %d", resp.StatusCode)
		if parsed.Error != nil {
			msg += ": " + parsed.Error.Message
		}
		code := scherr.ErrCodeEmbeddingFailed
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			code = scherr.ErrCodeMissingAPIKey
		}
		return nil, scherr.New(code, msg, nil)
	}
	if len(parsed.Data) != len(texts) {
		return nil, scherr.New(scherr.ErrCodeEmbeddingFailed,
			fmt.Sprintf("endpoint returned %d embeddings for %d texts", len(parsed.Data), len(texts)), nil)
	}

	// The API may return data out of order; index is authoritative.
	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })

	vectors := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		vectors[i] = normalizeVector(d.Embedding)
	}

	e.mu.Lock()
	if e.dims == 0 && len(vectors) > 0 {
		e.dims = len(vectors[0])
	}
	e.mu.Unlock()

	return vectors, nil
}

func (e *OpenAIEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

func (e *OpenAIEmbedder) ModelName() string { return e.model }

// Available reports whether the endpoint answers a models listing.
func (e *OpenAIEmbedder) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, e.endpoint+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}
