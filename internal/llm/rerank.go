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

// RerankScore ties a relevance score to an input document position.
type RerankScore struct {
	Index int
	Score float64
}

// HTTPReranker scores query-document pairs against a /rerank endpoint using
// the de-facto wire shape shared by Cohere- and Jina-style rerank APIs.
type HTTPReranker struct {
	client   *http.Client
	endpoint string
	apiKey   string
	model    string
	timeout  time.Duration
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// NewHTTPReranker creates a rerank client from the rerank configuration.
func NewHTTPReranker(cfg config.RerankConfig) (*HTTPReranker, error) {
	if cfg.Endpoint == "" {
		return nil, scherr.New(scherr.ErrCodeNoProvider,
			"http reranker requires an endpoint", nil)
	}
	if cfg.Model == "" {
		return nil, scherr.New(scherr.ErrCodeMissingModel,
			"http reranker requires a model name", nil)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &HTTPReranker{
		client:   &http.Client{},
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		timeout:  timeout,
	}, nil
}

// Rerank scores documents against query, highest first. topN of 0 scores all.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankScore, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, err := json.Marshal(rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	})
	if err != nil {
		return nil, scherr.InternalError("marshal rerank request", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, r.endpoint+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, scherr.InternalError("build rerank request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, scherr.New(scherr.ErrCodeProviderTimeout,
				fmt.Sprintf("rerank timed out after %s", r.timeout), err)
		}
		return nil, scherr.New(scherr.ErrCodeProviderUnavailable, "cannot reach rerank endpoint", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, scherr.New(scherr.ErrCodeRerankFailed,
			fmt.Sprintf("rerank endpoint returned %d", resp.StatusCode), nil)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, scherr.New(scherr.ErrCodeRerankFailed, "decode rerank response", err)
	}

	scores := make([]RerankScore, 0, len(parsed.Results))
	for _, res := range parsed.Results {
		if res.Index < 0 || res.Index >= len(documents) {
			return nil, scherr.New(scherr.ErrCodeRerankFailed,
				fmt.Sprintf("rerank returned out-of-range index %d", res.Index), nil)
		}
		scores = append(scores, RerankScore{Index: res.Index, Score: res.RelevanceScore})
	}
	return scores, nil
}

// Available reports whether the rerank endpoint is reachable.
func (r *HTTPReranker) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, r.endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

func (r *HTTPReranker) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
