package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholia-dev/scholia/internal/config"
	scherr "github.com/scholia-dev/scholia/internal/errors"
)

func TestOllamaCompleter_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaGenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2:1b", req.Model)
		assert.False(t, req.Stream)

		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: `{"contextType":"none"}`})
	}))
	defer srv.Close()

	c := NewOllamaCompleter(config.RouterConfig{
		Model:    "llama3.2:1b",
		Endpoint: srv.URL,
		Timeout:  5 * time.Second,
	})
	defer c.Close()

	out, err := c.Complete(context.Background(), "classify this")
	require.NoError(t, err)
	assert.Equal(t, `{"contextType":"none"}`, out)
}

func TestOpenAICompleter_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"answer"}}]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAICompleter(config.RouterConfig{
		Model:    "gpt-4o-mini",
		Endpoint: srv.URL,
		APIKey:   "sk-test",
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)
	defer c.Close()

	out, err := c.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
}

func TestNewCompleter_LocalYieldsNil(t *testing.T) {
	c, err := NewCompleter(config.RouterConfig{Provider: config.ProviderLocal})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestHTTPReranker_Rerank(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rerank", r.URL.Path)

		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "what is bm25", req.Query)
		require.Len(t, req.Documents, 2)

		w.Write([]byte(`{"results":[
			{"index":1,"relevance_score":0.9},
			{"index":0,"relevance_score":0.3}
		]}`))
	}))
	defer srv.Close()

	r, err := NewHTTPReranker(config.RerankConfig{
		Model:    "rerank-v3",
		Endpoint: srv.URL,
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)
	defer r.Close()

	scores, err := r.Rerank(context.Background(), "what is bm25",
		[]string{"doc a", "doc b"}, 2)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, 1, scores[0].Index)
	assert.InDelta(t, 0.9, scores[0].Score, 1e-9)
}

func TestHTTPReranker_OutOfRangeIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"index":5,"relevance_score":0.9}]}`))
	}))
	defer srv.Close()

	r, err := NewHTTPReranker(config.RerankConfig{
		Model: "m", Endpoint: srv.URL, Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Rerank(context.Background(), "q", []string{"only one"}, 0)
	require.Error(t, err)
	assert.Equal(t, scherr.ErrCodeRerankFailed, scherr.GetCode(err))
}
