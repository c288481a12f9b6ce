package embed

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholia-dev/scholia/internal/config"
	scherr "github.com/scholia-dev/scholia/internal/errors"
)

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	a, err := e.Embed(ctx, "spectral clustering of citation graphs")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "spectral clustering of citation graphs")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, StaticDimensions)

	var norm float64
	for _, x := range a {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestStaticEmbedder_DistinguishesTexts(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	a, err := e.Embed(ctx, "quantum entanglement")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "medieval agriculture")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

// countingEmbedder tracks backend calls for cache assertions.
type countingEmbedder struct {
	StaticEmbedder
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(int64(len(texts)))
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := c.StaticEmbedder.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

func TestCachedEmbedder_ServesRepeatsFromCache(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: *NewStaticEmbedder()}
	cached, err := NewCachedEmbedder(inner, 16)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := cached.Embed(ctx, "hybrid retrieval")
	require.NoError(t, err)
	second, err := cached.Embed(ctx, "hybrid retrieval")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), inner.calls.Load())
	assert.Equal(t, 1, cached.Len())
}

func TestCachedEmbedder_BatchForwardsOnlyMisses(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: *NewStaticEmbedder()}
	cached, err := NewCachedEmbedder(inner, 16)
	require.NoError(t, err)
	ctx := context.Background()

	warm, err := cached.Embed(ctx, "b")
	require.NoError(t, err)

	out, err := cached.EmbedBatch(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, warm, out[1])
	// One warm call plus two misses.
	assert.Equal(t, int64(3), inner.calls.Load())
}

func TestOllamaEmbedder_Batch(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)

		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel = req.Model

		resp := ollamaEmbedResponse{}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{3, 4})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(config.EmbeddingConfig{
		Model:    "nomic-embed-text",
		Endpoint: srv.URL,
		Timeout:  5 * time.Second,
	})
	defer e.Close()

	vectors, err := e.EmbedBatch(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, "nomic-embed-text", gotModel)
	assert.Equal(t, 2, e.Dimensions())

	// Vectors come back unit-normalized: (3,4) -> (0.6, 0.8).
	assert.InDelta(t, 0.6, float64(vectors[0][0]), 1e-5)
	assert.InDelta(t, 0.8, float64(vectors[0][1]), 1e-5)
}

func TestOllamaEmbedder_UnreachableIsRetryable(t *testing.T) {
	e := NewOllamaEmbedder(config.EmbeddingConfig{
		Model:    "m",
		Endpoint: "http://127.0.0.1:1", // nothing listens here
		Timeout:  500 * time.Millisecond,
	})
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := e.Embed(ctx, "text")
	require.Error(t, err)
}

func TestOpenAIEmbedder_RequiresKey(t *testing.T) {
	_, err := NewOpenAIEmbedder(config.EmbeddingConfig{Model: "text-embedding-3-small"})
	require.Error(t, err)
	assert.Equal(t, scherr.ErrCodeMissingAPIKey, scherr.GetCode(err))
}

func TestOpenAIEmbedder_OrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		// Deliberately out of order.
		w.Write([]byte(`{"data":[
			{"index":1,"embedding":[0,1]},
			{"index":0,"embedding":[1,0]}
		]}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder(config.EmbeddingConfig{
		Model:    "text-embedding-3-small",
		Endpoint: srv.URL,
		APIKey:   "sk-test",
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)
	defer e.Close()

	vectors, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, float32(1), vectors[0][0])
	assert.Equal(t, float32(1), vectors[1][1])
}

func TestOpenAIEmbedder_AuthFailureNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid key"}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder(config.EmbeddingConfig{
		Model:    "text-embedding-3-small",
		Endpoint: srv.URL,
		APIKey:   "sk-bad",
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.False(t, scherr.IsRetryable(err))
}

func TestFactory_SelectsProvider(t *testing.T) {
	local, err := New(config.EmbeddingConfig{Provider: config.ProviderLocal})
	require.NoError(t, err)
	defer local.Close()
	assert.Equal(t, "static-hash-v1", local.ModelName())
	assert.Equal(t, StaticDimensions, local.Dimensions())

	_, err = New(config.EmbeddingConfig{Provider: "mystery"})
	require.Error(t, err)
	assert.Equal(t, scherr.ErrCodeNoProvider, scherr.GetCode(err))
}

func TestNormalizeVector_ZeroVectorUntouched(t *testing.T) {
	v := []float32{0, 0, 0}
	assert.Equal(t, v, normalizeVector(v))

	n := normalizeVector([]float32{2, 0})
	assert.True(t, math.Abs(float64(n[0])-1) < 1e-6)
}
