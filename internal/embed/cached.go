package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of embeddings the cache retains.
const DefaultCacheSize = 4096

// CachedEmbedder wraps an Embedder with an LRU cache keyed by content hash.
// Queries repeat far more often than chunks, so the cache mostly serves the
// query path.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner with an LRU of the given size. A size of 0
// uses DefaultCacheSize.
func NewCachedEmbedder(inner Embedder, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(e.inner.ModelName(), text)
	if v, ok := e.cache.Get(key); ok {
		return v, nil
	}

	v, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, v)
	return v, nil
}

// EmbedBatch serves cache hits locally and forwards only the misses,
// preserving input order in the result.
func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		if v, ok := e.cache.Get(cacheKey(e.inner.ModelName(), text)); ok {
			out[i] = v
		} else {
			missTexts = append(missTexts, text)
			missIdx = append(missIdx, i)
		}
	}

	if len(missTexts) > 0 {
		vectors, err := e.inner.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, v := range vectors {
			out[missIdx[j]] = v
			e.cache.Add(cacheKey(e.inner.ModelName(), missTexts[j]), v)
		}
	}

	return out, nil
}

func (e *CachedEmbedder) Dimensions() int { return e.inner.Dimensions() }
func (e *CachedEmbedder) ModelName() string { return e.inner.ModelName() }
func (e *CachedEmbedder) Available(ctx context.Context) bool { return e.inner.Available(ctx) }

func (e *CachedEmbedder) Close() error {
	e.cache.Purge()
	return e.inner.Close()
}

// Len reports the number of cached embeddings.
func (e *CachedEmbedder) Len() int { return e.cache.Len() }
