package embed

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// StaticEmbedder is a deterministic, dependency-free fallback: token n-grams
// feature-hashed into a fixed-width vector. Quality is far below a neural
// model, but it needs no backend, making libraries usable offline and tests
// hermetic.
type StaticEmbedder struct {
	dims int
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates the local fallback embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{dims: StaticDimensions}
}

func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, e.dims)
	tokens := staticTokens(text)
	for _, token := range tokens {
		// Unigram signal.
		addFeature(vec, token, 1.0)

		// Character trigrams give partial-match robustness.
		runes := []rune(token)
		for i := 0; i+3 <= len(runes); i++ {
			addFeature(vec, string(runes[i:i+3]), 0.5)
		}
	}
	return normalizeVector(vec), nil
}

func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (e *StaticEmbedder) Dimensions() int { return e.dims }
func (e *StaticEmbedder) ModelName() string { return "static-hash-v1" }
func (e *StaticEmbedder) Available(ctx context.Context) bool { return true }
func (e *StaticEmbedder) Close() error { return nil }

func staticTokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// addFeature hashes a feature into two buckets with opposing signs, the
// standard signed feature-hashing trick.
func addFeature(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := int(sum % uint64(len(vec)))
	sign := float32(1)
	if (sum>>63)&1 == 1 {
		sign = -1
	}
	vec[bucket] += sign * weight
}
