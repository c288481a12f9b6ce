package search

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/scholia-dev/scholia/internal/config"
	"github.com/scholia-dev/scholia/internal/llm"
)

// Reranker rescores fused candidates against the query before truncation.
type Reranker interface {
	// Rerank scores documents against query. topN of 0 scores all.
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]llm.RerankScore, error)

	Close() error
}

// KeywordReranker is the local rerank tier: cosine overlap between query and
// document token sets. Cheap, deterministic, and good enough to promote
// exact-terminology hits when no cross-encoder endpoint is configured.
type KeywordReranker struct{}

var _ Reranker = (*KeywordReranker)(nil)
var _ Reranker = (*llm.HTTPReranker)(nil)

// Rerank scores each document by token-set overlap with the query.
func (k *KeywordReranker) Rerank(_ context.Context, query string, documents []string, topN int) ([]llm.RerankScore, error) {
	queryTokens := tokenSet(query)

	n := len(documents)
	if topN > 0 && topN < n {
		n = topN
	}

	scores := make([]llm.RerankScore, 0, n)
	for i := 0; i < n; i++ {
		scores = append(scores, llm.RerankScore{
			Index: i,
			Score: overlapScore(queryTokens, tokenSet(documents[i])),
		})
	}
	return scores, nil
}

func (k *KeywordReranker) Close() error { return nil }

// NewReranker builds the rerank tier named by the configuration: nil when
// disabled, an HTTP cross-encoder client when an endpoint is configured, the
// local keyword scorer otherwise.
func NewReranker(cfg config.RerankConfig) (Reranker, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Provider == config.ProviderLocal || cfg.Endpoint == "" {
		return &KeywordReranker{}, nil
	}
	return llm.NewHTTPReranker(cfg)
}

// tokenSet lowercases and splits on non-letter/digit runes. CJK text has no
// word boundaries, so each Han rune counts as its own token.
func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	var b strings.Builder

	flush := func() {
		if b.Len() > 0 {
			set[b.String()] = struct{}{}
			b.Reset()
		}
	}

	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			set[string(r)] = struct{}{}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return set
}

// overlapScore is the cosine similarity of two token sets:
// |intersection| / sqrt(|a| * |b|).
func overlapScore(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			shared++
		}
	}
	return float64(shared) / math.Sqrt(float64(len(a))*float64(len(b)))
}
