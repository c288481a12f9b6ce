package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholia-dev/scholia/internal/config"
)

func TestKeywordReranker_PromotesTermOverlap(t *testing.T) {
	r := &KeywordReranker{}

	scores, err := r.Rerank(context.Background(), "BM25 ranking function",
		[]string{
			"gradient descent converges under convexity assumptions",
			"the BM25 ranking function scores documents by term frequency",
		}, 0)
	require.NoError(t, err)
	require.Len(t, scores, 2)

	assert.Greater(t, scores[1].Score, scores[0].Score)
}

func TestKeywordReranker_HandlesChineseText(t *testing.T) {
	r := &KeywordReranker{}

	scores, err := r.Rerank(context.Background(), "注意力机制",
		[]string{
			"注意力机制是变换器模型的核心",
			"quicksort partitions around a pivot",
		}, 0)
	require.NoError(t, err)
	require.Len(t, scores, 2)

	assert.Greater(t, scores[0].Score, scores[1].Score)
	assert.Zero(t, scores[1].Score)
}

func TestKeywordReranker_TopNLimitsScoring(t *testing.T) {
	r := &KeywordReranker{}

	scores, err := r.Rerank(context.Background(), "q",
		[]string{"a", "b", "c"}, 2)
	require.NoError(t, err)
	assert.Len(t, scores, 2)
}

func TestTokenSet_SplitsHanRunesIndividually(t *testing.T) {
	set := tokenSet("BM25算法")
	assert.Contains(t, set, "bm25")
	assert.Contains(t, set, "算")
	assert.Contains(t, set, "法")
}

func TestNewReranker(t *testing.T) {
	r, err := NewReranker(config.RerankConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = NewReranker(config.RerankConfig{Enabled: true, Provider: config.ProviderLocal})
	require.NoError(t, err)
	assert.IsType(t, &KeywordReranker{}, r)
}
