package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholia-dev/scholia/internal/store"
)

func TestFuse_WeightedSumOfNormalizedScores(t *testing.T) {
	lexical := []*store.LexicalResult{
		{ChunkID: "a", Score: 10.0, MatchedTerms: []string{"bm25"}},
		{ChunkID: "b", Score: 5.0},
	}
	vector := []*store.VectorResult{
		{ChunkID: "b", Score: 0.9},
		{ChunkID: "c", Score: 0.8},
	}

	fused := fuse(lexical, vector, fusionWeights{Lexical: 0.4, Vector: 0.6})
	require.Len(t, fused, 3)

	byID := make(map[string]*fusedResult)
	for _, f := range fused {
		byID[f.ChunkID] = f
	}

	// a: lexical only, normalized to 1.0 against the best lexical hit.
	// Vector scores are float32 on the wire, so allow for float32 precision.
	assert.InDelta(t, 0.4*1.0, byID["a"].Score, 1e-6)
	assert.Equal(t, []string{"bm25"}, byID["a"].MatchedTerms)
	assert.False(t, byID["a"].InBothSources)

	// b: both sources.
	assert.InDelta(t, 0.4*0.5+0.6*0.9, byID["b"].Score, 1e-6)
	assert.True(t, byID["b"].InBothSources)

	// c: vector only.
	assert.InDelta(t, 0.6*0.8, byID["c"].Score, 1e-6)

	// b outranks a and c.
	assert.Equal(t, "b", fused[0].ChunkID)
}

func TestFuse_EmptyInputsYieldEmptySlice(t *testing.T) {
	fused := fuse(nil, nil, fusionWeights{Lexical: 0.4, Vector: 0.6})
	require.NotNil(t, fused)
	assert.Empty(t, fused)
}

func TestFuse_TieBreaksAreDeterministic(t *testing.T) {
	// Two chunks with identical fused scores: the one present in both
	// sources wins; otherwise higher lexical score, then smaller ID.
	lexical := []*store.LexicalResult{
		{ChunkID: "z", Score: 4.0},
		{ChunkID: "a", Score: 4.0},
	}

	fused := fuse(lexical, nil, fusionWeights{Lexical: 1.0})
	require.Len(t, fused, 2)
	assert.Equal(t, "a", fused[0].ChunkID)
	assert.Equal(t, "z", fused[1].ChunkID)

	again := fuse(lexical, nil, fusionWeights{Lexical: 1.0})
	assert.Equal(t, fused[0].ChunkID, again[0].ChunkID)
}

func TestFuse_BothListsBeatsSingleListOnTie(t *testing.T) {
	a := &fusedResult{ChunkID: "a", Score: 0.5, InBothSources: true}
	b := &fusedResult{ChunkID: "b", Score: 0.5, InBothSources: false}
	assert.True(t, fusedLess(a, b))
	assert.False(t, fusedLess(b, a))
}
