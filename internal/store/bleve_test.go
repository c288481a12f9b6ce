package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLexicalIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex("", DefaultLexicalConfig())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func lexChunk(id, content, heading string) *Chunk {
	return &Chunk{ID: id, Content: content, Heading: heading}
}

func TestBleveIndex_IndexAndSearch(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Chunk{
		lexChunk("c1", "gradient descent converges under convexity assumptions", "Optimization"),
		lexChunk("c2", "the corpus was annotated by three independent raters", "Data Collection"),
	}))

	results, err := idx.Search(ctx, "gradient descent", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "c1", results[0].ChunkID)
	assert.NotEmpty(t, results[0].MatchedTerms)
}

func TestBleveIndex_HeadingMatches(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Chunk{
		lexChunk("c1", "unrelated body text", "Convergence Analysis"),
	}))

	results, err := idx.Search(ctx, "convergence", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ChunkID)
}

func TestBleveIndex_StopWordsCarryNoSignal(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Chunk{
		lexChunk("c1", "the of and in on", ""),
	}))

	// A query of pure stop words matches nothing.
	results, err := idx.Search(ctx, "the of and", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBleveIndex_EmptyQuery(t *testing.T) {
	idx := newTestLexicalIndex(t)

	results, err := idx.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBleveIndex_DeleteRemovesPostings(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Chunk{
		lexChunk("c1", "spectral clustering", ""),
		lexChunk("c2", "spectral methods", ""),
	}))
	require.NoError(t, idx.Delete(ctx, []string{"c1"}))

	results, err := idx.Search(ctx, "spectral", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c2", results[0].ChunkID)

	ids, err := idx.AllIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, ids)
}

func TestBleveIndex_ResetEmptiesIndex(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Chunk{
		lexChunk("c1", "some content", ""),
	}))
	require.NoError(t, idx.Reset())

	assert.Zero(t, idx.Stats().DocumentCount)

	// Still usable after reset.
	require.NoError(t, idx.Index(ctx, []*Chunk{
		lexChunk("c2", "fresh content", ""),
	}))
	assert.Equal(t, 1, idx.Stats().DocumentCount)
}
