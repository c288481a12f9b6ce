package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVectorIndex(t *testing.T, dims int) *HNSWIndex {
	t.Helper()
	idx, err := NewHNSWIndex(DefaultVectorConfig(dims))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestHNSWIndex_AddAndSearch(t *testing.T) {
	idx := newTestVectorIndex(t, 3)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx,
		[]string{"a", "b", "c"},
		[][]float32{
			{1, 0, 0},
			{0, 1, 0},
			{0.9, 0.1, 0},
		}))

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ChunkID)
	assert.Equal(t, "c", results[1].ChunkID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestHNSWIndex_DimensionMismatch(t *testing.T) {
	idx := newTestVectorIndex(t, 3)
	ctx := context.Background()

	err := idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}})
	var mismatch ErrDimensionMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 3, mismatch.Expected)
	assert.Equal(t, 2, mismatch.Got)

	_, err = idx.Search(ctx, []float32{1, 0}, 1)
	require.ErrorAs(t, err, &mismatch)
}

func TestHNSWIndex_LazyDeleteHidesResults(t *testing.T) {
	idx := newTestVectorIndex(t, 2)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx,
		[]string{"a", "b"},
		[][]float32{{1, 0}, {0, 1}}))

	require.NoError(t, idx.Delete(ctx, []string{"a"}))

	assert.False(t, idx.Contains("a"))
	assert.Equal(t, 1, idx.Count())
	assert.Equal(t, 1, idx.Orphans())

	results, err := idx.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "a", r.ChunkID)
	}
}

func TestHNSWIndex_ReplaceExistingID(t *testing.T) {
	idx := newTestVectorIndex(t, 2)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}}))
	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{0, 1}}))

	assert.Equal(t, 1, idx.Count())

	results, err := idx.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ChunkID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
}

func TestHNSWIndex_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.hnsw")
	ctx := context.Background()

	idx := newTestVectorIndex(t, 2)
	require.NoError(t, idx.Add(ctx,
		[]string{"a", "b"},
		[][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, idx.Save(path))

	dims, err := StoredDimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 2, dims)

	loaded, err := NewHNSWIndex(DefaultVectorConfig(2))
	require.NoError(t, err)
	t.Cleanup(func() { loaded.Close() })
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, 2, loaded.Count())
	results, err := loaded.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ChunkID)
}

func TestHNSWIndex_StoredDimensionsFreshStart(t *testing.T) {
	dims, err := StoredDimensions(filepath.Join(t.TempDir(), "missing.hnsw"))
	require.NoError(t, err)
	assert.Zero(t, dims)
}

func TestHNSWIndex_EmptySearch(t *testing.T) {
	idx := newTestVectorIndex(t, 4)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}
