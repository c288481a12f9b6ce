package search

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholia-dev/scholia/internal/config"
	scherr "github.com/scholia-dev/scholia/internal/errors"
	"github.com/scholia-dev/scholia/internal/router"
	"github.com/scholia-dev/scholia/internal/segment"
	"github.com/scholia-dev/scholia/internal/store"
)

// fakeLexical serves canned BM25 hits and records the last query it saw.
type fakeLexical struct {
	hits      []*store.LexicalResult
	count     int
	lastQuery string
}

func (f *fakeLexical) Index(_ context.Context, _ []*store.Chunk) error { return nil }
func (f *fakeLexical) Search(_ context.Context, query string, limit int) ([]*store.LexicalResult, error) {
	f.lastQuery = query
	if limit < len(f.hits) {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}
func (f *fakeLexical) Delete(_ context.Context, _ []string) error { return nil }
func (f *fakeLexical) Reset() error { return nil }
func (f *fakeLexical) AllIDs() ([]string, error) { return nil, nil }
func (f *fakeLexical) Stats() *store.LexicalStats {
	return &store.LexicalStats{DocumentCount: f.count}
}
func (f *fakeLexical) Close() error { return nil }

// fakeVector serves canned nearest-neighbor hits.
type fakeVector struct {
	hits  []*store.VectorResult
	count int
}

func (f *fakeVector) Add(_ context.Context, _ []string, _ [][]float32) error { return nil }
func (f *fakeVector) Search(_ context.Context, _ []float32, k int) ([]*store.VectorResult, error) {
	if k < len(f.hits) {
		return f.hits[:k], nil
	}
	return f.hits, nil
}
func (f *fakeVector) Delete(_ context.Context, _ []string) error { return nil }
func (f *fakeVector) AllIDs() []string { return nil }
func (f *fakeVector) Contains(_ string) bool { return false }
func (f *fakeVector) Count() int { return f.count }
func (f *fakeVector) Save(_ string) error { return nil }
func (f *fakeVector) Load(_ string) error { return nil }
func (f *fakeVector) Close() error { return nil }

type fakeProvider struct {
	lexical store.LexicalIndex
	vector  store.VectorIndex
}

func (f *fakeProvider) LexicalIndex(_ context.Context, _ string) (store.LexicalIndex, error) {
	return f.lexical, nil
}
func (f *fakeProvider) VectorIndex(_ context.Context, _ string) (store.VectorIndex, error) {
	return f.vector, nil
}

const testLibraryID = "lib-1"

// seedChunks persists numbered chunks across the given documents and returns
// their IDs in creation order.
func seedChunks(t *testing.T, meta store.MetadataStore, perDoc map[string]int) []string {
	t.Helper()
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, meta.SaveLibrary(ctx, &store.Library{
		ID: testLibraryID, Name: "papers", CreatedAt: now, UpdatedAt: now,
	}))

	var ids []string
	for docID, n := range perDoc {
		require.NoError(t, meta.SaveDocument(ctx, &store.Document{
			ID: docID, LibraryID: testLibraryID, Title: docID,
			MediaType: "text", AddedAt: now,
		}))
		chunks := make([]*store.Chunk, n)
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("%s-chunk-%d", docID, i)
			ids = append(ids, id)
			chunks[i] = &store.Chunk{
				ID: id, DocumentID: docID, LibraryID: testLibraryID,
				Index: i, Content: fmt.Sprintf("passage %d of %s", i, docID),
				Type: segment.ChunkTypeParagraph, CreatedAt: now,
			}
		}
		require.NoError(t, meta.ReplaceChunks(ctx, docID, chunks))
	}
	return ids
}

func newTestRetriever(t *testing.T, provider IndexProvider, meta store.MetadataStore, rt *router.Router) *HybridRetriever {
	t.Helper()
	r, err := NewHybridRetriever(provider, nil, meta, rt, nil,
		config.RetrievalConfig{MaxResults: 10, UseHybridSearch: true, BM25Weight: 0.4, VectorWeight: 0.6},
		config.RerankConfig{}, nil)
	require.NoError(t, err)
	return r
}

func TestSearch_EmptyQueryIsAnError(t *testing.T) {
	meta, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	defer meta.Close()

	r := newTestRetriever(t, &fakeProvider{lexical: &fakeLexical{}, vector: &fakeVector{}}, meta, nil)

	_, err = r.Search(context.Background(), "   ", SearchOptions{LibraryID: testLibraryID})
	require.Error(t, err)
	assert.Equal(t, scherr.ErrCodeQueryEmpty, scherr.GetCode(err))
}

func TestSearch_EmptyIndexYieldsHintNotError(t *testing.T) {
	meta, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	defer meta.Close()

	r := newTestRetriever(t, &fakeProvider{lexical: &fakeLexical{}, vector: &fakeVector{}}, meta, nil)

	resp, err := r.Search(context.Background(), "anything at all", SearchOptions{LibraryID: testLibraryID})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, EmptyIndexHint, resp.Hint)
}

func TestSearch_NoContextQueryShortCircuits(t *testing.T) {
	meta, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	defer meta.Close()

	rt, err := router.New(config.RouterConfig{Enabled: true}, true, nil)
	require.NoError(t, err)

	// The fake lexical index would return hits; a no-context query must
	// never reach it.
	lex := &fakeLexical{count: 5, hits: []*store.LexicalResult{{ChunkID: "x", Score: 1}}}
	r := newTestRetriever(t, &fakeProvider{lexical: lex, vector: &fakeVector{}}, meta, rt)

	resp, err := r.Search(context.Background(), "你好", SearchOptions{LibraryID: testLibraryID})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, NoContextHint, resp.Hint)
	assert.Equal(t, router.ContextNone, resp.Decision.Type)
}

func TestSearch_LexicalScoresAreNormalized(t *testing.T) {
	meta, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	defer meta.Close()
	seedChunks(t, meta, map[string]int{"doc-a": 3})

	lex := &fakeLexical{count: 3, hits: []*store.LexicalResult{
		{ChunkID: "doc-a-chunk-0", Score: 8.0, MatchedTerms: []string{"passage"}},
		{ChunkID: "doc-a-chunk-1", Score: 4.0},
	}}
	vec := &fakeVector{count: 3, hits: []*store.VectorResult{
		{ChunkID: "doc-a-chunk-1", Score: 0.95},
		{ChunkID: "doc-a-chunk-2", Score: 0.5},
	}}

	r := newTestRetriever(t, &fakeProvider{lexical: lex, vector: vec}, meta, nil)
	// Vector search needs an embedder; without one it degrades to
	// lexical-only, so force lexical-only explicitly and check that path
	// first.
	resp, err := r.Search(context.Background(), "passage", SearchOptions{
		LibraryID: testLibraryID, LexicalOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "doc-a-chunk-0", resp.Results[0].Chunk.ID)
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-9)
	assert.Equal(t, []string{"passage"}, resp.Results[0].MatchedTerms)
	assert.Empty(t, resp.Hint)
}

func TestSearch_MissingChunksAreDroppedNotFatal(t *testing.T) {
	meta, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	defer meta.Close()
	seedChunks(t, meta, map[string]int{"doc-a": 1})

	lex := &fakeLexical{count: 2, hits: []*store.LexicalResult{
		{ChunkID: "ghost-chunk", Score: 9.0},
		{ChunkID: "doc-a-chunk-0", Score: 5.0},
	}}

	r := newTestRetriever(t, &fakeProvider{lexical: lex, vector: &fakeVector{}}, meta, nil)
	resp, err := r.Search(context.Background(), "passage", SearchOptions{
		LibraryID: testLibraryID, LexicalOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "doc-a-chunk-0", resp.Results[0].Chunk.ID)
}

func TestSearch_ScoreThresholdDropsWeakHits(t *testing.T) {
	meta, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	defer meta.Close()
	seedChunks(t, meta, map[string]int{"doc-a": 2})

	lex := &fakeLexical{count: 2, hits: []*store.LexicalResult{
		{ChunkID: "doc-a-chunk-0", Score: 10.0},
		{ChunkID: "doc-a-chunk-1", Score: 1.0}, // normalizes to 0.1
	}}

	r := newTestRetriever(t, &fakeProvider{lexical: lex, vector: &fakeVector{}}, meta, nil)
	resp, err := r.Search(context.Background(), "passage", SearchOptions{
		LibraryID: testLibraryID, LexicalOnly: true, ScoreThreshold: 0.5,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "doc-a-chunk-0", resp.Results[0].Chunk.ID)
}

func TestSearch_DiversificationNeverFillsTopKFromOneDocument(t *testing.T) {
	meta, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	defer meta.Close()
	seedChunks(t, meta, map[string]int{"doc-a": 8, "doc-b": 2})

	// doc-a dominates the raw ranking; doc-b hits trail far behind.
	var hits []*store.LexicalResult
	for i := 0; i < 8; i++ {
		hits = append(hits, &store.LexicalResult{
			ChunkID: fmt.Sprintf("doc-a-chunk-%d", i), Score: float64(100 - i),
		})
	}
	hits = append(hits,
		&store.LexicalResult{ChunkID: "doc-b-chunk-0", Score: 2.0},
		&store.LexicalResult{ChunkID: "doc-b-chunk-1", Score: 1.0},
	)

	rt, err := router.New(config.RouterConfig{Enabled: true}, true, nil)
	require.NoError(t, err)

	lex := &fakeLexical{count: 10, hits: hits}
	r := newTestRetriever(t, &fakeProvider{lexical: lex, vector: &fakeVector{}}, meta, rt)

	// "Summarize the paper" routes to full context: diversification on.
	resp, err := r.Search(context.Background(), "Summarize the paper", SearchOptions{
		LibraryID: testLibraryID, LexicalOnly: true, TopK: 6,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 6)
	assert.Equal(t, router.ContextFull, resp.Decision.Type)

	perDoc := make(map[string]int)
	for _, res := range resp.Results {
		perDoc[res.Chunk.DocumentID]++
	}
	assert.Greater(t, perDoc["doc-b"], 0,
		"diversification must not let one document take every slot")
}

func TestSearch_FullContextAttachesAdjacentChunks(t *testing.T) {
	meta, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	defer meta.Close()
	seedChunks(t, meta, map[string]int{"doc-a": 3, "doc-b": 1})

	lex := &fakeLexical{count: 4, hits: []*store.LexicalResult{
		{ChunkID: "doc-a-chunk-1", Score: 5.0},
	}}
	rt, err := router.New(config.RouterConfig{Enabled: true}, true, nil)
	require.NoError(t, err)

	r := newTestRetriever(t, &fakeProvider{lexical: lex, vector: &fakeVector{}}, meta, rt)
	resp, err := r.Search(context.Background(), "Summarize the paper", SearchOptions{
		LibraryID: testLibraryID, LexicalOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	adjacent := resp.Results[0].Adjacent
	require.Len(t, adjacent, 2)
	assert.Equal(t, "doc-a-chunk-0", adjacent[0].ID)
	assert.Equal(t, "doc-a-chunk-2", adjacent[1].ID)
}

func TestSearch_RerankReordersTopCandidates(t *testing.T) {
	meta, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	defer meta.Close()

	ctx := context.Background()
	now := time.Now()
	require.NoError(t, meta.SaveLibrary(ctx, &store.Library{
		ID: testLibraryID, Name: "papers", CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, meta.SaveDocument(ctx, &store.Document{
		ID: "doc-a", LibraryID: testLibraryID, Title: "doc-a", MediaType: "text", AddedAt: now,
	}))
	require.NoError(t, meta.ReplaceChunks(ctx, "doc-a", []*store.Chunk{
		{ID: "c0", DocumentID: "doc-a", LibraryID: testLibraryID, Index: 0,
			Content: "unrelated filler text about cooking", Type: segment.ChunkTypeParagraph, CreatedAt: now},
		{ID: "c1", DocumentID: "doc-a", LibraryID: testLibraryID, Index: 1,
			Content: "the BM25 ranking function weighs term frequency", Type: segment.ChunkTypeParagraph, CreatedAt: now},
	}))

	// Lexical order puts the filler first; keyword rerank must flip it.
	lex := &fakeLexical{count: 2, hits: []*store.LexicalResult{
		{ChunkID: "c0", Score: 9.0},
		{ChunkID: "c1", Score: 8.0},
	}}

	r, err := NewHybridRetriever(
		&fakeProvider{lexical: lex, vector: &fakeVector{}}, nil, meta, nil,
		&KeywordReranker{},
		config.RetrievalConfig{MaxResults: 10, BM25Weight: 1.0},
		config.RerankConfig{TopN: 10}, nil)
	require.NoError(t, err)

	resp, err := r.Search(ctx, "BM25 ranking function", SearchOptions{
		LibraryID: testLibraryID, LexicalOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "c1", resp.Results[0].Chunk.ID)
}

func TestSearch_QueryRewriteReachesLexicalLegOnly(t *testing.T) {
	meta, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	defer meta.Close()
	seedChunks(t, meta, map[string]int{"doc-a": 1})

	lex := &fakeLexical{count: 1, hits: []*store.LexicalResult{
		{ChunkID: "doc-a-chunk-0", Score: 3.0},
	}}
	r, err := NewHybridRetriever(
		&fakeProvider{lexical: lex, vector: &fakeVector{}}, nil, meta, nil, nil,
		config.RetrievalConfig{MaxResults: 10, BM25Weight: 1.0, EnableQueryRewrite: true},
		config.RerankConfig{}, nil)
	require.NoError(t, err)

	resp, err := r.Search(context.Background(), "What is the attention mechanism?", SearchOptions{
		LibraryID: testLibraryID, LexicalOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "attention mechanism", lex.lastQuery)
}

func TestSearch_NoHitsYieldsNoResultsHint(t *testing.T) {
	meta, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	defer meta.Close()
	seedChunks(t, meta, map[string]int{"doc-a": 1})

	lex := &fakeLexical{count: 1}
	r := newTestRetriever(t, &fakeProvider{lexical: lex, vector: &fakeVector{}}, meta, nil)

	resp, err := r.Search(context.Background(), "no such topic", SearchOptions{
		LibraryID: testLibraryID, LexicalOnly: true,
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, NoResultsHint, resp.Hint)
}
