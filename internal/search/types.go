// Package search implements hybrid retrieval: lexical (BM25) and vector
// results fused with configurable weights, optionally reranked, shaped by the
// context router's decision for the query.
package search

import (
	"context"

	"github.com/scholia-dev/scholia/internal/router"
	"github.com/scholia-dev/scholia/internal/store"
)

// Hints returned alongside an empty result set so callers can distinguish
// "nothing matched" from "nothing indexed yet" from "retrieval skipped".
const (
	NoResultsHint  = "no matching passages found; try broader terms or check that the document finished indexing"
	EmptyIndexHint = "the library has no indexed content yet; add documents first"
	NoContextHint  = "the query needs no document context; answer directly without retrieval"
)

// SearchOptions shapes one retrieval call.
type SearchOptions struct {
	// LibraryID selects which library's indexes to consult. Required.
	LibraryID string

	// TopK overrides the configured result count when positive.
	TopK int

	// ScoreThreshold overrides the configured minimum fused score when
	// positive.
	ScoreThreshold float64

	// LexicalOnly skips query embedding and vector search.
	LexicalOnly bool

	// DisableRouting treats the query as a plain partial-context retrieval.
	DisableRouting bool
}

// SearchResult is one retrieved chunk with its scoring breakdown.
type SearchResult struct {
	Chunk *store.Chunk

	// Score is the fused (and possibly reranked) relevance, 0-1.
	Score float64

	// LexicalScore and VectorScore are the per-source normalized scores;
	// zero when the chunk was absent from that source's list.
	LexicalScore float64
	VectorScore  float64

	// InBothSources marks chunks found by both the lexical and the vector
	// index, a strong relevance signal used in tie-breaking.
	InBothSources bool

	// MatchedTerms are the lexical query terms that hit, for highlighting.
	MatchedTerms []string

	// Adjacent holds neighboring chunks when the routing decision asked
	// for surrounding context.
	Adjacent []*store.Chunk
}

// SearchResponse is the full answer to one query.
type SearchResponse struct {
	Results []*SearchResult

	// Decision is the routing verdict the retrieval parameters came from.
	Decision router.ContextDecision

	// Hint is set when Results is empty, explaining why.
	Hint string
}

// IndexProvider hands out the per-library index pair. The index coordinator
// implements it; tests substitute fixtures.
type IndexProvider interface {
	LexicalIndex(ctx context.Context, libraryID string) (store.LexicalIndex, error)
	VectorIndex(ctx context.Context, libraryID string) (store.VectorIndex, error)
}
