package search

import (
	"github.com/scholia-dev/scholia/internal/config"
	"github.com/scholia-dev/scholia/internal/router"
)

// DefaultTopK is used when neither the caller nor the routing decision
// supplies a result count.
const DefaultTopK = 10

// RetrievalParams are the concrete knobs one retrieval runs with, derived
// from the routing decision for the query.
type RetrievalParams struct {
	// TopK is the number of results to return. Zero means retrieval is
	// skipped entirely.
	TopK int

	// IncludeAdjacent attaches the neighboring chunks of each result, for
	// broad queries that need surrounding context.
	IncludeAdjacent bool

	// Diversify caps the share of results any single document may take.
	Diversify bool
}

// paramsFromDecision maps a routing decision to retrieval parameters:
// no-context queries skip retrieval, full-context queries retrieve broadly
// with adjacency and diversification, partial-context queries retrieve
// plainly at the suggested depth.
func paramsFromDecision(d router.ContextDecision, cfg config.RetrievalConfig) RetrievalParams {
	switch d.Type {
	case router.ContextNone:
		return RetrievalParams{}
	case router.ContextFull:
		topK := d.SuggestedChunks
		if topK <= 0 {
			topK = maxResults(cfg)
		}
		return RetrievalParams{
			TopK:            topK,
			IncludeAdjacent: true,
			Diversify:       true,
		}
	default:
		topK := d.SuggestedChunks
		if topK <= 0 {
			topK = maxResults(cfg)
		}
		return RetrievalParams{TopK: topK}
	}
}

func maxResults(cfg config.RetrievalConfig) int {
	if cfg.MaxResults > 0 {
		return cfg.MaxResults
	}
	return DefaultTopK
}
