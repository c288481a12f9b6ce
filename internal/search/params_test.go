package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scholia-dev/scholia/internal/config"
	"github.com/scholia-dev/scholia/internal/router"
)

func TestParamsFromDecision(t *testing.T) {
	cfg := config.RetrievalConfig{MaxResults: 10}

	tests := []struct {
		name     string
		decision router.ContextDecision
		want     RetrievalParams
	}{
		{
			name:     "none skips retrieval entirely",
			decision: router.ContextDecision{Type: router.ContextNone},
			want:     RetrievalParams{},
		},
		{
			name: "full retrieves broadly with adjacency and diversification",
			decision: router.ContextDecision{
				Type: router.ContextFull, SuggestedChunks: 8, NeedsMultiDoc: true,
			},
			want: RetrievalParams{TopK: 8, IncludeAdjacent: true, Diversify: true},
		},
		{
			name: "partial retrieves plainly at suggested depth",
			decision: router.ContextDecision{
				Type: router.ContextPartial, SuggestedChunks: 4,
			},
			want: RetrievalParams{TopK: 4},
		},
		{
			name:     "partial without suggestion falls back to configured depth",
			decision: router.ContextDecision{Type: router.ContextPartial},
			want:     RetrievalParams{TopK: 10},
		},
		{
			name:     "full without suggestion falls back to configured depth",
			decision: router.ContextDecision{Type: router.ContextFull},
			want:     RetrievalParams{TopK: 10, IncludeAdjacent: true, Diversify: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, paramsFromDecision(tt.decision, cfg))
		})
	}
}

func TestMaxResults_DefaultsWhenUnconfigured(t *testing.T) {
	assert.Equal(t, DefaultTopK, maxResults(config.RetrievalConfig{}))
	assert.Equal(t, 25, maxResults(config.RetrievalConfig{MaxResults: 25}))
}
