package search

import (
	"sort"

	"github.com/scholia-dev/scholia/internal/store"
)

// fusionWeights are the per-source contributions to the fused score. They
// should sum to 1.0 so fused scores stay in the 0-1 range.
type fusionWeights struct {
	Lexical float64
	Vector  float64
}

// fusedResult is one chunk after weighted score fusion, before enrichment.
type fusedResult struct {
	ChunkID       string
	Score         float64
	LexicalScore  float64 // normalized to 0-1 against the best lexical hit
	VectorScore   float64 // already 0-1 similarity
	InBothSources bool
	MatchedTerms  []string
}

// fuse combines lexical and vector hits by weighted sum of normalized
// scores. BM25 scores are unbounded, so they are scaled against the best
// lexical hit; vector scores arrive as 0-1 similarities.
//
// Ordering is deterministic: fused score desc, then presence in both lists,
// then lexical score desc, then chunk ID asc.
func fuse(lexical []*store.LexicalResult, vector []*store.VectorResult, weights fusionWeights) []*fusedResult {
	if len(lexical) == 0 && len(vector) == 0 {
		return []*fusedResult{}
	}

	byID := make(map[string]*fusedResult, len(lexical)+len(vector))
	get := func(id string) *fusedResult {
		if r, ok := byID[id]; ok {
			return r
		}
		r := &fusedResult{ChunkID: id}
		byID[id] = r
		return r
	}

	var maxLex float64
	for _, hit := range lexical {
		if hit.Score > maxLex {
			maxLex = hit.Score
		}
	}

	for _, hit := range lexical {
		r := get(hit.ChunkID)
		if maxLex > 0 {
			r.LexicalScore = hit.Score / maxLex
		}
		r.MatchedTerms = hit.MatchedTerms
	}

	for _, hit := range vector {
		r := get(hit.ChunkID)
		r.VectorScore = float64(hit.Score)
		if r.LexicalScore > 0 {
			r.InBothSources = true
		}
	}

	results := make([]*fusedResult, 0, len(byID))
	for _, r := range byID {
		r.Score = weights.Lexical*r.LexicalScore + weights.Vector*r.VectorScore
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		return fusedLess(results[i], results[j])
	})
	return results
}

// fusedLess reports whether a ranks before b.
func fusedLess(a, b *fusedResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.InBothSources != b.InBothSources {
		return a.InBothSources
	}
	if a.LexicalScore != b.LexicalScore {
		return a.LexicalScore > b.LexicalScore
	}
	return a.ChunkID < b.ChunkID
}
