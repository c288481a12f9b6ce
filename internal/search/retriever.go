package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/scholia-dev/scholia/internal/config"
	"github.com/scholia-dev/scholia/internal/embed"
	scherr "github.com/scholia-dev/scholia/internal/errors"
	"github.com/scholia-dev/scholia/internal/router"
	"github.com/scholia-dev/scholia/internal/store"
)

// rerankWindow is how many fused candidates enter the rerank pass when the
// configuration does not say otherwise.
const rerankWindow = 20

// HybridRetriever answers queries by consulting a library's lexical and
// vector indexes in parallel, fusing the hits, and shaping the result set
// according to the context router's decision.
type HybridRetriever struct {
	provider IndexProvider
	embedder embed.Embedder
	meta     store.MetadataStore
	router   *router.Router
	reranker Reranker
	cfg      config.RetrievalConfig
	rerankN  int
	logger   *slog.Logger
}

// NewHybridRetriever wires the retriever. router and reranker may be nil:
// routing then defaults to partial-context depth and reranking is skipped.
func NewHybridRetriever(
	provider IndexProvider,
	embedder embed.Embedder,
	meta store.MetadataStore,
	rt *router.Router,
	reranker Reranker,
	cfg config.RetrievalConfig,
	rerankCfg config.RerankConfig,
	logger *slog.Logger,
) (*HybridRetriever, error) {
	if provider == nil {
		return nil, scherr.ValidationError("index provider is required", nil)
	}
	if meta == nil {
		return nil, scherr.ValidationError("metadata store is required", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	rerankN := rerankCfg.TopN
	if rerankN <= 0 {
		rerankN = rerankWindow
	}
	return &HybridRetriever{
		provider: provider,
		embedder: embedder,
		meta:     meta,
		router:   rt,
		reranker: reranker,
		cfg:      cfg,
		rerankN:  rerankN,
		logger:   logger,
	}, nil
}

// Search retrieves the most relevant chunks for query from the library named
// in opts. An empty or unindexed library yields an empty result set with a
// hint, never an error.
func (r *HybridRetriever) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, scherr.New(scherr.ErrCodeQueryEmpty, "search query is empty", nil)
	}
	if opts.LibraryID == "" {
		return nil, scherr.New(scherr.ErrCodeInvalidInput, "library id is required", nil)
	}

	decision := r.route(ctx, query, opts)
	params := paramsFromDecision(decision, r.cfg)
	if params.TopK == 0 {
		return &SearchResponse{Results: []*SearchResult{}, Decision: decision, Hint: NoContextHint}, nil
	}
	if opts.TopK > 0 {
		params.TopK = opts.TopK
	}

	lexIdx, err := r.provider.LexicalIndex(ctx, opts.LibraryID)
	if err != nil {
		return nil, fmt.Errorf("open lexical index: %w", err)
	}
	vecIdx, err := r.provider.VectorIndex(ctx, opts.LibraryID)
	if err != nil {
		return nil, fmt.Errorf("open vector index: %w", err)
	}

	if lexIdx.Stats().DocumentCount == 0 && (vecIdx == nil || vecIdx.Count() == 0) {
		return &SearchResponse{Results: []*SearchResult{}, Decision: decision, Hint: EmptyIndexHint}, nil
	}

	// Overfetch so fusion, thresholding, and diversification still have
	// enough candidates to fill topK.
	fetchLimit := params.TopK * 3
	if fetchLimit < rerankWindow {
		fetchLimit = rerankWindow
	}

	lexQuery := query
	if r.cfg.EnableQueryRewrite {
		lexQuery = rewriteQuery(query)
	}

	var (
		lexHits []*store.LexicalResult
		vecHits []*store.VectorResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := lexIdx.Search(gctx, lexQuery, fetchLimit)
		if err != nil {
			return scherr.New(scherr.ErrCodeSearchFailed, "lexical search failed", err)
		}
		lexHits = hits
		return nil
	})
	useVector := !opts.LexicalOnly && r.cfg.UseHybridSearch && r.embedder != nil && vecIdx != nil
	if useVector {
		g.Go(func() error {
			hits, err := r.vectorSearch(gctx, query, vecIdx, fetchLimit)
			if err != nil {
				// A failed embedding provider or a dimension mismatch
				// degrades to lexical-only rather than failing the query.
				r.logger.Warn("vector search degraded to lexical-only",
					"library", opts.LibraryID, "error", err)
				return nil
			}
			vecHits = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	weights := r.weights()
	if len(vecHits) == 0 {
		weights = fusionWeights{Lexical: 1.0}
	}
	fused := fuse(lexHits, vecHits, weights)

	threshold := r.cfg.ScoreThreshold
	if opts.ScoreThreshold > 0 {
		threshold = opts.ScoreThreshold
	}
	if threshold > 0 {
		kept := fused[:0]
		for _, f := range fused {
			if f.Score >= threshold {
				kept = append(kept, f)
			}
		}
		fused = kept
	}

	candidates, chunkByID, err := r.resolveChunks(ctx, fused, params)
	if err != nil {
		return nil, err
	}

	if r.reranker != nil {
		candidates = r.rerank(ctx, query, candidates, chunkByID)
	}
	if params.Diversify {
		candidates = diversify(candidates, chunkByID, params.TopK)
	}
	if len(candidates) > params.TopK {
		candidates = candidates[:params.TopK]
	}

	results := make([]*SearchResult, 0, len(candidates))
	for _, f := range candidates {
		res := &SearchResult{
			Chunk:         chunkByID[f.ChunkID],
			Score:         f.Score,
			LexicalScore:  f.LexicalScore,
			VectorScore:   f.VectorScore,
			InBothSources: f.InBothSources,
			MatchedTerms:  f.MatchedTerms,
		}
		if params.IncludeAdjacent {
			adjacent, err := r.meta.GetAdjacentChunks(ctx, f.ChunkID, 1)
			if err != nil {
				r.logger.Debug("adjacent chunk lookup failed", "chunk", f.ChunkID, "error", err)
			} else {
				res.Adjacent = adjacent
			}
		}
		results = append(results, res)
	}

	resp := &SearchResponse{Results: results, Decision: decision}
	if len(results) == 0 {
		resp.Hint = NoResultsHint
	}
	return resp, nil
}

// Close releases the router and reranker, if owned.
func (r *HybridRetriever) Close() error {
	var errs []error
	if r.router != nil {
		errs = append(errs, r.router.Close())
	}
	if r.reranker != nil {
		errs = append(errs, r.reranker.Close())
	}
	return errors.Join(errs...)
}

func (r *HybridRetriever) route(ctx context.Context, query string, opts SearchOptions) router.ContextDecision {
	if opts.DisableRouting || r.router == nil {
		return router.ContextDecision{
			Type:            router.ContextPartial,
			SuggestedChunks: maxResults(r.cfg),
			Confidence:      1.0,
			Reason:          "routing disabled",
		}
	}
	return r.router.Route(ctx, query)
}

func (r *HybridRetriever) vectorSearch(ctx context.Context, query string, vecIdx store.VectorIndex, limit int) ([]*store.VectorResult, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vecIdx.Search(ctx, vector, limit)
}

func (r *HybridRetriever) weights() fusionWeights {
	w := fusionWeights{Lexical: r.cfg.BM25Weight, Vector: r.cfg.VectorWeight}
	if w.Lexical <= 0 && w.Vector <= 0 {
		return fusionWeights{Lexical: 0.4, Vector: 0.6}
	}
	return w
}

// resolveChunks fetches chunk rows for the leading fused candidates and drops
// candidates whose chunk no longer exists (index drift is tolerated at query
// time and surfaced by diagnostics instead).
func (r *HybridRetriever) resolveChunks(ctx context.Context, fused []*fusedResult, params RetrievalParams) ([]*fusedResult, map[string]*store.Chunk, error) {
	considered := params.TopK * 2
	if considered < r.rerankN {
		considered = r.rerankN
	}
	if considered > len(fused) {
		considered = len(fused)
	}
	fused = fused[:considered]

	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.ChunkID
	}
	chunks, err := r.meta.GetChunks(ctx, ids)
	if err != nil {
		return nil, nil, scherr.New(scherr.ErrCodeSearchFailed, "load result chunks", err)
	}

	chunkByID := make(map[string]*store.Chunk, len(chunks))
	for _, c := range chunks {
		chunkByID[c.ID] = c
	}

	kept := make([]*fusedResult, 0, len(fused))
	for _, f := range fused {
		if _, ok := chunkByID[f.ChunkID]; ok {
			kept = append(kept, f)
		} else {
			r.logger.Debug("indexed chunk missing from store", "chunk", f.ChunkID)
		}
	}
	return kept, chunkByID, nil
}

// rerank rescores the leading candidates and reorders them by rerank score;
// the tail keeps its fused order. Rerank failures are absorbed.
func (r *HybridRetriever) rerank(ctx context.Context, query string, candidates []*fusedResult, chunkByID map[string]*store.Chunk) []*fusedResult {
	window := r.rerankN
	if window > len(candidates) {
		window = len(candidates)
	}
	if window < 2 {
		return candidates
	}

	docs := make([]string, window)
	for i := 0; i < window; i++ {
		docs[i] = chunkByID[candidates[i].ChunkID].Content
	}

	scores, err := r.reranker.Rerank(ctx, query, docs, 0)
	if err != nil {
		r.logger.Warn("rerank failed, keeping fused order", "error", err)
		return candidates
	}

	rescored := make(map[int]float64, len(scores))
	for _, s := range scores {
		if s.Index >= 0 && s.Index < window {
			rescored[s.Index] = s.Score
		}
	}

	head := make([]*fusedResult, window)
	order := make([]int, window)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return rescored[order[a]] > rescored[order[b]]
	})
	for i, idx := range order {
		head[i] = candidates[idx]
		head[i].Score = rescored[idx]
	}
	return append(head, candidates[window:]...)
}

// diversify caps any single document's share of the top results when more
// than one document has candidates, backfilling from the skipped overflow if
// the cap leaves slots empty.
func diversify(candidates []*fusedResult, chunkByID map[string]*store.Chunk, topK int) []*fusedResult {
	if topK <= 1 || len(candidates) <= 1 {
		return candidates
	}

	docs := make(map[string]struct{})
	for _, f := range candidates {
		docs[chunkByID[f.ChunkID].DocumentID] = struct{}{}
	}
	if len(docs) < 2 {
		return candidates
	}

	maxPerDoc := (topK + 1) / 2
	perDoc := make(map[string]int)
	picked := make([]*fusedResult, 0, topK)
	var overflow []*fusedResult

	for _, f := range candidates {
		if len(picked) == topK {
			break
		}
		docID := chunkByID[f.ChunkID].DocumentID
		if perDoc[docID] >= maxPerDoc {
			overflow = append(overflow, f)
			continue
		}
		perDoc[docID]++
		picked = append(picked, f)
	}
	for _, f := range overflow {
		if len(picked) == topK {
			break
		}
		picked = append(picked, f)
	}
	return picked
}
