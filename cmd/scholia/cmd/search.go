package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scholia-dev/scholia/internal/embed"
	"github.com/scholia-dev/scholia/internal/output"
	"github.com/scholia-dev/scholia/internal/router"
	"github.com/scholia-dev/scholia/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	library     string
	limit       int
	threshold   float64
	lexicalOnly bool
	noRoute     bool
	jsonOutput  bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a library",
		Long: `Search a library with hybrid retrieval: BM25 and vector hits are fused
by weighted score, the query is first routed to decide how much context
it needs, and results can be reranked when configured.

Examples:
  scholia search "what is the attention mechanism" --library papers
  scholia search "总结这篇论文的主要贡献" --library papers
  scholia search "interlacing" --library papers --lexical-only --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.library, "library", "l", "", "Library to search (name or ID)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", 0, "Minimum fused score, 0 to 1")
	cmd.Flags().BoolVar(&opts.lexicalOnly, "lexical-only", false, "Skip vector search, BM25 only")
	cmd.Flags().BoolVar(&opts.noRoute, "no-route", false, "Skip context routing, use default depth")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("library")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	lib, err := a.resolveLibrary(ctx, opts.library)
	if err != nil {
		return err
	}

	// Vector search needs an embedder for the query; lexical-only does not,
	// so skip provider setup entirely in that mode.
	var embedder embed.Embedder
	if !opts.lexicalOnly && a.cfg.Retrieval.UseHybridSearch {
		embedder, err = embed.New(a.cfg.Embedding)
		if err != nil {
			return err
		}
		defer embedder.Close()
	}

	rt, err := router.New(a.cfg.Router, a.cfg.Retrieval.EnableBilingualSearch, a.logger)
	if err != nil {
		return err
	}

	reranker, err := search.NewReranker(a.cfg.Rerank)
	if err != nil {
		return err
	}

	retriever, err := search.NewHybridRetriever(
		a.indexes, embedder, a.meta, rt, reranker,
		a.cfg.Retrieval, a.cfg.Rerank, a.logger)
	if err != nil {
		return err
	}
	defer retriever.Close()

	resp, err := retriever.Search(ctx, query, search.SearchOptions{
		LibraryID:      lib.ID,
		TopK:           opts.limit,
		ScoreThreshold: opts.threshold,
		LexicalOnly:    opts.lexicalOnly,
		DisableRouting: opts.noRoute,
	})
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	return renderResults(cmd, query, resp)
}

func renderResults(cmd *cobra.Command, query string, resp *search.SearchResponse) error {
	out := output.New(cmd.OutOrStdout())

	if len(resp.Results) == 0 {
		out.Printf("no results for %q", query)
		if resp.Hint != "" {
			out.Detail("%s", resp.Hint)
		}
		return nil
	}

	out.Heading("Found %d results for %q (%s context)",
		len(resp.Results), query, resp.Decision.Type)
	out.Newline()

	for i, r := range resp.Results {
		heading := r.Chunk.Heading
		if heading == "" {
			heading = "(no section)"
		}
		out.Item("%d. %s  [score %.3f]", i+1, heading, r.Score)
		out.Snippet(r.Chunk.Content, 3)
		if len(r.Adjacent) > 0 {
			out.Detail("+ %d adjacent chunks", len(r.Adjacent))
		}
		out.Newline()
	}
	return nil
}
