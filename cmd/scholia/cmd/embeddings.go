package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scholia-dev/scholia/internal/embed"
	"github.com/scholia-dev/scholia/internal/index"
	"github.com/scholia-dev/scholia/internal/output"
)

func newEmbeddingsCmd() *cobra.Command {
	var libraryFlag string

	cmd := &cobra.Command{
		Use:   "generate-embeddings",
		Short: "Embed chunks that do not have vectors yet",
		Long: `Generate embeddings for every chunk missing one and add them to the
vector index. The run is idempotent: chunks that already have an
embedding are skipped, so it can be re-run after provider outages or
deferred ingestion.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			libraryID := ""
			if libraryFlag != "" {
				lib, err := a.resolveLibrary(ctx, libraryFlag)
				if err != nil {
					return err
				}
				libraryID = lib.ID
			}

			embedder, err := embed.New(a.cfg.Embedding)
			if err != nil {
				return err
			}
			defer embedder.Close()

			if !embedder.Available(ctx) {
				return fmt.Errorf("embedding provider %s is not reachable at %s",
					a.cfg.Embedding.Provider, a.cfg.Embedding.Endpoint)
			}

			coord := index.NewCoordinator(a.meta, a.indexes, embedder, a.cfg.Embedding, a.logger)
			processed, failed, err := coord.GenerateEmbeddings(ctx, libraryID)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Printf("embedded %d chunks with %s", processed, embedder.ModelName())
			if failed > 0 {
				out.Warning("%d chunks failed; re-run to retry them", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&libraryFlag, "library", "l", "", "Restrict to one library (default all)")
	return cmd
}
