package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/scholia-dev/scholia/internal/index"
	"github.com/scholia-dev/scholia/internal/ingest"
	"github.com/scholia-dev/scholia/internal/output"
)

// addFlags are shared between add and add-text.
type addFlags struct {
	library  string
	bibKey   string
	citation string
	deferred bool
}

func (f *addFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.library, "library", "l", "", "Target library (name or ID)")
	cmd.Flags().StringVar(&f.bibKey, "bib-key", "", "Reference-manager citation key")
	cmd.Flags().StringVar(&f.citation, "citation", "", "Formatted citation text")
	cmd.Flags().BoolVar(&f.deferred, "defer", false, "Store only; index later with a processing run")
	_ = cmd.MarkFlagRequired("library")
}

func newAddCmd() *cobra.Command {
	var flags addFlags

	cmd := &cobra.Command{
		Use:   "add <path>...",
		Short: "Ingest source files into a library",
		Long: `Add LaTeX, Markdown, or plain-text files to a library. The format is
detected from the file extension, metadata (title, authors, year) is
extracted from the content, and the document is segmented and indexed.

Examples:
  scholia add paper.tex --library papers
  scholia add notes/*.md --library "reading notes" --defer`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			lib, err := a.resolveLibrary(ctx, flags.library)
			if err != nil {
				return err
			}

			svc := ingest.NewService(a.libs, newCoordinator(a), a.meta, a.logger)
			out := output.New(cmd.OutOrStdout())

			failures := 0
			for _, path := range args {
				res := svc.AddDocument(ctx, ingest.AddDocumentRequest{
					LibraryID:          lib.ID,
					Path:               path,
					BibKey:             flags.bibKey,
					CitationText:       flags.citation,
					ProcessImmediately: !flags.deferred,
				})
				if !res.Success {
					failures++
					out.Warning("%s: %s", path, res.Error)
					continue
				}
				if flags.deferred {
					out.Printf("stored %s (%s)", path, res.DocumentID)
				} else {
					out.Printf("added %s: %d chunks (%s)", path, res.Chunks, res.DocumentID)
				}
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d files failed", failures, len(args))
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newAddTextCmd() *cobra.Command {
	var (
		flags     addFlags
		title     string
		mediaType string
	)

	cmd := &cobra.Command{
		Use:   "add-text",
		Short: "Ingest raw text from stdin into a library",
		Long: `Read document content from stdin and add it to a library. Useful for
piping exports from reference managers or scripted ingestion.

Example:
  pbpaste | scholia add-text --library notes --title "Seminar notes" --type markdown`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			content, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			lib, err := a.resolveLibrary(ctx, flags.library)
			if err != nil {
				return err
			}

			svc := ingest.NewService(a.libs, newCoordinator(a), a.meta, a.logger)
			res := svc.AddText(ctx, ingest.AddTextRequest{
				LibraryID:          lib.ID,
				Title:              title,
				MediaType:          mediaType,
				Content:            string(content),
				BibKey:             flags.bibKey,
				CitationText:       flags.citation,
				ProcessImmediately: !flags.deferred,
			})
			if !res.Success {
				return fmt.Errorf("%s", res.Error)
			}
			output.New(cmd.OutOrStdout()).Printf("added %q: %d chunks (%s)",
				title, res.Chunks, res.DocumentID)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&title, "title", "", "Document title (front matter wins when present)")
	cmd.Flags().StringVar(&mediaType, "type", "text", "Content type: latex, markdown, text")
	return cmd
}

// newCoordinator wires an index coordinator without an embedder; the add
// path never embeds inline, 'scholia generate-embeddings' does that in batch.
func newCoordinator(a *app) *index.Coordinator {
	return index.NewCoordinator(a.meta, a.indexes, nil, a.cfg.Embedding, a.logger)
}
