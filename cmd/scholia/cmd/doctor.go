package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scholia-dev/scholia/internal/index"
	"github.com/scholia-dev/scholia/internal/output"
)

func newDoctorCmd() *cobra.Command {
	var (
		libraryFlag string
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check index consistency and report drift",
		Long: `Compare the chunk store against the full-text and vector indexes and
report any drift: missing FTS records, chunks without embeddings, or
mixed embedding models.

Diagnosis never repairs anything. Follow the reported suggestions
('scholia rebuild-fts', 'scholia generate-embeddings') to fix drift.`,
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

			diag := index.NewDiagnosticsService(a.meta, a.indexes, a.logger)
			report, err := diag.Diagnose(ctx, libraryID)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			out := output.New(cmd.OutOrStdout())
			out.Heading("%d chunks, %d embeddings, %d FTS records",
				report.TotalChunks, report.TotalEmbeddings, report.FTSRecords)
			out.Newline()

			inconsistent := 0
			for _, lr := range report.Libraries {
				status := "ok"
				if !lr.Consistent {
					status = "DRIFT"
					inconsistent++
				}
				out.Item("%-24s %s  %d docs, %d chunks, %d embedded",
					lr.Name, status, lr.Documents, lr.Chunks, lr.Embeddings)
				for _, issue := range lr.Issues {
					out.Detail("%s", issue)
				}
			}

			if inconsistent > 0 {
				return fmt.Errorf("%d of %d libraries have index drift", inconsistent, len(report.Libraries))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&libraryFlag, "library", "l", "", "Restrict to one library (default all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newRebuildFTSCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-fts",
		Short: "Rebuild the full-text indexes from the chunk store",
		Long: `Drop and rebuild every library's full-text index from the chunks in the
metadata store. Use after 'scholia doctor' reports FTS drift.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			diag := index.NewDiagnosticsService(a.meta, a.indexes, a.logger)
			records, err := diag.RebuildFTS(cmd.Context())
			if err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Printf("rebuilt full-text indexes: %d records", records)
			return nil
		},
	}
}
