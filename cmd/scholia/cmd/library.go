package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/scholia-dev/scholia/internal/output"
)

func newLibraryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "library",
		Aliases: []string{"lib"},
		Short:   "Manage libraries",
		Long: `Libraries are named, isolated knowledge bases. Each owns its documents,
chunks, embeddings, and indexes; deleting one removes all of them.`,
	}

	cmd.AddCommand(newLibraryCreateCmd())
	cmd.AddCommand(newLibraryListCmd())
	cmd.AddCommand(newLibraryRenameCmd())
	cmd.AddCommand(newLibraryDeleteCmd())
	return cmd
}

func newLibraryCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			lib, err := a.libs.Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())
			out.Printf("created library %q (%s)", lib.Name, lib.ID)
			return nil
		},
	}
}

func newLibraryListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List libraries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			libs, err := a.libs.List(ctx)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(libs)
			}

			out := output.New(cmd.OutOrStdout())
			if len(libs) == 0 {
				out.Printf("no libraries yet; create one with 'scholia library create <name>'")
				return nil
			}
			for _, lib := range libs {
				docs, err := a.meta.CountDocuments(ctx, lib.ID)
				if err != nil {
					return err
				}
				out.Printf("%-24s %4d documents  %s", lib.Name, docs, lib.ID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newLibraryRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <library> <new-name>",
		Short: "Rename a library",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			lib, err := a.resolveLibrary(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renamed, err := a.libs.Rename(cmd.Context(), lib.ID, args[1])
			if err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Printf("renamed %q to %q", lib.Name, renamed.Name)
			return nil
		},
	}
}

func newLibraryDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <library>",
		Short: "Delete a library and everything in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			lib, err := a.resolveLibrary(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !force {
				return cmdConfirmError(lib.Name)
			}
			if err := a.libs.Delete(cmd.Context(), lib.ID); err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Printf("deleted library %q", lib.Name)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Delete without confirmation")
	return cmd
}

type confirmError struct{ name string }

func (e *confirmError) Error() string {
	return "deleting " + e.name + " removes its documents, chunks, and indexes; re-run with --force"
}

func cmdConfirmError(name string) error {
	return &confirmError{name: name}
}
