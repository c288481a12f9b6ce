// Package cmd provides the CLI commands for Scholia.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/scholia-dev/scholia/internal/logging"
	"github.com/scholia-dev/scholia/internal/profiling"
	"github.com/scholia-dev/scholia/pkg/version"
)

// Persistent flags shared by every subcommand.
var (
	flagConfig  string
	flagDataDir string
	flagDebug   bool

	profileCPU   string
	profileMem   string
	profileTrace string

	profiler       = profiling.New()
	cpuCleanup     func()
	traceCleanup   func()
	loggingCleanup func()
)

// NewRootCmd creates the root command for the scholia CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scholia",
		Short: "Retrieval over scholarly sources",
		Long: `Scholia indexes LaTeX, Markdown, and plain-text sources into named
libraries and answers queries with hybrid BM25 + vector retrieval.

Documents keep their mathematics intact through chunking, queries are
routed by how much context they need, and every library carries its own
indexes.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("scholia version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ~/.scholia/config.yaml)")
	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Data directory (default ~/.scholia)")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging to the log file")

	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startObservability
	cmd.PersistentPostRunE = stopObservability

	cmd.AddCommand(newLibraryCmd())
	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newAddTextCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newEmbeddingsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newRebuildFTSCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startObservability(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if flagDebug {
		logCfg.Level = "debug"
	}
	if logger, cleanup, err := logging.Setup(logCfg); err != nil {
		// Logging is observability, not a precondition; fall back to stderr.
		slog.Warn("file logging unavailable", "error", err)
	} else {
		loggingCleanup = cleanup
		slog.SetDefault(logger)
	}

	var err error
	if profileCPU != "" {
		if cpuCleanup, err = profiler.StartCPU(profileCPU); err != nil {
			return err
		}
	}
	if profileTrace != "" {
		if traceCleanup, err = profiler.StartTrace(profileTrace); err != nil {
			if cpuCleanup != nil {
				cpuCleanup()
				cpuCleanup = nil
			}
			return err
		}
	}
	return nil
}

func stopObservability(_ *cobra.Command, _ []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}
	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}
	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			return err
		}
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "scholia: %v\n", err)
		return err
	}
	return nil
}
