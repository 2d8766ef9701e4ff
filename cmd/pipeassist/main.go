// Package main provides the CLI entry point for the pipeline assistant.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/cli"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/logger"
)

// Exit codes
const (
	ExitSuccess         = 0
	ExitValidationError = 1
	ExitParseError      = 2
	ExitRuntimeError    = 3
)

var (
	// Global flags
	verbose bool
	quiet   bool
	envFile string

	// Command flags
	importArtifactsDir string
	executionsPipeline string

	// Build information (set via ldflags during build)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitRuntimeError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pipeassist",
	Short: "pipeassist - AI-assisted data pipeline service",
	Long: `pipeassist stores data pipeline definitions, runs them against
spreadsheets and databases, and helps draft new pipelines with an AI model.

Examples:
  # Start the HTTP API and the scheduler
  pipeassist serve

  # Validate a pipeline definition
  pipeassist validate pipeline.yaml

  # Import a definition and its generated script
  pipeassist import pipeline.yaml --artifacts-dir ./out

  # Run a stored pipeline once
  pipeassist run 3f1c9a4e-...`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetLevel(slog.LevelDebug)
		} else if quiet {
			logger.SetLevel(slog.LevelError)
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the scheduler",
	Long: `Start the HTTP API. Scheduled pipelines are registered with the
cron scheduler unless SCHEDULER_ENABLED=false.

The process stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		os.Exit(runServe(cmd.Context()))
	},
}

var runCmd = &cobra.Command{
	Use:   "run <pipeline-id>",
	Short: "Run a stored pipeline once",
	Long: `Run a stored pipeline and print the execution record.

Exit codes:
  0 - Pipeline executed successfully
  3 - Pipeline not found, already running, or the run failed`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runPipeline(cmd.Context(), newPrinter(), args[0]))
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <definition-file>",
	Short: "Validate a pipeline definition file",
	Long: `Validate a pipeline definition against the schema and check the
configuration of every step.

Supports both JSON and YAML formats.

Exit codes:
  0 - Definition is valid
  1 - Validation errors (schema violations or step configuration)
  2 - Parse errors (invalid JSON/YAML syntax)`,
	Args: cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		os.Exit(runValidate(newPrinter(), args[0]))
	},
}

var importCmd = &cobra.Command{
	Use:   "import <definition-file>",
	Short: "Store a pipeline definition",
	Long: `Validate a pipeline definition and save it as a new pipeline.

With --artifacts-dir, the generated files found there (config.yaml,
pipeline.py, EXECUTION_STRATEGY.md, credentials.json) are stored with it.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runImport(cmd.Context(), newPrinter(), args[0], importArtifactsDir))
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored pipelines",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		os.Exit(runList(cmd.Context(), newPrinter()))
	},
}

var executionsCmd = &cobra.Command{
	Use:   "executions",
	Short: "List execution history",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		os.Exit(runExecutions(cmd.Context(), newPrinter(), executionsPipeline))
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <pipeline-id>",
	Short: "Delete a pipeline and its executions",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runDelete(cmd.Context(), newPrinter(), args[0]))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version, commit hash, and build date information.",
	Run: func(_ *cobra.Command, _ []string) {
		printVersion(newPrinter())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading settings")

	importCmd.Flags().StringVar(&importArtifactsDir, "artifacts-dir", "", "Directory holding generated pipeline files")
	executionsCmd.Flags().StringVar(&executionsPipeline, "pipeline", "", "Only show executions of this pipeline")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(executionsCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(versionCmd)
}

func newPrinter() *cli.Printer {
	return cli.NewPrinter(cli.OutputOptions{Verbose: verbose, Quiet: quiet})
}

func printVersion(p *cli.Printer) {
	fmt.Fprintf(p.Out, "pipeassist version %s\n", version)
	fmt.Fprintf(p.Out, "  commit: %s\n", commit)
	fmt.Fprintf(p.Out, "  built:  %s\n", buildDate)
}
