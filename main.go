// Package main provides the entry point for the secregress CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set with -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "secregress",
		Short: "Security regression study over repository history",
		Long: `secregress walks the recent commit history of each configured repository,
runs bandit at every commit and summarizes how findings evolve.

Commands:
  run        Analyze history and write summaries
  aggregate  Rebuild summaries from stored reports
  render     Draw charts from summary CSVs
  serve      Consume scan jobs from SQS`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default .secregress.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level")

	rootCmd.AddCommand(
		newRunCommand(opts),
		newAggregateCommand(opts),
		newRenderCommand(opts),
		newServeCommand(opts),
		versionCmd(),
	)
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "secregress %s (commit: %s)\n", version, commit)
		},
	}
}
