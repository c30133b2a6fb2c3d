// Package main provides the PostPilot CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	pretty  = true
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "postpilot",
		Short: "PostPilot - LLM-driven campaign orchestration",
		Long: `PostPilot turns a free-text campaign goal into typed work steps,
runs them on a durable queue, and lets step workers call a language
model to manage campaign records or emit source files into a
sandboxed tree.

Use 'postpilot plan' to preview a plan, 'postpilot run' for the
interactive tool loop, and 'postpilot worker' to process queued jobs.`,
		Version: version,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			closeApp()
		},
	}

	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", true, "human-readable output (false for JSON)")

	rootCmd.AddCommand(
		planCmd(),
		runCmd(),
		generateCmd(),
		workerCmd(),
		jobCmd(),
		toolsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
