package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "queryflow",
	Short: "Conversational analytics query orchestrator",
	Long: `QueryFlow turns natural-language analytics questions into dependency
graphs of sub-tasks, routes each sub-task to the most relevant registered
tool, and merges the results into one answer.

Sessions are remembered: follow-up questions reuse recent context and
learned preferences. When a tool is down, QueryFlow degrades gracefully to
local computation and says so.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}
