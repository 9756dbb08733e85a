package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ak-9647/queryflow/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the queryflow version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("queryflow %s\n", version.Get())
	},
}
