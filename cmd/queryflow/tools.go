package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Ak-9647/queryflow/internal/config"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the registered tool catalog",
	RunE:  runTools,
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	reg, err := openRegistry(cfg)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	for _, tool := range reg.List() {
		status := color.GreenString("enabled")
		if !tool.Enabled {
			status = color.RedString("disabled")
		}
		bold.Printf("%s", tool.Name)
		fmt.Printf("  [%s, cost %s]\n", status, tool.Cost)
		if tool.GeneralPurpose {
			fmt.Println("    general purpose")
		}
		if len(tool.Operations) > 0 {
			fmt.Printf("    operations: %s\n", strings.Join(tool.Operations, ", "))
		}
	}
	return nil
}
