package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Ak-9647/queryflow/internal/config"
	"github.com/Ak-9647/queryflow/internal/memory"
)

var (
	historySession string
	historyLimit   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent turns for a session",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historySession, "session", "", "session id (required)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum turns to show")
	historyCmd.MarkFlagRequired("session")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	turns, err := store.ListTurns(historySession, historyLimit)
	if err != nil {
		return fmt.Errorf("list turns: %w", err)
	}
	if len(turns) == 0 {
		fmt.Printf("no turns recorded for session %s\n", historySession)
		return nil
	}

	mem := memory.NewManager(store)
	stats, err := mem.Stats(historySession)
	if err != nil {
		return fmt.Errorf("session stats: %w", err)
	}

	bold := color.New(color.Bold)
	for _, turn := range turns {
		bold.Printf("%s", turn.Timestamp.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("  [%s]", turn.Intent)
		if turn.Degraded {
			fmt.Printf("  %s", color.YellowString("degraded"))
		}
		fmt.Println()
		fmt.Printf("  > %s\n", turn.Query)
		fmt.Printf("  %s\n", turn.Summary)
	}
	fmt.Printf("\n%d turns over %s, avg query length %.0f\n",
		stats.Turns, stats.Span.Round(time.Second), stats.AvgQueryLength)
	return nil
}
