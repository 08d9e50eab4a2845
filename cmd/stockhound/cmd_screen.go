package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"StockHound/internal/model"
	"StockHound/internal/notifier"
	"StockHound/internal/screener"
)

var (
	screenBudget float64
	screenDryRun bool
	screenFormat string
)

// screenCmd runs one screening pass.
var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "List the best scoring stocks within a budget",
	Long: `Run one screening pass over the configured symbols. Cached market data
younger than the staleness window is reused; older data is refetched.

Examples:
  stockhound screen --budget 500
  stockhound screen --budget 500 --format json
  stockhound screen --budget 500 --dry-run`,
	RunE: runScreen,
}

func init() {
	rootCmd.AddCommand(screenCmd)

	screenCmd.Flags().Float64Var(&screenBudget, "budget", 0, "Maximum share price to list")
	screenCmd.Flags().BoolVar(&screenDryRun, "dry-run", false, "Keep the cache in memory instead of SQLite")
	screenCmd.Flags().StringVar(&screenFormat, "format", "table", "Output format (table|json)")
	_ = screenCmd.MarkFlagRequired("budget")
}

func runScreen(cmd *cobra.Command, args []string) error {
	if screenFormat != "table" && screenFormat != "json" {
		return fmt.Errorf("unknown format %q", screenFormat)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, screenDryRun, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := a.screener.Screen(ctx, screenBudget)
	var pe *screener.PassError
	switch {
	case errors.Is(err, screener.ErrInvalidBudget):
		return fmt.Errorf("please enter a valid budget: %w", err)
	case errors.As(err, &pe):
		for _, e := range pe.Errors {
			logger.Warn().Err(e).Msg("symbol skipped")
		}
	case err != nil:
		return fmt.Errorf("screening failed: %w", err)
	}

	return writeResults(cmd.OutOrStdout(), screenFormat, results)
}

func writeResults(w io.Writer, format string, results []model.Result) error {
	if format == "json" {
		if results == nil {
			results = []model.Result{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	return notifier.FormatTable(w, results)
}
