package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"StockHound/internal/model"
	"StockHound/internal/recorder"
)

// includeCmd clears the exclusion latch. Screening passes never do this.
var includeCmd = &cobra.Command{
	Use:   "include SYMBOL...",
	Short: "Clear the exclusion flag of symbols",
	Long: `Excluded symbols stay excluded across passes. This command clears the
flag and marks the cached data stale so the next pass refetches and rescores
the symbol.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInclude,
}

func init() {
	rootCmd.AddCommand(includeCmd)
}

func runInclude(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, false, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, arg := range args {
		symbol := strings.ToUpper(arg)
		if err := includeSymbol(cmd.Context(), a.store, symbol); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s included\n", symbol)
	}
	return nil
}

func includeSymbol(ctx context.Context, store recorder.Store, symbol string) error {
	stock, err := store.GetStock(ctx, symbol)
	if errors.Is(err, recorder.ErrNotFound) {
		return fmt.Errorf("%s is not in the cache", symbol)
	}
	if err != nil {
		return err
	}
	if err := store.SetExcluded(ctx, symbol, false); err != nil {
		return err
	}
	// A zero timestamp is never fresh.
	return store.UpsertStock(ctx, model.Stock{Symbol: symbol, Name: stock.Name, LastUpdated: time.Time{}})
}
