package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

// auditCmd corrects stored trade prices and revalidates suspicious scores.
var auditCmd = &cobra.Command{
	Use:   "audit [SYMBOL...]",
	Short: "Validate stored prices and revalidate suspicious scores",
	Long: `Replace stored trade prices that disagree with the latest close, then
recompute every stored score at or above the suspicion threshold from the
stored history and overwrite the ones that drifted.

With symbols, only their scores are revalidated.`,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, false, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fixed, err := a.validator.ValidateAndCorrect(ctx)
	if err != nil {
		return fmt.Errorf("validate prices: %w", err)
	}
	report, err := a.auditor.Revalidate(ctx, args...)
	if err != nil {
		return fmt.Errorf("revalidate scores: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Trade prices corrected: %d\n", fixed)
	fmt.Fprintf(out, "Scores checked: %d, corrected: %d, skipped: %d\n",
		report.Checked, len(report.Corrected), len(report.Skipped))
	if len(report.Corrected) > 0 {
		fmt.Fprintf(out, "Corrected: %s\n", strings.Join(report.Corrected, ", "))
	}
	return nil
}
