package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	logger zerolog.Logger
)

// rootCmd is the base command for the StockHound CLI.
var rootCmd = &cobra.Command{
	Use:   "stockhound",
	Short: "StockHound stock screener",
	Long: `StockHound scores a universe of stocks on moving average, RSI and
Bollinger Band signals, caches market data in SQLite and lists the symbols
that fit a budget.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger()
	},
}

func init() {
	defaultConfig := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultConfig = v
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error), overrides log.level")
}

func setupLogger() error {
	level := zerolog.InfoLevel
	if logLevel != "" {
		l, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}
		level = l
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
