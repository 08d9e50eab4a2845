package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"StockHound/internal/api"
	"StockHound/internal/notifier"
	"StockHound/internal/scheduler"
)

var serveRunOnStart bool

// serveCmd runs the long-lived service: cron tasks, HTTP API and the
// Telegram bot.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled screens and audits with the HTTP API",
	Long: `Run the scheduler (cache warm-up screens and audits), serve
GET /screen, /healthz and /metrics, and answer Telegram commands when a bot
is configured.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveRunOnStart, "run-on-start", os.Getenv("RUN_ON_START") == "true", "Run a screen immediately")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger.Info().Msg("StockHound starting...")

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

	var (
		tn     *notifier.TelegramNotifier
		sender scheduler.Sender
	)
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logger)
		sender = tn
	}

	sched := scheduler.NewScheduler(ctx, a.screener, a.validator, a.auditor, sender, logger)
	if err := sched.RegisterAll(cfg.Schedule.ScreenCron, cfg.Schedule.AuditCron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		logger.Info().Msg("Telegram polling started")
	}

	srv := api.New(api.Config{
		Addr:     cfg.HTTP.Addr,
		Log:      logger,
		Screener: a.screener,
		Gatherer: a.registry,
	})
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	if serveRunOnStart {
		logger.Info().Msg("run-on-start enabled, executing screen now")
		go sched.RunScreenNow()
	}

	logger.Info().Msg("StockHound is running. Press Ctrl+C to stop.")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received, stopping...")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	logger.Info().Msg("StockHound stopped")
	return nil
}
