package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"StockHound/internal/audit"
	"StockHound/internal/collector"
	"StockHound/internal/config"
	"StockHound/internal/metrics"
	"StockHound/internal/policy"
	"StockHound/internal/recorder"
	"StockHound/internal/screener"
)

// app bundles the wired components shared by all subcommands.
type app struct {
	cfg       *config.Config
	store     recorder.Store
	fetcher   collector.Fetcher
	screener  *screener.Screener
	auditor   *audit.Auditor
	validator *audit.PriceValidator
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// loadConfig reads and validates the configuration and applies its log level
// unless --log-level was given.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	if logLevel == "" {
		if l, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
			logger = logger.Level(l)
		}
	}
	return cfg, nil
}

// newApp wires every component from cfg. dryRun keeps the cache in memory.
func newApp(cfg *config.Config, dryRun bool, log zerolog.Logger) (*app, error) {
	store, err := openStore(cfg, dryRun, log)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if sr, ok := store.(*recorder.SQLiteRecorder); ok {
		reg.MustRegister(collectors.NewDBStatsCollector(sr.DB(), "stockhound"))
	}
	m := metrics.New(reg)

	fetcher := newFetcher(cfg, log)
	col := collector.NewCollector(fetcher, cfg.DataSource.HistoryDays, barsToKeep(cfg.DataSource.Period), log)

	auditor := audit.NewAuditor(store, audit.Config{
		SuspicionThreshold: cfg.Policy.SuspicionThreshold,
		DriftTolerance:     cfg.Policy.DriftTolerance,
	}, m, log)

	sc := screener.NewScreener(
		store,
		col,
		policy.NewFreshnessGate(cfg.Cache.StalenessWindow),
		policy.NewExclusionPolicy(cfg.Policy.ExclusionThreshold),
		auditor,
		m,
		screener.Options{
			Symbols: cfg.DataSource.Symbols,
			Period:  cfg.DataSource.Period,
			Workers: cfg.Screener.Workers,
		},
		log,
	)

	return &app{
		cfg:       cfg,
		store:     store,
		fetcher:   fetcher,
		screener:  sc,
		auditor:   auditor,
		validator: audit.NewPriceValidator(store, 0, m, log),
		registry:  reg,
		metrics:   m,
		log:       log,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func openStore(cfg *config.Config, dryRun bool, log zerolog.Logger) (recorder.Store, error) {
	if dryRun {
		log.Info().Msg("dry run: using in-memory store")
		return recorder.NewMemoryRecorder(), nil
	}
	path := cfg.Database.SQLitePath
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	store, err := recorder.NewSQLiteRecorder(path, log)
	if err != nil {
		return nil, fmt.Errorf("init sqlite recorder: %w", err)
	}
	return store, nil
}

// newFetcher builds the configured provider behind the rate limiter and
// circuit breaker.
func newFetcher(cfg *config.Config, log zerolog.Logger) collector.Fetcher {
	var f collector.Fetcher
	switch cfg.DataSource.Provider {
	case config.ProviderPolygon:
		f = collector.NewPolygonFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy)
	case config.ProviderMock:
		return &collector.MockFetcher{}
	default:
		y := collector.NewYahooFetcher(cfg.Proxy)
		if cfg.DataSource.BaseURL != "" {
			y.BaseURL = cfg.DataSource.BaseURL
		}
		f = y
	}
	log.Info().Str("provider", f.Name()).Int("rate_per_minute", cfg.DataSource.RatePerMinute).Msg("data source")
	return collector.NewGuarded(f, collector.GuardConfig{RatePerMinute: float64(cfg.DataSource.RatePerMinute)}, log)
}

// barsToKeep covers both the scoring period and the audit window.
func barsToKeep(period int) int {
	if period+1 > audit.HistoryWindow {
		return period + 1
	}
	return audit.HistoryWindow
}
