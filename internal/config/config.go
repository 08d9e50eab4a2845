package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Providers accepted by data_source.provider.
const (
	ProviderPolygon = "polygon"
	ProviderYahoo   = "yahoo"
	ProviderMock    = "mock"
)

// DefaultSymbols is the screening universe when none is configured.
var DefaultSymbols = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA"}

// Config holds all application configuration.
type Config struct {
	DataSource struct {
		Provider      string   `yaml:"provider"`
		BaseURL       string   `yaml:"base_url"`
		APIKey        string   `yaml:"api_key"`
		Symbols       []string `yaml:"symbols"`
		Period        int      `yaml:"period"`
		HistoryDays   int      `yaml:"history_days"`
		RatePerMinute int      `yaml:"rate_per_minute"`
	} `yaml:"data_source"`
	Cache struct {
		StalenessWindow time.Duration `yaml:"staleness_window"`
	} `yaml:"cache"`
	Policy struct {
		ExclusionThreshold float64 `yaml:"exclusion_threshold"`
		SuspicionThreshold float64 `yaml:"suspicion_threshold"`
		DriftTolerance     float64 `yaml:"drift_tolerance"`
	} `yaml:"policy"`
	Screener struct {
		Workers int `yaml:"workers"`
	} `yaml:"screener"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Schedule struct {
		ScreenCron string `yaml:"screen_cron"`
		AuditCron  string `yaml:"audit_cron"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides and fills defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional.
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("POLYGON_API_KEY"); v != "" {
		c.DataSource.APIKey = v
	}
	if v := os.Getenv("STOCKHOUND_SYMBOLS"); v != "" {
		c.DataSource.Symbols = splitSymbols(v)
	}
	if v := os.Getenv("STALENESS_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("STALENESS_WINDOW: %w", err)
		}
		c.Cache.StalenessWindow = d
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DataSource.Provider == "" {
		if c.DataSource.APIKey != "" {
			c.DataSource.Provider = ProviderPolygon
		} else {
			c.DataSource.Provider = ProviderYahoo
		}
	}
	if len(c.DataSource.Symbols) == 0 {
		c.DataSource.Symbols = append([]string(nil), DefaultSymbols...)
	}
	if c.DataSource.Period == 0 {
		c.DataSource.Period = 20
	}
	if c.DataSource.HistoryDays == 0 {
		c.DataSource.HistoryDays = 60
	}
	if c.DataSource.RatePerMinute == 0 && c.DataSource.Provider == ProviderPolygon {
		// Polygon free tier.
		c.DataSource.RatePerMinute = 5
	}
	if c.Cache.StalenessWindow == 0 {
		c.Cache.StalenessWindow = 24 * time.Hour
	}
	if c.Policy.ExclusionThreshold == 0 {
		c.Policy.ExclusionThreshold = 1.1
	}
	if c.Policy.SuspicionThreshold == 0 {
		c.Policy.SuspicionThreshold = 1.3
	}
	if c.Policy.DriftTolerance == 0 {
		c.Policy.DriftTolerance = 0.05
	}
	if c.Screener.Workers == 0 {
		c.Screener.Workers = 1
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/stockhound.db"
	}
	if c.Schedule.ScreenCron == "" {
		// Weekdays after the US close.
		c.Schedule.ScreenCron = "0 30 21 * * 1-5"
	}
	if c.Schedule.AuditCron == "" {
		c.Schedule.AuditCron = "0 0 22 * * 1-5"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// TelegramEnabled reports whether both bot token and chat are set.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Validate checks that all fields hold usable values.
func (c *Config) Validate() error {
	switch c.DataSource.Provider {
	case ProviderPolygon:
		if c.DataSource.APIKey == "" {
			return fmt.Errorf("data_source.api_key is required for polygon")
		}
	case ProviderYahoo, ProviderMock:
	default:
		return fmt.Errorf("data_source.provider %q is not one of polygon, yahoo, mock", c.DataSource.Provider)
	}
	if len(c.DataSource.Symbols) == 0 {
		return fmt.Errorf("data_source.symbols must not be empty")
	}
	if c.DataSource.Period < 2 {
		return fmt.Errorf("data_source.period must be at least 2")
	}
	if c.DataSource.HistoryDays <= c.DataSource.Period {
		return fmt.Errorf("data_source.history_days must exceed data_source.period")
	}
	if c.DataSource.RatePerMinute < 0 {
		return fmt.Errorf("data_source.rate_per_minute must not be negative")
	}
	if c.Cache.StalenessWindow < 0 {
		return fmt.Errorf("cache.staleness_window must not be negative")
	}
	if c.Policy.ExclusionThreshold <= 0 || c.Policy.SuspicionThreshold <= 0 || c.Policy.DriftTolerance <= 0 {
		return fmt.Errorf("policy thresholds must be positive")
	}
	if c.Screener.Workers < 1 {
		return fmt.Errorf("screener.workers must be at least 1")
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Schedule.ScreenCron); err != nil {
		return fmt.Errorf("schedule.screen_cron: %w", err)
	}
	if _, err := parser.Parse(c.Schedule.AuditCron); err != nil {
		return fmt.Errorf("schedule.audit_cron: %w", err)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

func splitSymbols(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
