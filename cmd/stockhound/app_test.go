package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockHound/internal/audit"
	"StockHound/internal/collector"
	"StockHound/internal/config"
	"StockHound/internal/model"
	"StockHound/internal/notifier"
	"StockHound/internal/recorder"
)

func testConfig(t *testing.T, provider string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.DataSource.Provider = provider
	cfg.DataSource.APIKey = "key"
	cfg.DataSource.Symbols = []string{"AAPL", "MSFT"}
	cfg.DataSource.Period = 20
	cfg.DataSource.HistoryDays = 60
	cfg.Cache.StalenessWindow = time.Hour
	cfg.Policy.ExclusionThreshold = 1.1
	cfg.Policy.SuspicionThreshold = 1.3
	cfg.Policy.DriftTolerance = 0.05
	cfg.Screener.Workers = 2
	cfg.Database.SQLitePath = filepath.Join(t.TempDir(), "nested", "stockhound.db")
	return cfg
}

func TestNewFetcher(t *testing.T) {
	log := zerolog.Nop()

	f := newFetcher(testConfig(t, config.ProviderPolygon), log)
	g, ok := f.(*collector.Guarded)
	require.True(t, ok)
	assert.Equal(t, "polygon", g.Name())

	cfg := testConfig(t, config.ProviderYahoo)
	cfg.DataSource.BaseURL = "http://localhost:1"
	assert.Equal(t, "yahoo", newFetcher(cfg, log).Name())

	_, ok = newFetcher(testConfig(t, config.ProviderMock), log).(*collector.MockFetcher)
	assert.True(t, ok)
}

func TestBarsToKeep(t *testing.T) {
	assert.Equal(t, audit.HistoryWindow, barsToKeep(14))
	assert.Equal(t, 51, barsToKeep(50))
}

func TestNewApp_SQLite(t *testing.T) {
	cfg := testConfig(t, config.ProviderMock)
	a, err := newApp(cfg, false, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	_, ok := a.store.(*recorder.SQLiteRecorder)
	assert.True(t, ok)
	assert.FileExists(t, cfg.Database.SQLitePath)

	results, err := a.screener.Screen(context.Background(), 1e6)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	mfs, err := a.registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["stockhound_symbols_screened_total"])
	assert.True(t, names["go_sql_open_connections"])
}

func TestNewApp_DryRun(t *testing.T) {
	cfg := testConfig(t, config.ProviderMock)
	a, err := newApp(cfg, true, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	_, ok := a.store.(*recorder.MemoryRecorder)
	assert.True(t, ok)
	assert.NoFileExists(t, cfg.Database.SQLitePath)
}

func TestIncludeSymbol(t *testing.T) {
	ctx := context.Background()
	store := recorder.NewMemoryRecorder()

	assert.ErrorContains(t, includeSymbol(ctx, store, "NOPE"), "not in the cache")

	require.NoError(t, store.UpsertStock(ctx, model.Stock{Symbol: "XYZ", Name: "Xyz Corp", LastUpdated: time.Now()}))
	require.NoError(t, store.SetExcluded(ctx, "XYZ", true))
	require.NoError(t, includeSymbol(ctx, store, "XYZ"))

	stock, err := store.GetStock(ctx, "XYZ")
	require.NoError(t, err)
	assert.False(t, stock.Excluded)
	assert.True(t, stock.LastUpdated.IsZero())
	assert.Equal(t, "Xyz Corp", stock.Name)
}

func TestWriteResults(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResults(&buf, "json", nil))
	assert.JSONEq(t, `[]`, buf.String())

	buf.Reset()
	require.NoError(t, writeResults(&buf, "table", nil))
	assert.Contains(t, buf.String(), notifier.NoResultsMessage)

	buf.Reset()
	rows := []model.Result{{Symbol: "AAPL", Name: "Apple", Price: 10, ScoreSet: model.ScoreSet{TotalScore: 0.5}}}
	require.NoError(t, writeResults(&buf, "json", rows))
	var decoded []model.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, rows, decoded)
}

func TestScreenCommand(t *testing.T) {
	for _, k := range []string{"POLYGON_API_KEY", "STOCKHOUND_SYMBOLS", "STALENESS_WINDOW", "SQLITE_PATH", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "HTTPS_PROXY"} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
data_source:
  provider: mock
  symbols: [AAPL, MSFT, GOOGL]
database:
  sqlite_path: `+filepath.Join(dir, "db.sqlite")+`
`), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"screen", "--config", cfgPath, "--budget", "1000000", "--format", "json", "--log-level", "error"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	})
	require.NoError(t, rootCmd.Execute())

	var results []model.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))
	assert.Len(t, results, 3)

	out.Reset()
	rootCmd.SetArgs([]string{"screen", "--config", cfgPath, "--budget=-1", "--log-level", "error"})
	assert.ErrorContains(t, rootCmd.Execute(), "valid budget")
}
