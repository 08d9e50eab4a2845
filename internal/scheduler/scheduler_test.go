package scheduler

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockHound/internal/audit"
	"StockHound/internal/collector"
	"StockHound/internal/model"
	"StockHound/internal/policy"
	"StockHound/internal/recorder"
	"StockHound/internal/screener"
)

type captureSender struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (c *captureSender) SendWithRetry(_ context.Context, text string, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, text)
	return c.err
}

func (c *captureSender) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.msgs) == 0 {
		return ""
	}
	return c.msgs[len(c.msgs)-1]
}

var now = time.Date(2025, 6, 2, 21, 30, 0, 0, time.UTC)

func sineBars(symbol string, base float64, n int) []model.OHLCV {
	bars := make([]model.OHLCV, n)
	for i := range bars {
		c := base + base*0.02*math.Sin(float64(i))
		bars[i] = model.OHLCV{Symbol: symbol, Time: now.AddDate(0, 0, i-n).Truncate(24 * time.Hour), Close: c}
	}
	return bars
}

func setup(t *testing.T) (*Scheduler, *recorder.MemoryRecorder, *collector.MockFetcher, *captureSender) {
	t.Helper()
	log := zerolog.Nop()
	store := recorder.NewMemoryRecorder()
	fetcher := &collector.MockFetcher{
		Trades: map[string]model.Trade{},
		Bars:   map[string][]model.OHLCV{},
		Errors: map[string]error{},
	}
	for sym, base := range map[string]float64{"AAPL": 100, "MSFT": 400} {
		bars := sineBars(sym, base, 30)
		fetcher.Bars[sym] = bars
		// Trade at the last close so the price validator has nothing to do.
		fetcher.Trades[sym] = model.Trade{Symbol: sym, Price: bars[len(bars)-1].Close}
	}
	auditor := audit.NewAuditor(store, audit.Config{}, nil, log)
	sc := screener.NewScreener(
		store,
		collector.NewCollector(fetcher, 60, 30, log),
		policy.NewFreshnessGate(0),
		policy.NewExclusionPolicy(0),
		auditor,
		nil,
		screener.Options{Symbols: []string{"AAPL", "MSFT"}, Period: 20, Now: func() time.Time { return now }},
		log,
	)
	sender := &captureSender{}
	s := NewScheduler(context.Background(), sc, audit.NewPriceValidator(store, 0, nil, log), auditor, sender, log)
	return s, store, fetcher, sender
}

func TestRegisterAll(t *testing.T) {
	s, _, _, _ := setup(t)
	require.NoError(t, s.RegisterAll("0 30 21 * * 1-5", "0 0 22 * * 1-5"))
	assert.Len(t, s.Cron.Entries(), 2)

	s2, _, _, _ := setup(t)
	assert.ErrorContains(t, s2.RegisterAll("nonsense", "0 0 22 * * *"), "register screen task")
	s3, _, _, _ := setup(t)
	assert.ErrorContains(t, s3.RegisterAll("0 0 22 * * *", "* *"), "register audit task")
}

func TestStartStop(t *testing.T) {
	s, _, _, _ := setup(t)
	require.NoError(t, s.RegisterAll("0 0 0 1 1 *", "0 0 0 1 1 *"))
	s.Start()
	s.Stop()
}

func TestRunScreenNow_SendsReport(t *testing.T) {
	s, store, _, sender := setup(t)
	s.RunScreenNow()

	msg := sender.last()
	assert.Contains(t, msg, "AAPL")
	assert.Contains(t, msg, "MSFT")
	assert.NotContains(t, msg, "budget")

	_, err := store.GetScore(context.Background(), "MSFT")
	assert.NoError(t, err)
}

func TestRunScreenNow_ProviderErrorsStillReport(t *testing.T) {
	s, _, fetcher, sender := setup(t)
	fetcher.Errors["MSFT"] = errors.New("timeout")
	s.RunScreenNow()
	assert.Contains(t, sender.last(), "AAPL")
}

func TestRunAuditNow(t *testing.T) {
	s, store, _, sender := setup(t)
	ctx := context.Background()
	s.RunScreenNow()
	before := len(sender.msgs)

	// Nothing drifted: no message.
	s.RunAuditNow()
	assert.Len(t, sender.msgs, before)

	// A bad trade price is corrected and reported.
	require.NoError(t, store.UpsertTrade(ctx, model.Trade{Symbol: "AAPL", Price: 140}))
	s.RunAuditNow()
	assert.Contains(t, sender.last(), "Trade prices corrected: 1")

	trade, err := store.GetTrade(ctx, "AAPL")
	require.NoError(t, err)
	latest, err := store.LatestClose(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, latest, trade.Price)
}

func TestHandleCommand(t *testing.T) {
	s, _, _, _ := setup(t)
	ctx := context.Background()

	reply := s.HandleCommand(ctx, "/screen 150")
	assert.Contains(t, reply, "AAPL")
	assert.NotContains(t, reply, "MSFT")
	assert.Contains(t, reply, "budget $150.00")

	assert.Contains(t, s.HandleCommand(ctx, "/screen 1"), "No stocks found within your budget.")
	assert.Equal(t, "Please enter a valid budget.", s.HandleCommand(ctx, "/screen 0"))
	assert.Contains(t, s.HandleCommand(ctx, "/screen lots"), "usage")
	assert.Contains(t, s.HandleCommand(ctx, "/audit"), "nothing to correct")
	assert.Contains(t, s.HandleCommand(ctx, "hello"), "/screen")
	assert.Contains(t, s.HandleCommand(ctx, "   "), "/screen")
}

func TestHandleCommand_PartialFailure(t *testing.T) {
	s, _, fetcher, _ := setup(t)
	fetcher.Errors["MSFT"] = errors.New("timeout")
	reply := s.HandleCommand(context.Background(), "/screen 1000")
	assert.Contains(t, reply, "AAPL")
	assert.Contains(t, reply, "1 symbol(s) could not be fetched")
}

func TestTrySend_NilNotifierLogsOnly(t *testing.T) {
	s, _, _, _ := setup(t)
	s.Notifier = nil
	assert.NotPanics(t, s.RunScreenNow)
}

func TestRunAuditNow_WaitsForScreeningPass(t *testing.T) {
	s, _, _, _ := setup(t)
	done := make(chan struct{})

	err := s.Screener.Locked(func() error {
		go func() {
			s.RunAuditNow()
			close(done)
		}()
		select {
		case <-done:
			return errors.New("audit ran during a pass")
		case <-time.After(50 * time.Millisecond):
			return nil
		}
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("audit did not run after the pass finished")
	}
}
