package collector

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"StockHound/internal/model"
)

// Snapshot is everything fetched for one symbol in one refresh.
type Snapshot struct {
	Name  string
	Trade model.Trade
	Bars  []model.OHLCV
}

// Collector fetches the trade, bars and name of a symbol from one provider.
type Collector struct {
	Fetcher Fetcher
	// LookbackDays is the calendar span requested from the provider.
	LookbackDays int
	// PeriodDays caps the number of bars kept.
	PeriodDays int

	log zerolog.Logger
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, lookbackDays, periodDays int, log zerolog.Logger) *Collector {
	return &Collector{
		Fetcher:      fetcher,
		LookbackDays: lookbackDays,
		PeriodDays:   periodDays,
		log:          log.With().Str("component", "collector").Str("provider", fetcher.Name()).Logger(),
	}
}

// Collect fetches market data for symbol as of now. Any provider failure is
// returned as a *ProviderError; a failed name lookup only falls back to the
// ticker.
func (c *Collector) Collect(ctx context.Context, symbol string, now time.Time) (*Snapshot, error) {
	trade, err := c.Fetcher.LatestTrade(ctx, symbol)
	if err != nil {
		return nil, c.fail(symbol, "latest trade", err)
	}
	trade.Symbol = symbol

	start := now.AddDate(0, 0, -c.LookbackDays)
	bars, err := c.Fetcher.HistoricalBars(ctx, symbol, start, now, c.PeriodDays)
	if err != nil {
		return nil, c.fail(symbol, "historical bars", err)
	}
	for i := range bars {
		bars[i].Symbol = symbol
	}

	snap := &Snapshot{Name: symbol, Trade: trade, Bars: bars}
	if namer, ok := c.Fetcher.(Namer); ok {
		if name, err := namer.CompanyName(ctx, symbol); err != nil {
			c.log.Warn().Str("symbol", symbol).Err(err).Msg("company name lookup failed, using ticker")
		} else if name != "" {
			snap.Name = name
		}
	}

	c.log.Debug().Str("symbol", symbol).Float64("price", trade.Price).Int("bars", len(bars)).Msg("collected")
	return snap, nil
}

func (c *Collector) fail(symbol, op string, err error) error {
	return &ProviderError{Provider: c.Fetcher.Name(), Symbol: symbol, Op: op, Err: err}
}
