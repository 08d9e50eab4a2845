package collector

import (
	"context"
	"fmt"
	"time"

	"StockHound/internal/model"
)

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	Name() string
	LatestTrade(ctx context.Context, symbol string) (model.Trade, error)
	// HistoricalBars returns daily bars between start and end, oldest first,
	// trimmed to the most recent periodDays bars when periodDays > 0.
	HistoricalBars(ctx context.Context, symbol string, start, end time.Time, periodDays int) ([]model.OHLCV, error)
}

// Namer is implemented by fetchers that can resolve a ticker to a company name.
type Namer interface {
	CompanyName(ctx context.Context, symbol string) (string, error)
}

// ProviderError is a failed call to a market data provider.
type ProviderError struct {
	Provider string
	Symbol   string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Provider, e.Op, e.Symbol, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func trimBars(bars []model.OHLCV, periodDays int) []model.OHLCV {
	if periodDays > 0 && len(bars) > periodDays {
		return bars[len(bars)-periodDays:]
	}
	return bars
}
