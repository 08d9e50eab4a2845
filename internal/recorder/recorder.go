package recorder

import (
	"context"
	"errors"
	"fmt"

	"StockHound/internal/model"
)

// ErrNotFound is returned by lookups for a symbol the store has never seen.
var ErrNotFound = errors.New("not found")

// Store persists the screening cache. All writes are idempotent upserts keyed
// by symbol (and timestamp for bars).
type Store interface {
	GetStock(ctx context.Context, symbol string) (*model.Stock, error)
	UpsertStock(ctx context.Context, stock model.Stock) error
	// SetExcluded sets or clears the exclusion latch. UpsertStock never
	// touches it.
	SetExcluded(ctx context.Context, symbol string, excluded bool) error

	GetTrade(ctx context.Context, symbol string) (*model.Trade, error)
	UpsertTrade(ctx context.Context, trade model.Trade) error
	ListTrades(ctx context.Context) ([]model.Trade, error)

	AppendOrReplaceBar(ctx context.Context, bar model.OHLCV) error
	// RecentCloses returns up to limit closes, oldest first.
	RecentCloses(ctx context.Context, symbol string, limit int) ([]float64, error)
	LatestClose(ctx context.Context, symbol string) (float64, error)

	GetScore(ctx context.Context, symbol string) (*model.Score, error)
	UpsertScore(ctx context.Context, score model.Score) error
	// QueryScoresAbove returns every score with TotalScore >= threshold.
	QueryScoresAbove(ctx context.Context, threshold float64) ([]model.Score, error)

	Close() error
}

// StoreError carries the symbol and operation of a failed store call.
type StoreError struct {
	Symbol string
	Op     string
	Err    error
}

func (e *StoreError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Symbol, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Wrap returns err as a *StoreError, or nil when err is nil.
func Wrap(symbol, op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Symbol: symbol, Op: op, Err: err}
}
