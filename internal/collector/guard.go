package collector

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"StockHound/internal/model"
)

// GuardConfig bounds the request rate to a provider and trips a circuit
// breaker after repeated failures. Neither retries: a refused or failed call
// is returned to the caller.
type GuardConfig struct {
	RatePerMinute       float64
	Burst               int
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// Guarded wraps a Fetcher with a rate limiter and a circuit breaker.
type Guarded struct {
	next    Fetcher
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewGuarded wraps next. A zero RatePerMinute disables rate limiting.
func NewGuarded(next Fetcher, cfg GuardConfig, log zerolog.Logger) *Guarded {
	limit := rate.Inf
	if cfg.RatePerMinute > 0 {
		limit = rate.Limit(cfg.RatePerMinute / 60)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	log = log.With().Str("component", "provider_guard").Str("provider", next.Name()).Logger()
	settings := gobreaker.Settings{
		Name:    next.Name(),
		Timeout: timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}

	return &Guarded{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (g *Guarded) Name() string { return g.next.Name() }

// State reports the breaker state, e.g. for health endpoints.
func (g *Guarded) State() string { return g.breaker.State().String() }

func (g *Guarded) LatestTrade(ctx context.Context, symbol string) (model.Trade, error) {
	res, err := g.do(ctx, func() (interface{}, error) {
		return g.next.LatestTrade(ctx, symbol)
	})
	if err != nil {
		return model.Trade{}, err
	}
	return res.(model.Trade), nil
}

func (g *Guarded) HistoricalBars(ctx context.Context, symbol string, start, end time.Time, periodDays int) ([]model.OHLCV, error) {
	res, err := g.do(ctx, func() (interface{}, error) {
		return g.next.HistoricalBars(ctx, symbol, start, end, periodDays)
	})
	if err != nil {
		return nil, err
	}
	return res.([]model.OHLCV), nil
}

// CompanyName delegates when the wrapped fetcher can resolve names.
func (g *Guarded) CompanyName(ctx context.Context, symbol string) (string, error) {
	namer, ok := g.next.(Namer)
	if !ok {
		return "", nil
	}
	res, err := g.do(ctx, func() (interface{}, error) {
		return namer.CompanyName(ctx, symbol)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func (g *Guarded) do(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return g.breaker.Execute(fn)
}
