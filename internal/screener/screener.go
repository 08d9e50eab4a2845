package screener

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"StockHound/internal/audit"
	"StockHound/internal/collector"
	"StockHound/internal/metrics"
	"StockHound/internal/model"
	"StockHound/internal/policy"
	"StockHound/internal/recorder"
	"StockHound/internal/strategy"
)

// DefaultPeriod is the indicator lookback used when none is configured.
const DefaultPeriod = 14

// ErrInvalidBudget is returned for a budget that is not positive, or NaN.
var ErrInvalidBudget = errors.New("budget must be positive")

// PassError collects the per-symbol provider failures of one pass. The pass
// itself still completes.
type PassError struct {
	Errors []error
}

func (e *PassError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d symbol(s) failed: %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *PassError) Unwrap() []error { return e.Errors }

// Options configures a Screener.
type Options struct {
	Symbols []string
	// Period is the indicator lookback in bars.
	Period int
	// Workers bounds how many symbols are processed at once. 1 is sequential.
	Workers int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Screener runs screening passes over the configured symbols.
type Screener struct {
	Store     recorder.Store
	Collector *collector.Collector
	Gate      policy.FreshnessGate
	Policy    policy.ExclusionPolicy
	Auditor   *audit.Auditor
	Metrics   *metrics.Metrics

	symbols []string
	period  int
	workers int
	now     func() time.Time
	log     zerolog.Logger

	// pass serialises passes and maintenance so the store has one writer.
	pass sync.Mutex
}

// NewScreener creates a new Screener. m may be nil.
func NewScreener(
	store recorder.Store,
	col *collector.Collector,
	gate policy.FreshnessGate,
	pol policy.ExclusionPolicy,
	auditor *audit.Auditor,
	m *metrics.Metrics,
	opts Options,
	log zerolog.Logger,
) *Screener {
	if opts.Period <= 0 {
		opts.Period = DefaultPeriod
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Screener{
		Store:     store,
		Collector: col,
		Gate:      gate,
		Policy:    pol,
		Auditor:   auditor,
		Metrics:   m,
		symbols:   opts.Symbols,
		period:    opts.Period,
		workers:   opts.Workers,
		now:       opts.Now,
		log:       log.With().Str("component", "screener").Logger(),
	}
}

// Symbols returns the configured symbol universe.
func (s *Screener) Symbols() []string { return s.symbols }

// Screen runs one pass and returns the included symbols priced within budget,
// best total score first.
//
// Provider failures skip the symbol and are returned as a *PassError next to
// the results. A store failure aborts the pass.
func (s *Screener) Screen(ctx context.Context, budget float64) ([]model.Result, error) {
	if !(budget > 0) {
		return nil, ErrInvalidBudget
	}
	return s.run(ctx, budget)
}

// Refresh runs a pass with no budget cap. The scheduler uses it to keep the
// cache warm.
func (s *Screener) Refresh(ctx context.Context) ([]model.Result, error) {
	return s.run(ctx, math.Inf(1))
}

// Locked runs fn while no pass is in progress. Passes started meanwhile wait
// for fn to return.
func (s *Screener) Locked(fn func() error) error {
	s.pass.Lock()
	defer s.pass.Unlock()
	return fn()
}

func (s *Screener) run(ctx context.Context, budget float64) ([]model.Result, error) {
	s.pass.Lock()
	defer s.pass.Unlock()

	var (
		mu       sync.Mutex
		results  []model.Result
		failures []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, symbol := range s.symbols {
		symbol := symbol
		g.Go(func() error {
			res, err := s.screenSymbol(gctx, symbol)
			var perr *collector.ProviderError
			switch {
			case errors.As(err, &perr):
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
				return nil
			case err != nil:
				return err
			}
			if res != nil && res.Price <= budget {
				mu.Lock()
				results = append(results, *res)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].TotalScore != results[j].TotalScore {
			return results[i].TotalScore > results[j].TotalScore
		}
		return results[i].Symbol < results[j].Symbol
	})
	s.Metrics.PassResults(len(results))
	s.log.Info().
		Float64("budget", budget).
		Int("symbols", len(s.symbols)).
		Int("results", len(results)).
		Int("failures", len(failures)).
		Msg("screening pass finished")

	if len(failures) > 0 {
		return results, &PassError{Errors: failures}
	}
	return results, nil
}

// screenSymbol returns nil when the symbol yields no row. Errors are either a
// *collector.ProviderError or a *recorder.StoreError.
func (s *Screener) screenSymbol(ctx context.Context, symbol string) (*model.Result, error) {
	defer s.Metrics.ObserveSymbol(time.Now())
	now := s.now()

	stock, err := s.Store.GetStock(ctx, symbol)
	if errors.Is(err, recorder.ErrNotFound) {
		stock = nil
	} else if err != nil {
		return nil, recorder.Wrap(symbol, "get stock", err)
	}

	if stock != nil && stock.Excluded {
		s.Metrics.Screened("excluded")
		return nil, nil
	}

	if s.Gate.Check(stock, now) == policy.StateFresh {
		res, ok, err := s.fromCache(ctx, stock)
		if err != nil {
			return nil, err
		}
		if ok {
			s.Metrics.Screened(policy.StateFresh.String())
			return res, nil
		}
		s.log.Debug().Str("symbol", symbol).Msg("cache incomplete, refetching")
	}

	s.Metrics.Screened(policy.StateStale.String())
	return s.refresh(ctx, symbol, now)
}

// fromCache builds a row from stored data. ok is false when the trade or score
// is missing and the symbol must be treated as stale.
func (s *Screener) fromCache(ctx context.Context, stock *model.Stock) (*model.Result, bool, error) {
	symbol := stock.Symbol

	trade, err := s.Store.GetTrade(ctx, symbol)
	if errors.Is(err, recorder.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, recorder.Wrap(symbol, "get trade", err)
	}
	score, err := s.Store.GetScore(ctx, symbol)
	if errors.Is(err, recorder.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, recorder.Wrap(symbol, "get score", err)
	}

	res, err := s.judge(ctx, symbol, stock.Name, trade.Price, score.ScoreSet)
	return res, true, err
}

// refresh fetches, stores and scores a stale symbol.
func (s *Screener) refresh(ctx context.Context, symbol string, now time.Time) (*model.Result, error) {
	snap, err := s.Collector.Collect(ctx, symbol, now)
	if err != nil {
		var perr *collector.ProviderError
		if errors.As(err, &perr) {
			s.Metrics.ProviderError(perr.Op)
		}
		s.log.Warn().Str("symbol", symbol).Err(err).Msg("fetch failed, cache left untouched")
		return nil, err
	}

	if err := s.Store.UpsertStock(ctx, model.Stock{Symbol: symbol, Name: snap.Name, LastUpdated: now}); err != nil {
		return nil, recorder.Wrap(symbol, "upsert stock", err)
	}
	if err := s.Store.UpsertTrade(ctx, snap.Trade); err != nil {
		return nil, recorder.Wrap(symbol, "upsert trade", err)
	}
	for _, bar := range snap.Bars {
		if err := s.Store.AppendOrReplaceBar(ctx, bar); err != nil {
			return nil, recorder.Wrap(symbol, "store bar", err)
		}
	}

	if len(snap.Bars) == 0 {
		return nil, s.exclude(ctx, symbol, s.Policy.NoHistory())
	}

	out := strategy.CalculateTotalScores(symbol, snap.Trade.Price, model.Closes(snap.Bars), s.period)
	if !out.Scored {
		s.log.Warn().Str("symbol", symbol).Str("reason", string(out.Reason)).Int("bars", len(snap.Bars)).Msg("could not score")
		return nil, s.exclude(ctx, symbol, s.Policy.Evaluate(out, false))
	}
	if err := s.Store.UpsertScore(ctx, model.Score{Symbol: symbol, ScoreSet: out.Scores}); err != nil {
		return nil, recorder.Wrap(symbol, "upsert score", err)
	}

	return s.judge(ctx, symbol, snap.Name, snap.Trade.Price, out.Scores)
}

// judge applies the threshold check and, for suspicious scores, the audit.
func (s *Screener) judge(ctx context.Context, symbol, name string, price float64, scores model.ScoreSet) (*model.Result, error) {
	decision := s.Policy.CheckThreshold(scores)
	if decision.Excluded {
		if err := s.exclude(ctx, symbol, decision); err != nil {
			return nil, err
		}
	}

	if s.Auditor != nil && scores.TotalScore >= s.Auditor.Threshold() {
		if _, err := s.Auditor.Revalidate(ctx, symbol); err != nil {
			return nil, err
		}
		stored, err := s.Store.GetScore(ctx, symbol)
		if err != nil {
			return nil, recorder.Wrap(symbol, "get score", err)
		}
		scores = stored.ScoreSet
	}

	if decision.Excluded {
		return nil, nil
	}
	return &model.Result{Name: name, Symbol: symbol, Price: price, ScoreSet: scores}, nil
}

func (s *Screener) exclude(ctx context.Context, symbol string, d policy.Decision) error {
	if err := s.Store.SetExcluded(ctx, symbol, true); err != nil {
		return recorder.Wrap(symbol, "set excluded", err)
	}
	s.Metrics.Excluded(string(d.Reason))
	s.log.Info().Str("symbol", symbol).Str("reason", string(d.Reason)).Msg("excluded")
	return nil
}
