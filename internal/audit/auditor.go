package audit

import (
	"context"
	"errors"
	"math"

	"github.com/rs/zerolog"

	"StockHound/internal/metrics"
	"StockHound/internal/model"
	"StockHound/internal/recorder"
	"StockHound/internal/strategy"
)

// Revalidation defaults.
const (
	// SuspicionThreshold is deliberately stricter than the exclusion
	// threshold: only scores at or above it are re-audited.
	SuspicionThreshold = 1.3
	DriftTolerance     = 0.05
	HistoryWindow      = 30
	MinHistory         = 10
)

// Config tunes the auditor. Zero fields fall back to the defaults.
type Config struct {
	SuspicionThreshold float64
	DriftTolerance     float64
	HistoryWindow      int
	MinHistory         int
}

func (c Config) withDefaults() Config {
	if c.SuspicionThreshold <= 0 {
		c.SuspicionThreshold = SuspicionThreshold
	}
	if c.DriftTolerance <= 0 {
		c.DriftTolerance = DriftTolerance
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = HistoryWindow
	}
	if c.MinHistory <= 0 {
		c.MinHistory = MinHistory
	}
	return c
}

// Report summarises one revalidation run.
type Report struct {
	Checked   int
	Corrected []string
	Skipped   []string
}

// Auditor re-checks suspiciously high stored scores against the stored
// history and overwrites them when they drifted.
type Auditor struct {
	store   recorder.Store
	cfg     Config
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewAuditor creates an auditor over store. m may be nil.
func NewAuditor(store recorder.Store, cfg Config, m *metrics.Metrics, log zerolog.Logger) *Auditor {
	return &Auditor{
		store:   store,
		cfg:     cfg.withDefaults(),
		metrics: m,
		log:     log.With().Str("component", "auditor").Logger(),
	}
}

// Threshold is the total score at and above which a score is audited.
func (a *Auditor) Threshold() float64 { return a.cfg.SuspicionThreshold }

// Revalidate audits every stored score at or above the suspicion threshold.
// When symbols are given only those are audited. Store failures abort the run
// and are returned as *recorder.StoreError.
func (a *Auditor) Revalidate(ctx context.Context, symbols ...string) (Report, error) {
	var report Report

	suspicious, err := a.store.QueryScoresAbove(ctx, a.cfg.SuspicionThreshold)
	if err != nil {
		return report, recorder.Wrap("", "query suspicious scores", err)
	}

	only := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		only[s] = true
	}

	for _, stored := range suspicious {
		if len(only) > 0 && !only[stored.Symbol] {
			continue
		}
		report.Checked++
		corrected, err := a.revalidate(ctx, stored)
		if err != nil {
			a.metrics.Audited(report.Checked, len(report.Corrected))
			return report, err
		}
		switch {
		case corrected == nil:
			report.Skipped = append(report.Skipped, stored.Symbol)
		case *corrected:
			report.Corrected = append(report.Corrected, stored.Symbol)
		}
	}

	a.metrics.Audited(report.Checked, len(report.Corrected))
	if report.Checked > 0 {
		a.log.Info().
			Int("checked", report.Checked).
			Int("corrected", len(report.Corrected)).
			Int("skipped", len(report.Skipped)).
			Msg("revalidation finished")
	}
	return report, nil
}

// revalidate returns nil when the symbol was skipped, otherwise whether the
// stored score was overwritten.
func (a *Auditor) revalidate(ctx context.Context, stored model.Score) (*bool, error) {
	log := a.log.With().Str("symbol", stored.Symbol).Logger()

	closes, err := a.store.RecentCloses(ctx, stored.Symbol, a.cfg.HistoryWindow)
	if err != nil {
		return nil, recorder.Wrap(stored.Symbol, "load history", err)
	}
	if len(closes) < a.cfg.MinHistory {
		log.Warn().Int("points", len(closes)).Msg("insufficient historical data, skipping revalidation")
		return nil, nil
	}

	trade, err := a.store.GetTrade(ctx, stored.Symbol)
	if errors.Is(err, recorder.ErrNotFound) {
		log.Warn().Msg("no stored trade price, skipping revalidation")
		return nil, nil
	}
	if err != nil {
		return nil, recorder.Wrap(stored.Symbol, "load trade", err)
	}

	out := strategy.CalculateTotalScores(stored.Symbol, trade.Price, closes, len(closes))
	if !out.Scored {
		log.Warn().Str("reason", string(out.Reason)).Msg("could not recompute score, skipping revalidation")
		return nil, nil
	}

	changed := Drifted(stored.TotalScore, out.Scores.TotalScore, a.cfg.DriftTolerance)
	if !changed {
		return &changed, nil
	}
	if err := a.store.UpsertScore(ctx, model.Score{Symbol: stored.Symbol, ScoreSet: out.Scores}); err != nil {
		return nil, recorder.Wrap(stored.Symbol, "update score", err)
	}
	log.Info().
		Float64("stored", stored.TotalScore).
		Float64("recomputed", out.Scores.TotalScore).
		Msg("revalidated and updated score")
	return &changed, nil
}

// Drifted reports whether a recomputed total moved more than tolerance away
// from the stored one.
func Drifted(stored, recomputed, tolerance float64) bool {
	return math.Abs(recomputed-stored) > tolerance
}
