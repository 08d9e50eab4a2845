package audit

import (
	"context"
	"errors"
	"math"

	"github.com/rs/zerolog"

	"StockHound/internal/metrics"
	"StockHound/internal/model"
	"StockHound/internal/recorder"
)

// PriceTolerance is the relative gap between a trade price and the latest
// close above which the trade is considered wrong.
const PriceTolerance = 0.005

// PriceValidator replaces stored trade prices that disagree with the latest
// stored close.
type PriceValidator struct {
	store     recorder.Store
	tolerance float64
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewPriceValidator creates a validator. A non-positive tolerance uses
// PriceTolerance.
func NewPriceValidator(store recorder.Store, tolerance float64, m *metrics.Metrics, log zerolog.Logger) *PriceValidator {
	if tolerance <= 0 {
		tolerance = PriceTolerance
	}
	return &PriceValidator{
		store:     store,
		tolerance: tolerance,
		metrics:   m,
		log:       log.With().Str("component", "price_validator").Logger(),
	}
}

// ValidateAndCorrect checks every stored trade and returns how many were
// corrected.
func (v *PriceValidator) ValidateAndCorrect(ctx context.Context) (int, error) {
	trades, err := v.store.ListTrades(ctx)
	if err != nil {
		return 0, recorder.Wrap("", "list trades", err)
	}

	corrected := 0
	for _, t := range trades {
		latest, err := v.store.LatestClose(ctx, t.Symbol)
		if errors.Is(err, recorder.ErrNotFound) {
			continue
		}
		if err != nil {
			return corrected, recorder.Wrap(t.Symbol, "latest close", err)
		}
		if latest <= 0 || math.Abs(t.Price-latest)/latest <= v.tolerance {
			continue
		}
		if err := v.store.UpsertTrade(ctx, model.Trade{Symbol: t.Symbol, Price: latest, Size: t.Size}); err != nil {
			return corrected, recorder.Wrap(t.Symbol, "update trade", err)
		}
		v.log.Info().Str("symbol", t.Symbol).Float64("from", t.Price).Float64("to", latest).Msg("updated trade price")
		corrected++
	}
	v.metrics.TradesFixed(corrected)
	return corrected, nil
}
