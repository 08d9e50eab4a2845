package calculator

import (
	"errors"

	"gonum.org/v1/gonum/stat"

	"StockHound/internal/model"
)

// DefaultBandWidth is the standard deviation multiplier used for Bollinger Bands.
const DefaultBandWidth = 2.0

// CalculateBollingerBands returns the upper and lower bands around the SMA of
// the last period prices. The deviation is the population standard deviation
// (divided by N, not N-1).
func CalculateBollingerBands(prices []float64, period int, k float64) (upper, lower float64, err error) {
	if period <= 0 {
		return 0, 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, 0, insufficient("Bollinger Bands", len(prices), period)
	}
	mean, stdDev := stat.PopMeanStdDev(window(prices, period), nil)
	return mean + k*stdDev, mean - k*stdDev, nil
}

// Calculate computes every indicator the scorer needs over the same period.
func Calculate(prices []float64, period int) (model.IndicatorSet, error) {
	var ind model.IndicatorSet

	ma, err := CalculateSMA(prices, period)
	if err != nil {
		return ind, err
	}
	rsi, err := CalculateRSI(prices, period)
	if err != nil {
		return ind, err
	}
	upper, lower, err := CalculateBollingerBands(prices, period, DefaultBandWidth)
	if err != nil {
		return ind, err
	}

	ind.MovingAverage = ma
	ind.RSI = rsi
	ind.UpperBand = upper
	ind.LowerBand = lower
	return ind, nil
}
