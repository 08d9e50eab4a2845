package strategy

import (
	"errors"
	"math"
)

// ErrZeroWidthBand is returned when the Bollinger Bands collapse onto the
// moving average, which happens for a constant price series.
var ErrZeroWidthBand = errors.New("zero-width bollinger band")

// MAScore rewards prices close to their moving average. Not clamped: a price
// more than 100% away from the average scores below zero.
func MAScore(price, movingAverage float64) float64 {
	return 1.0 - math.Abs(price-movingAverage)/movingAverage
}

// RSIScore peaks at RSI=30 (oversold) and crosses zero at RSI=70.
func RSIScore(rsi float64) float64 {
	return 1.0 - math.Abs(rsi-30)/(70-30)
}

// BBScore is 1.0 at the lower band and 0.0 at the upper band.
func BBScore(price, lowerBand, upperBand float64) (float64, error) {
	width := upperBand - lowerBand
	if width == 0 {
		return 0, ErrZeroWidthBand
	}
	return 1.0 - (price-lowerBand)/width, nil
}
