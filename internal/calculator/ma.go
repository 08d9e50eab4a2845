package calculator

import (
	"errors"

	"gonum.org/v1/gonum/stat"
)

// CalculateSMA computes the simple moving average of the last period prices.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, insufficient("SMA", len(prices), period)
	}
	return stat.Mean(window(prices, period), nil), nil
}

// window returns the trailing period elements of prices.
func window(prices []float64, period int) []float64 {
	return prices[len(prices)-period:]
}
