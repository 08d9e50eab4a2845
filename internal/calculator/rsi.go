package calculator

import "errors"

// CalculateRSI computes the RSI over the last period close-to-close changes.
// Gains and losses are plain averages over the window, not Wilder-smoothed.
// Requires at least period+1 prices.
func CalculateRSI(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period+1 {
		return 0, insufficient("RSI", len(prices), period+1)
	}

	var gain, loss float64
	for i := len(prices) - period; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change // make positive
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	if avgLoss == 0 {
		return 100.0, nil
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs), nil
}
