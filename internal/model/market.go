package model

import "time"

// OHLCV represents a single daily bar for a symbol.
type OHLCV struct {
	Symbol string
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Trade is the most recent trade seen for a symbol.
type Trade struct {
	Symbol string
	Price  float64
	Size   float64
}

// Closes extracts closing prices, preserving bar order.
func Closes(bars []OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
