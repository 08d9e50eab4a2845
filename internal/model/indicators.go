package model

// IndicatorSet holds the technical indicators derived from one price series.
type IndicatorSet struct {
	MovingAverage float64
	RSI           float64 // 0 ~ 100
	UpperBand     float64
	LowerBand     float64
}
