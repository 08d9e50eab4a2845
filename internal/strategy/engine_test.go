package strategy

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockHound/internal/model"
)

func TestWeightsSumToOne(t *testing.T) {
	assert.Equal(t, 1.0, WeightMA+WeightRSI+WeightBB)
}

func TestMAScore(t *testing.T) {
	assert.Equal(t, 1.0, MAScore(50, 50))
	assert.InDelta(t, 0.9, MAScore(55, 50), 1e-12)
	assert.InDelta(t, 0.9, MAScore(45, 50), 1e-12)
	// Not clamped.
	assert.InDelta(t, -0.5, MAScore(125, 50), 1e-12)
}

func TestRSIScore(t *testing.T) {
	tests := []struct {
		rsi  float64
		want float64
	}{
		{30, 1.0},
		{70, 0.0},
		{50, 0.5},
		{10, 0.5},
		{100, -0.75},
		{0, 0.25},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, RSIScore(tt.rsi), 1e-12, "rsi %.0f", tt.rsi)
	}
}

func TestBBScore(t *testing.T) {
	s, err := BBScore(90, 90, 110)
	require.NoError(t, err)
	assert.Equal(t, 1.0, s)

	s, err = BBScore(110, 90, 110)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)

	s, err = BBScore(100, 90, 110)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, s, 1e-12)

	_, err = BBScore(50, 50, 50)
	assert.ErrorIs(t, err, ErrZeroWidthBand)
}

func TestEvaluate_TotalIsWeightedSum(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		ma := 10 + r.Float64()*200
		width := 0.5 + r.Float64()*20
		ind := model.IndicatorSet{
			MovingAverage: ma,
			RSI:           r.Float64() * 100,
			UpperBand:     ma + width,
			LowerBand:     ma - width,
		}
		price := ma * (0.5 + r.Float64())
		s, err := Evaluate(price, ind)
		require.NoError(t, err)
		want := 0.4*s.MAScore + 0.3*s.RSIScore + 0.3*s.BBScore
		assert.InDelta(t, want, s.TotalScore, 1e-9)
	}
}

func TestCalculateTotalScores_FlatSeries(t *testing.T) {
	history := make([]float64, 25)
	for i := range history {
		history[i] = 50.0
	}

	var out Outcome
	require.NotPanics(t, func() {
		out = CalculateTotalScores("XYZ", 50.0, history, 20)
	})
	assert.False(t, out.Scored)
	assert.Equal(t, ReasonZeroWidthBand, out.Reason)
	assert.Equal(t, "XYZ", out.Symbol)
}

func TestCalculateTotalScores_ShortHistory(t *testing.T) {
	history := trending(9, 100)

	out := CalculateTotalScores("ABC", 100, history, 20)
	assert.False(t, out.Scored)
	assert.Equal(t, ReasonInsufficientHistory, out.Reason)
	assert.Equal(t, 20, out.Period)
}

func TestCalculateTotalScores_ToleratedShortfall(t *testing.T) {
	// 12 points for period 20 is within tolerance; the period shrinks to 11.
	history := zigzag(12, 100)

	out := CalculateTotalScores("ABC", 100, history, 20)
	require.True(t, out.Scored, "reason %q", out.Reason)
	assert.Equal(t, 11, out.Period)
}

func TestCalculateTotalScores_UsesFullPeriodWhenAvailable(t *testing.T) {
	history := zigzag(40, 100)

	out := CalculateTotalScores("ABC", history[len(history)-1], history, 20)
	require.True(t, out.Scored)
	assert.Equal(t, 20, out.Period)
	s := out.Scores
	assert.InDelta(t, 0.4*s.MAScore+0.3*s.RSIScore+0.3*s.BBScore, s.TotalScore, 1e-9)
}

func TestCalculateTotalScores_Idempotent(t *testing.T) {
	history := zigzag(30, 80)
	a := CalculateTotalScores("ABC", 81, history, 20)
	b := CalculateTotalScores("ABC", 81, history, 20)
	assert.Equal(t, a, b)
}

func TestCalculateTotalScores_TinyHistory(t *testing.T) {
	out := CalculateTotalScores("ABC", 10, []float64{10, 11}, 5)
	assert.False(t, out.Scored)
	assert.Equal(t, ReasonInsufficientHistory, out.Reason)
}

func trending(n int, start float64) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = start + float64(i)
	}
	return prices
}

func zigzag(n int, base float64) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = base + 3*math.Sin(float64(i)/2)
	}
	return prices
}
