package strategy

import (
	"errors"

	"StockHound/internal/calculator"
	"StockHound/internal/model"
)

// Factor weights. They sum to exactly 1.0.
const (
	WeightMA  = 0.4
	WeightRSI = 0.3
	WeightBB  = 0.3
)

// ShortfallTolerance is how many points a history may fall short of the
// requested period and still be scored.
const ShortfallTolerance = 10

// Reason explains why a symbol could not be scored.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonInsufficientHistory Reason = "insufficient_history"
	ReasonInsufficientData    Reason = "insufficient_data"
	ReasonZeroWidthBand       Reason = "zero_width_band"
)

// Outcome is the tagged result of CalculateTotalScores: either Scored with a
// ScoreSet, or not scored with a Reason.
type Outcome struct {
	Symbol string
	Period int
	Scored bool
	Scores model.ScoreSet
	Reason Reason
}

// Total combines the three component scores with the fixed weights.
func Total(ma, rsi, bb float64) float64 {
	return WeightMA*ma + WeightRSI*rsi + WeightBB*bb
}

// Evaluate turns an indicator set and the current price into a ScoreSet.
func Evaluate(price float64, ind model.IndicatorSet) (model.ScoreSet, error) {
	bb, err := BBScore(price, ind.LowerBand, ind.UpperBand)
	if err != nil {
		return model.ScoreSet{}, err
	}
	ma := MAScore(price, ind.MovingAverage)
	rsi := RSIScore(ind.RSI)
	return model.ScoreSet{
		MAScore:    ma,
		RSIScore:   rsi,
		BBScore:    bb,
		TotalScore: Total(ma, rsi, bb),
	}, nil
}

// CalculateTotalScores scores a symbol from its close history (oldest first).
// It never returns an error: a history too short for the period, or one the
// indicators cannot be computed on, yields an Outcome with Scored=false.
//
// When the history is short by at most ShortfallTolerance points the period
// shrinks to fit, keeping one extra close for the RSI deltas.
func CalculateTotalScores(symbol string, price float64, history []float64, period int) Outcome {
	out := Outcome{Symbol: symbol, Period: period}
	if len(history) < period-ShortfallTolerance {
		out.Reason = ReasonInsufficientHistory
		return out
	}

	effective := period
	if effective > len(history)-1 {
		effective = len(history) - 1
	}
	if effective < 2 {
		out.Reason = ReasonInsufficientHistory
		return out
	}
	out.Period = effective

	ind, err := calculator.Calculate(history, effective)
	if err != nil {
		out.Reason = ReasonInsufficientData
		return out
	}
	scores, err := Evaluate(price, ind)
	if err != nil {
		if errors.Is(err, ErrZeroWidthBand) {
			out.Reason = ReasonZeroWidthBand
		} else {
			out.Reason = ReasonInsufficientData
		}
		return out
	}

	out.Scored = true
	out.Scores = scores
	return out
}
