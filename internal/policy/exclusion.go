package policy

import (
	"StockHound/internal/model"
	"StockHound/internal/strategy"
)

// DefaultExclusionThreshold is the total score at and above which a score is
// considered a data or calculation anomaly.
const DefaultExclusionThreshold = 1.1

// Reason explains why a symbol was excluded.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonNoHistory        Reason = "no_history"
	ReasonInsufficientData Reason = "insufficient_data"
	ReasonImplausibleScore Reason = "implausible_score"
	ReasonLatched          Reason = "previously_excluded"
)

// Decision is the verdict of the exclusion policy for one symbol.
type Decision struct {
	Excluded bool
	Reason   Reason
}

// ExclusionPolicy is pure: it never touches the store. Persisting a decision
// is up to the caller.
type ExclusionPolicy struct {
	Threshold float64
}

// NewExclusionPolicy returns a policy with the given threshold, or the
// default when threshold is not positive.
func NewExclusionPolicy(threshold float64) ExclusionPolicy {
	if threshold <= 0 {
		threshold = DefaultExclusionThreshold
	}
	return ExclusionPolicy{Threshold: threshold}
}

// NoHistory is the decision for a symbol whose bar fetch came back empty.
func (p ExclusionPolicy) NoHistory() Decision {
	return Decision{Excluded: true, Reason: ReasonNoHistory}
}

// CheckThreshold flags implausibly high total scores.
func (p ExclusionPolicy) CheckThreshold(scores model.ScoreSet) Decision {
	if scores.TotalScore >= p.Threshold {
		return Decision{Excluded: true, Reason: ReasonImplausibleScore}
	}
	return Decision{}
}

// Evaluate classifies a scoring outcome. Exclusion is a one-way latch: a
// symbol that is already excluded stays excluded whatever the outcome.
func (p ExclusionPolicy) Evaluate(out strategy.Outcome, alreadyExcluded bool) Decision {
	if alreadyExcluded {
		return Decision{Excluded: true, Reason: ReasonLatched}
	}
	if !out.Scored {
		return Decision{Excluded: true, Reason: ReasonInsufficientData}
	}
	return p.CheckThreshold(out.Scores)
}
