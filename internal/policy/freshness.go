package policy

import (
	"time"

	"StockHound/internal/model"
)

// DefaultStalenessWindow is the maximum age of a cached stock before it is
// refetched from the provider.
const DefaultStalenessWindow = 24 * time.Hour

// State is the cache state of one symbol.
type State int

const (
	StateStale State = iota
	StateFresh
)

func (s State) String() string {
	if s == StateFresh {
		return "fresh"
	}
	return "stale"
}

// IsFresh reports whether a record last updated at lastUpdated may still be
// reused at now. A zero lastUpdated is never fresh.
func IsFresh(lastUpdated, now time.Time, window time.Duration) bool {
	if lastUpdated.IsZero() {
		return false
	}
	return now.Sub(lastUpdated) <= window
}

// FreshnessGate decides per symbol whether the cache can be reused.
type FreshnessGate struct {
	Window time.Duration
}

// NewFreshnessGate returns a gate with the given window, or the default when
// window is not positive.
func NewFreshnessGate(window time.Duration) FreshnessGate {
	if window <= 0 {
		window = DefaultStalenessWindow
	}
	return FreshnessGate{Window: window}
}

// Check classifies a cached stock record. A nil record is stale.
func (g FreshnessGate) Check(stock *model.Stock, now time.Time) State {
	if stock == nil || !IsFresh(stock.LastUpdated, now, g.Window) {
		return StateStale
	}
	return StateFresh
}
