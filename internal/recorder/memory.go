package recorder

import (
	"context"
	"sort"
	"sync"
	"time"

	"StockHound/internal/model"
)

// MemoryRecorder is an in-process Store used for dry runs and tests.
type MemoryRecorder struct {
	mu     sync.RWMutex
	nextID int64
	stocks map[string]model.Stock
	trades map[string]model.Trade
	bars   map[string]map[int64]model.OHLCV
	scores map[string]model.Score
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{
		stocks: make(map[string]model.Stock),
		trades: make(map[string]model.Trade),
		bars:   make(map[string]map[int64]model.OHLCV),
		scores: make(map[string]model.Score),
	}
}

func (m *MemoryRecorder) GetStock(_ context.Context, symbol string) (*model.Stock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stocks[symbol]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryRecorder) UpsertStock(_ context.Context, stock model.Stock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.stocks[stock.Symbol]
	if !ok {
		m.nextID++
		prev = model.Stock{ID: m.nextID, Symbol: stock.Symbol}
	}
	prev.Name = stock.Name
	prev.LastUpdated = stock.LastUpdated
	m.stocks[stock.Symbol] = prev
	return nil
}

func (m *MemoryRecorder) SetExcluded(_ context.Context, symbol string, excluded bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stocks[symbol]
	if !ok {
		m.nextID++
		s = model.Stock{ID: m.nextID, Symbol: symbol}
	}
	s.Excluded = excluded
	m.stocks[symbol] = s
	return nil
}

func (m *MemoryRecorder) GetTrade(_ context.Context, symbol string) (*model.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trades[symbol]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *MemoryRecorder) UpsertTrade(_ context.Context, trade model.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades[trade.Symbol] = trade
	return nil
}

func (m *MemoryRecorder) ListTrades(_ context.Context) ([]model.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	trades := make([]model.Trade, 0, len(m.trades))
	for _, t := range m.trades {
		trades = append(trades, t)
	}
	sort.Slice(trades, func(i, j int) bool { return trades[i].Symbol < trades[j].Symbol })
	return trades, nil
}

func (m *MemoryRecorder) AppendOrReplaceBar(_ context.Context, bar model.OHLCV) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bySymbol, ok := m.bars[bar.Symbol]
	if !ok {
		bySymbol = make(map[int64]model.OHLCV)
		m.bars[bar.Symbol] = bySymbol
	}
	bySymbol[bar.Time.Unix()] = bar
	return nil
}

func (m *MemoryRecorder) sortedBars(symbol string) []model.OHLCV {
	bars := make([]model.OHLCV, 0, len(m.bars[symbol]))
	for _, b := range m.bars[symbol] {
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars
}

func (m *MemoryRecorder) RecentCloses(_ context.Context, symbol string, limit int) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bars := m.sortedBars(symbol)
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return model.Closes(bars), nil
}

func (m *MemoryRecorder) LatestClose(_ context.Context, symbol string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bars := m.sortedBars(symbol)
	if len(bars) == 0 {
		return 0, ErrNotFound
	}
	return bars[len(bars)-1].Close, nil
}

func (m *MemoryRecorder) GetScore(_ context.Context, symbol string) (*model.Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scores[symbol]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryRecorder) UpsertScore(_ context.Context, score model.Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[score.Symbol] = score
	return nil
}

func (m *MemoryRecorder) QueryScoresAbove(_ context.Context, threshold float64) ([]model.Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var scores []model.Score
	for _, s := range m.scores {
		if s.TotalScore >= threshold {
			scores = append(scores, s)
		}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].Symbol < scores[j].Symbol })
	return scores, nil
}

// Touch rewrites a stock's LastUpdated. Tests use it to age cache entries.
func (m *MemoryRecorder) Touch(symbol string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stocks[symbol]; ok {
		s.LastUpdated = at
		m.stocks[symbol] = s
	}
}

func (m *MemoryRecorder) Close() error { return nil }
