package collector

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"StockHound/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Symbols without explicit data get a generated oscillating series around
// Price.
type MockFetcher struct {
	Price  float64
	Names  map[string]string
	Trades map[string]model.Trade
	Bars   map[string][]model.OHLCV
	// Errors makes every call for the symbol fail.
	Errors map[string]error

	mu    sync.Mutex
	calls int
}

// CallCount reports how many fetch calls were made.
func (m *MockFetcher) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockFetcher) record() {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) LatestTrade(_ context.Context, symbol string) (model.Trade, error) {
	m.record()
	if err := m.Errors[symbol]; err != nil {
		return model.Trade{}, err
	}
	if t, ok := m.Trades[symbol]; ok {
		return t, nil
	}
	bars := generateMockBars(symbol, m.basePrice(symbol), 1, time.Now())
	return model.Trade{Symbol: symbol, Price: bars[0].Close, Size: 100}, nil
}

func (m *MockFetcher) HistoricalBars(_ context.Context, symbol string, _, end time.Time, periodDays int) ([]model.OHLCV, error) {
	m.record()
	if err := m.Errors[symbol]; err != nil {
		return nil, err
	}
	if bars, ok := m.Bars[symbol]; ok {
		return trimBars(bars, periodDays), nil
	}
	return generateMockBars(symbol, m.basePrice(symbol), periodDays, end), nil
}

func (m *MockFetcher) CompanyName(_ context.Context, symbol string) (string, error) {
	if name, ok := m.Names[symbol]; ok {
		return name, nil
	}
	return "", fmt.Errorf("mock: no name for %s", symbol)
}

func (m *MockFetcher) basePrice(symbol string) float64 {
	if m.Price > 0 {
		return m.Price
	}
	// Spread generated prices by ticker so screens are not all identical.
	var h float64
	for _, r := range symbol {
		h += float64(r)
	}
	return 20 + math.Mod(h*7, 400)
}

func generateMockBars(symbol string, basePrice float64, count int, end time.Time) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + 0.02*math.Sin(float64(i)/3))
		bars[i] = model.OHLCV{
			Symbol: symbol,
			Time:   end.AddDate(0, 0, -(count - i)).Truncate(24 * time.Hour),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
