package recorder

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockHound/internal/model"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sr, err := NewSQLiteRecorder(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { sr.Close() })
	return map[string]Store{
		"sqlite": sr,
		"memory": NewMemoryRecorder(),
	}
}

func TestStore_StockLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetStock(ctx, "AAPL")
			require.ErrorIs(t, err, ErrNotFound)

			at := time.Unix(1_700_000_000, 0)
			require.NoError(t, s.UpsertStock(ctx, model.Stock{Symbol: "AAPL", Name: "Apple Inc.", LastUpdated: at}))

			got, err := s.GetStock(ctx, "AAPL")
			require.NoError(t, err)
			assert.Equal(t, "Apple Inc.", got.Name)
			assert.True(t, got.LastUpdated.Equal(at))
			assert.False(t, got.Excluded)
			assert.NotZero(t, got.ID)

			require.NoError(t, s.SetExcluded(ctx, "AAPL", true))
			// A fresh upsert must not clear the latch.
			require.NoError(t, s.UpsertStock(ctx, model.Stock{Symbol: "AAPL", Name: "Apple", LastUpdated: at.Add(time.Hour)}))

			got, err = s.GetStock(ctx, "AAPL")
			require.NoError(t, err)
			assert.True(t, got.Excluded)
			assert.Equal(t, "Apple", got.Name)

			require.NoError(t, s.SetExcluded(ctx, "AAPL", false))
			got, err = s.GetStock(ctx, "AAPL")
			require.NoError(t, err)
			assert.False(t, got.Excluded)
		})
	}
}

func TestStore_Trades(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetTrade(ctx, "MSFT")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.UpsertTrade(ctx, model.Trade{Symbol: "MSFT", Price: 410, Size: 100}))
			require.NoError(t, s.UpsertTrade(ctx, model.Trade{Symbol: "MSFT", Price: 412.5, Size: 20}))
			require.NoError(t, s.UpsertTrade(ctx, model.Trade{Symbol: "AMZN", Price: 180, Size: 5}))

			got, err := s.GetTrade(ctx, "MSFT")
			require.NoError(t, err)
			assert.Equal(t, 412.5, got.Price)
			assert.Equal(t, 20.0, got.Size)

			trades, err := s.ListTrades(ctx)
			require.NoError(t, err)
			require.Len(t, trades, 2)
			assert.Equal(t, "AMZN", trades[0].Symbol)
		})
	}
}

func TestStore_Bars(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.UpsertStock(ctx, model.Stock{Symbol: "TSLA", LastUpdated: base}))
			_, err := s.LatestClose(ctx, "TSLA")
			require.ErrorIs(t, err, ErrNotFound)

			// Insert out of order; replace day 2.
			for _, d := range []int{3, 1, 2, 4, 0} {
				bar := model.OHLCV{Symbol: "TSLA", Time: base.AddDate(0, 0, d), Close: float64(100 + d)}
				require.NoError(t, s.AppendOrReplaceBar(ctx, bar))
			}
			require.NoError(t, s.AppendOrReplaceBar(ctx, model.OHLCV{Symbol: "TSLA", Time: base.AddDate(0, 0, 2), Close: 222}))

			closes, err := s.RecentCloses(ctx, "TSLA", 3)
			require.NoError(t, err)
			assert.Equal(t, []float64{222, 103, 104}, closes)

			closes, err = s.RecentCloses(ctx, "TSLA", 30)
			require.NoError(t, err)
			assert.Equal(t, []float64{100, 101, 222, 103, 104}, closes)

			latest, err := s.LatestClose(ctx, "TSLA")
			require.NoError(t, err)
			assert.Equal(t, 104.0, latest)
		})
	}
}

func TestStore_Scores(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetScore(ctx, "GOOGL")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.UpsertScore(ctx, model.Score{Symbol: "GOOGL", ScoreSet: model.ScoreSet{TotalScore: 1.35, MAScore: 1}}))
			require.NoError(t, s.UpsertScore(ctx, model.Score{Symbol: "AAPL", ScoreSet: model.ScoreSet{TotalScore: 1.3}}))
			require.NoError(t, s.UpsertScore(ctx, model.Score{Symbol: "MSFT", ScoreSet: model.ScoreSet{TotalScore: 0.7}}))

			above, err := s.QueryScoresAbove(ctx, 1.3)
			require.NoError(t, err)
			require.Len(t, above, 2)
			assert.Equal(t, "AAPL", above[0].Symbol)
			assert.Equal(t, "GOOGL", above[1].Symbol)
			assert.Equal(t, 1.0, above[1].MAScore)

			require.NoError(t, s.UpsertScore(ctx, model.Score{Symbol: "GOOGL", ScoreSet: model.ScoreSet{TotalScore: 0.9}}))
			got, err := s.GetScore(ctx, "GOOGL")
			require.NoError(t, err)
			assert.Equal(t, 0.9, got.TotalScore)
			assert.Equal(t, 0.0, got.MAScore)
		})
	}
}

func TestStoreError(t *testing.T) {
	assert.NoError(t, Wrap("AAPL", "upsert score", nil))

	err := Wrap("AAPL", "upsert score", ErrNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "store upsert score AAPL: not found")

	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "AAPL", se.Symbol)
}
