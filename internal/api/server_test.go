package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockHound/internal/collector"
	"StockHound/internal/metrics"
	"StockHound/internal/model"
	"StockHound/internal/notifier"
	"StockHound/internal/screener"
)

type stubScreener struct {
	results []model.Result
	err     error
	budget  float64
}

func (s *stubScreener) Screen(_ context.Context, budget float64) ([]model.Result, error) {
	s.budget = budget
	if budget <= 0 {
		return nil, screener.ErrInvalidBudget
	}
	return s.results, s.err
}

func newTestServer(s Screener, reg *prometheus.Registry) *Server {
	return New(Config{Addr: ":0", Log: zerolog.Nop(), Screener: s, Gatherer: reg})
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestServer(&stubScreener{}, prometheus.NewRegistry()), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestScreen(t *testing.T) {
	stub := &stubScreener{results: []model.Result{
		{Name: "Apple Inc.", Symbol: "AAPL", Price: 150, ScoreSet: model.ScoreSet{TotalScore: 0.7}},
	}}
	rec := get(t, newTestServer(stub, prometheus.NewRegistry()), "/screen?budget=200")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 200.0, stub.budget)

	var resp screenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "AAPL", resp.Results[0].Symbol)
	assert.Equal(t, 0.7, resp.Results[0].TotalScore)
	assert.Empty(t, resp.Message)
}

func TestScreen_Empty(t *testing.T) {
	rec := get(t, newTestServer(&stubScreener{}, prometheus.NewRegistry()), "/screen?budget=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"results":[]`)
	assert.Contains(t, rec.Body.String(), notifier.NoResultsMessage)
}

func TestScreen_BadBudget(t *testing.T) {
	srv := newTestServer(&stubScreener{}, prometheus.NewRegistry())
	for _, q := range []string{"/screen", "/screen?budget=abc", "/screen?budget=0", "/screen?budget=-3"} {
		rec := get(t, srv, q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Contains(t, rec.Body.String(), "error", q)
	}
}

func TestScreen_PartialFailure(t *testing.T) {
	perr := &collector.ProviderError{Provider: "polygon", Symbol: "TSLA", Op: "latest trade", Err: errors.New("timeout")}
	stub := &stubScreener{
		results: []model.Result{{Symbol: "AAPL", Price: 10}},
		err:     &screener.PassError{Errors: []error{perr}},
	}
	rec := get(t, newTestServer(stub, prometheus.NewRegistry()), "/screen?budget=100")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp screenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Results, 1)
	require.Len(t, resp.Failed, 1)
	assert.Contains(t, resp.Failed[0], "TSLA")
}

func TestScreen_StoreFailure(t *testing.T) {
	stub := &stubScreener{err: errors.New("store upsert trade AAPL: disk I/O error")}
	rec := get(t, newTestServer(stub, prometheus.NewRegistry()), "/screen?budget=100")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk")
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Excluded("no_history")

	rec := get(t, newTestServer(&stubScreener{}, reg), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `stockhound_exclusions_total{reason="no_history"} 1`))
}
