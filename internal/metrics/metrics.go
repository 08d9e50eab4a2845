package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the screening counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	SymbolsScreened *prometheus.CounterVec
	Exclusions      *prometheus.CounterVec
	ProviderErrors  *prometheus.CounterVec
	AuditChecked    prometheus.Counter
	AuditCorrected  prometheus.Counter
	TradesCorrected prometheus.Counter
	SymbolDuration  prometheus.Histogram
	LastPassResults prometheus.Gauge
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SymbolsScreened: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockhound_symbols_screened_total",
				Help: "Symbols processed by the screener, by cache state",
			},
			[]string{"cache"},
		),
		Exclusions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockhound_exclusions_total",
				Help: "Symbols newly excluded, by reason",
			},
			[]string{"reason"},
		),
		ProviderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockhound_provider_errors_total",
				Help: "Failed market data calls, by operation",
			},
			[]string{"op"},
		),
		AuditChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockhound_audit_checked_total",
			Help: "Suspicious scores re-checked by the auditor",
		}),
		AuditCorrected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockhound_audit_corrected_total",
			Help: "Stored scores overwritten after drift was found",
		}),
		TradesCorrected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockhound_trades_corrected_total",
			Help: "Trade prices replaced by the latest close",
		}),
		SymbolDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockhound_symbol_duration_seconds",
			Help:    "Time spent processing one symbol",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
		}),
		LastPassResults: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockhound_last_pass_results",
			Help: "Rows emitted by the most recent screening pass",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.SymbolsScreened, m.Exclusions, m.ProviderErrors,
			m.AuditChecked, m.AuditCorrected, m.TradesCorrected,
			m.SymbolDuration, m.LastPassResults,
		)
	}
	return m
}

func (m *Metrics) Screened(cache string) {
	if m != nil {
		m.SymbolsScreened.WithLabelValues(cache).Inc()
	}
}

func (m *Metrics) Excluded(reason string) {
	if m != nil {
		m.Exclusions.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) ProviderError(op string) {
	if m != nil {
		m.ProviderErrors.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) Audited(checked, corrected int) {
	if m != nil {
		m.AuditChecked.Add(float64(checked))
		m.AuditCorrected.Add(float64(corrected))
	}
}

func (m *Metrics) TradesFixed(n int) {
	if m != nil {
		m.TradesCorrected.Add(float64(n))
	}
}

func (m *Metrics) ObserveSymbol(start time.Time) {
	if m != nil {
		m.SymbolDuration.Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) PassResults(n int) {
	if m != nil {
		m.LastPassResults.Set(float64(n))
	}
}
