// Package metrics exposes Prometheus instrumentation for price synchronization.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Price sources recorded by InstrumentsRefreshed.
const (
	SourceProvider  = "provider"
	SourceSynthetic = "synthetic"
)

// Metrics holds all Prometheus metrics for the price sync engine.
type Metrics struct {
	registry *prometheus.Registry

	SyncRuns             *prometheus.CounterVec   // labels: kind
	SyncDuration         *prometheus.HistogramVec // labels: kind
	InstrumentsRefreshed *prometheus.CounterVec   // labels: source
	RefreshFailures      prometheus.Counter
	BarsUpserted         prometheus.Counter
	HoldingsUpdated      prometheus.Counter
	ProviderRequests     *prometheus.CounterVec // labels: endpoint, outcome
}

// New creates the metrics and registers them on reg.
// A nil reg gets a fresh registry, which keeps tests independent of the global one.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: reg,
		SyncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricesync_runs_total",
			Help: "Completed sync runs by kind (all, batch, backfill)",
		}, []string{"kind"}),
		SyncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pricesync_run_duration_seconds",
			Help:    "Wall time of a sync run",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"kind"}),
		InstrumentsRefreshed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricesync_instruments_refreshed_total",
			Help: "Instrument price updates by price source",
		}, []string{"source"}),
		RefreshFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pricesync_refresh_failures_total",
			Help: "Instrument refreshes that could not produce a price",
		}),
		BarsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pricesync_bars_upserted_total",
			Help: "Daily price bars written to the history store",
		}),
		HoldingsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pricesync_holdings_updated_total",
			Help: "Holding rows that received a propagated price",
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricesync_provider_requests_total",
			Help: "Market-data provider requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
	}

	reg.MustRegister(
		m.SyncRuns,
		m.SyncDuration,
		m.InstrumentsRefreshed,
		m.RefreshFailures,
		m.BarsUpserted,
		m.HoldingsUpdated,
		m.ProviderRequests,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ProviderRequest counts one provider call.
func (m *Metrics) ProviderRequest(endpoint, outcome string) {
	m.ProviderRequests.WithLabelValues(endpoint, outcome).Inc()
}

// ObserveSync records a finished sync run.
func (m *Metrics) ObserveSync(kind string, d time.Duration) {
	m.SyncRuns.WithLabelValues(kind).Inc()
	m.SyncDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// InstrumentRefreshed counts an instrument price update from source.
func (m *Metrics) InstrumentRefreshed(source string) {
	m.InstrumentsRefreshed.WithLabelValues(source).Inc()
}

// RefreshFailed counts an instrument that could not be priced.
func (m *Metrics) RefreshFailed() {
	m.RefreshFailures.Inc()
}

// BarsWritten adds n upserted bars.
func (m *Metrics) BarsWritten(n int) {
	m.BarsUpserted.Add(float64(n))
}

// HoldingsPropagated adds n holding price updates.
func (m *Metrics) HoldingsPropagated(n int) {
	m.HoldingsUpdated.Add(float64(n))
}
