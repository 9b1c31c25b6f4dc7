package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics of the API server and its syncer.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec   // labels: route, code
	RequestDuration *prometheus.HistogramVec // labels: route

	AnalysesTotal   *prometheus.CounterVec // labels: indicator, signal
	AnalysisErrors  *prometheus.CounterVec // labels: indicator
	AnalysisCompute prometheus.Histogram

	SyncRunsTotal   *prometheus.CounterVec // labels: status=ok|partial|failed
	SyncDuration    prometheus.Histogram
	SyncRowsTotal   prometheus.Counter
	LastSyncSeconds prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates the metrics on a fresh registry so several servers can
// coexist in one process.
func NewMetrics() *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptolens_http_requests_total",
			Help: "HTTP requests served, by route and status code",
		}, []string{"route", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cryptolens_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),

		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptolens_analyses_total",
			Help: "Completed analyses, by indicator and resulting signal",
		}, []string{"indicator", "signal"}),
		AnalysisErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptolens_analysis_errors_total",
			Help: "Analyses that failed, by indicator",
		}, []string{"indicator"}),
		AnalysisCompute: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cryptolens_analysis_compute_duration_seconds",
			Help:    "Indicator and classifier compute latency per analysis",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),

		SyncRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptolens_sync_runs_total",
			Help: "Sync runs by outcome",
		}, []string{"status"}),
		SyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cryptolens_sync_duration_seconds",
			Help:    "Duration of a full sync run",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		SyncRowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptolens_sync_rows_inserted_total",
			Help: "History rows inserted by sync runs",
		}),
		LastSyncSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cryptolens_last_sync_timestamp_seconds",
			Help: "Unix time of the last completed sync run",
		}),

		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.AnalysesTotal,
		m.AnalysisErrors,
		m.AnalysisCompute,
		m.SyncRunsTotal,
		m.SyncDuration,
		m.SyncRowsTotal,
		m.LastSyncSeconds,
	)
	return m
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
