// Package metrics exposes Prometheus instrumentation for the insight hub.
// A single Metrics value is created at startup and threaded through the HTTP
// layer and the background jobs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service registers.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Background jobs
	JobRunsTotal   *prometheus.CounterVec
	JobDuration    *prometheus.HistogramVec
	JobLastSuccess *prometheus.GaugeVec

	// Domain
	StudentsTotal    prometheus.Gauge
	StudentsAnalyzed prometheus.Gauge
	AtRiskStudents   *prometheus.GaugeVec
	SyncErrorsTotal  prometheus.Counter
	CacheHitsTotal   *prometheus.CounterVec
}

// New creates the metrics set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "insighthub",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),

		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "insighthub",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		JobRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "insighthub",
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Background job runs by job name and outcome.",
		}, []string{"job", "outcome"}),

		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "insighthub",
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Background job run duration by job name.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"job"}),

		JobLastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "insighthub",
			Subsystem: "jobs",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run by job name.",
		}, []string{"job"}),

		StudentsTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "insighthub",
			Name:      "students_total",
			Help:      "Number of student records in storage.",
		}),

		StudentsAnalyzed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "insighthub",
			Name:      "students_analyzed",
			Help:      "Number of student records with a completed analysis.",
		}),

		AtRiskStudents: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "insighthub",
			Name:      "at_risk_students",
			Help:      "Students per risk level as of the last sweep.",
		}, []string{"level"}),

		SyncErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "insighthub",
			Name:      "sync_errors_total",
			Help:      "Roster rows rejected during synchronization.",
		}),

		CacheHitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "insighthub",
			Name:      "cache_requests_total",
			Help:      "Cache lookups by cache name and result.",
		}, []string{"cache", "result"}),
	}
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCacheHit records a cache hit or miss.
func (m *Metrics) ObserveCacheHit(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheHitsTotal.WithLabelValues(cache, result).Inc()
}
