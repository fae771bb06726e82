package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricStatementsTotal      = "statements_total"
	MetricStatementErrorsTotal = "statement_errors_total"
	MetricExecuteDuration      = "execute_duration_seconds"
	MetricStoredRecords        = "stored_records"
)

// Metrics holds the Prometheus collectors for one executor. Each Metrics owns
// its registry so tests and embedded stores do not collide on the default one.
type Metrics struct {
	registry *prometheus.Registry

	statements *prometheus.CounterVec
	errors     *prometheus.CounterVec
	duration   prometheus.Histogram
	stored     *prometheus.GaugeVec
}

// NewMetrics creates and registers the tmpldb collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		statements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tmpldb",
				Name:      MetricStatementsTotal,
				Help:      "Statements executed, by statement kind.",
			},
			[]string{"kind"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tmpldb",
				Name:      MetricStatementErrorsTotal,
				Help:      "Statement batches that failed, by error code.",
			},
			[]string{"code"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "tmpldb",
				Name:      MetricExecuteDuration,
				Help:      "Wall time of one statement batch.",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
		),
		stored: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "tmpldb",
				Name:      MetricStoredRecords,
				Help:      "Records currently held, by collection.",
			},
			[]string{"collection"},
		),
	}

	m.registry.MustRegister(m.statements, m.errors, m.duration, m.stored)
	return m
}

// ObserveStatement counts one statement of kind.
func (m *Metrics) ObserveStatement(kind string) {
	m.statements.WithLabelValues(kind).Inc()
}

// ObserveError counts one failed batch.
func (m *Metrics) ObserveError(code string) {
	if code == "" {
		code = "UNKNOWN"
	}
	m.errors.WithLabelValues(code).Inc()
}

// ObserveDuration records the wall time of one batch.
func (m *Metrics) ObserveDuration(d time.Duration) {
	m.duration.Observe(d.Seconds())
}

// SetStored records the current collection sizes.
func (m *Metrics) SetStored(templates, instances int) {
	m.stored.WithLabelValues("templates").Set(float64(templates))
	m.stored.WithLabelValues("instances").Set(float64(instances))
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
