package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lorrc/ticket-tally/internal/core/ports"
)

const namespace = "ticket_tally"

// Metrics holds the collectors exported on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	submissions        *prometheus.CounterVec
	validationFailures prometheus.Counter
	storeDuration      *prometheus.HistogramVec
	storeErrors        *prometheus.CounterVec
}

var _ ports.TallyMetrics = (*Metrics)(nil)

// New registers every collector on a fresh registry. Process and Go runtime
// collectors are included so the endpoint is useful on its own.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Successful tally submissions by upsert action.",
		}, []string{"action"}),
		validationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Submissions rejected before any store write.",
		}),
		storeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Latency of tabular store calls.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"backend", "op"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_errors_total",
			Help:      "Failed tabular store calls.",
		}, []string{"backend", "op"}),
	}

	reg.MustRegister(m.submissions, m.validationFailures, m.storeDuration, m.storeErrors)
	return m
}

// ObserveSubmission counts one successful upsert.
func (m *Metrics) ObserveSubmission(action string) {
	m.submissions.WithLabelValues(action).Inc()
}

// ObserveValidationFailure counts one rejected submission.
func (m *Metrics) ObserveValidationFailure() {
	m.validationFailures.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
