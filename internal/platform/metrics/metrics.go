// Package metrics exposes Prometheus collectors for the HTTP surface and the
// queue engine.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPActiveConnections prometheus.Gauge

	QueueAdmissionsTotal  *prometheus.CounterVec
	QueueTransitionsTotal *prometheus.CounterVec
	TxConflictsTotal      prometheus.Counter
}

// New registers every collector on reg. Pass prometheus.NewRegistry() in
// tests to keep them independent of the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint", "status"},
		),
		HTTPActiveConnections: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_active_connections",
				Help: "Number of in-flight HTTP requests",
			},
		),
		QueueAdmissionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_queue_admissions_total",
				Help: "Queue admissions by result",
			},
			[]string{"result"}, // "admitted", "rejected"
		),
		QueueTransitionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_queue_transitions_total",
				Help: "Committed queue item status transitions",
			},
			[]string{"from", "to"},
		),
		TxConflictsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "clinic_tx_conflicts_total",
				Help: "Write transactions that exhausted their retries",
			},
		),
	}
}

// RecordHTTPRequest records metrics for an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	status := strconv.Itoa(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

func (m *Metrics) IncActiveConnections() {
	if m != nil {
		m.HTTPActiveConnections.Inc()
	}
}

func (m *Metrics) DecActiveConnections() {
	if m != nil {
		m.HTTPActiveConnections.Dec()
	}
}

// RecordAdmission counts an admission attempt by result.
func (m *Metrics) RecordAdmission(result string) {
	if m != nil {
		m.QueueAdmissionsTotal.WithLabelValues(result).Inc()
	}
}

// RecordTransition counts a committed queue status change.
func (m *Metrics) RecordTransition(from, to string) {
	if m != nil {
		m.QueueTransitionsTotal.WithLabelValues(from, to).Inc()
	}
}

// RecordConflict counts a transaction that gave up after retries.
func (m *Metrics) RecordConflict() {
	if m != nil {
		m.TxConflictsTotal.Inc()
	}
}
