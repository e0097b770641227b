// Package metrics exposes allocation and lifecycle counters to Prometheus.
// A nil *Metrics is valid and records nothing, which keeps tests and tools
// free of registry plumbing.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "inpatient"

// Claim results.
const (
	ResultSuccess  = "success"
	ResultConflict = "conflict"
	ResultError    = "error"
)

type Metrics struct {
	registry   *prometheus.Registry
	claims     *prometheus.CounterVec
	releases   *prometheus.CounterVec
	transfers  *prometheus.CounterVec
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	occupancy  *prometheus.GaugeVec
}

// New builds a Metrics bound to its own registry, including Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bed_claims_total",
			Help:      "Bed claim attempts by result.",
		}, []string{"result"}),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bed_releases_total",
			Help:      "Bed releases by the status the bed moved to.",
		}, []string{"next_status"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bed_transfers_total",
			Help:      "Bed-to-bed transfers by result.",
		}, []string{"result"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_operations_total",
			Help:      "Admission lifecycle operations by outcome.",
		}, []string{"operation", "result"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lifecycle_operation_duration_seconds",
			Help:      "Latency of admission lifecycle operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		occupancy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ward_occupancy_ratio",
			Help:      "Occupied beds over total beds per ward, as last reported.",
		}, []string{"ward"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.claims, m.releases, m.transfers, m.operations, m.durations, m.occupancy,
	)
	return m
}

func (m *Metrics) ObserveClaim(result string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRelease(nextStatus string) {
	if m == nil {
		return
	}
	m.releases.WithLabelValues(nextStatus).Inc()
}

func (m *Metrics) ObserveTransfer(result string) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(result).Inc()
}

// Observe records a lifecycle operation outcome.
func (m *Metrics) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if m == nil || operation == "" {
		return
	}
	result := ResultError
	if success {
		result = ResultSuccess
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetWardOccupancy stores the occupancy rate (0-100) as a 0-1 ratio.
func (m *Metrics) SetWardOccupancy(ward string, rate float64) {
	if m == nil {
		return
	}
	m.occupancy.WithLabelValues(ward).Set(rate / 100)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
