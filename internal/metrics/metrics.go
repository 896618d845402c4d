// Package metrics owns the prometheus collectors exported on /metrics.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Techtrust201/cannes-one-pass/internal/onepass/types"
)

// Metrics is nil-safe: every method on a nil *Metrics does nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	mutations    *prometheus.CounterVec
	conflicts    prometheus.Counter
	occupancy    *prometheus.GaugeVec
}

// New registers every collector on a private registry, so several instances
// can coexist in tests.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onepass_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onepass_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"method", "route"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onepass_mutations_total",
			Help: "Accreditation mutations by operation and result.",
		}, []string{"operation", "result"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "onepass_conflicts_total",
			Help: "Mutations rejected because the caller's version was stale.",
		}),
		occupancy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "onepass_zone_occupancy",
			Help: "Accreditations per current zone and status.",
		}, []string{"zone", "status"}),
	}

	reg.MustRegister(m.httpRequests, m.httpDuration, m.mutations, m.conflicts, m.occupancy)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveMutation counts one mutation attempt, classified by its error.
func (m *Metrics) ObserveMutation(operation string, err error) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(operation, Result(err)).Inc()
	if errors.Is(err, types.ErrConflict) {
		m.conflicts.Inc()
	}
}

// SetOccupancy replaces every occupancy gauge with counts.
func (m *Metrics) SetOccupancy(counts map[[2]string]int) {
	if m == nil {
		return
	}
	m.occupancy.Reset()
	for k, n := range counts {
		m.occupancy.WithLabelValues(k[0], k[1]).Set(float64(n))
	}
}

// Result maps an error to a low-cardinality label value.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, types.ErrConflict):
		return "conflict"
	case errors.Is(err, types.ErrNotFound):
		return "not_found"
	case errors.Is(err, types.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, types.ErrInvalidZone):
		return "invalid_zone"
	case errors.Is(err, types.ErrInvalidStatus), errors.Is(err, types.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, types.ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}
