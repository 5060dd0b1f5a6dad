// Package metrics holds the client's Prometheus collectors.
//
// Collectors are registered against a caller-provided registerer so several
// gateways (tests, multiple profiles) can coexist in one process. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refresh outcomes.
const (
	RefreshOK        = "ok"
	RefreshFailed    = "failed"
	RefreshNoToken   = "no_refresh_token"
	RefreshDiscarded = "discarded"
)

type Metrics struct {
	requests      *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	refreshWaiter prometheus.Histogram
	events        *prometheus.CounterVec
	connections   prometheus.Gauge
}

// New registers the collectors on reg. A nil reg uses a private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vivahvows_gateway_requests_total",
			Help: "Backend requests by method and status class (network errors use class \"error\").",
		}, []string{"method", "status_class"}),
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vivahvows_gateway_refresh_total",
			Help: "Token refresh attempts by result.",
		}, []string{"result"}),
		refreshWaiter: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vivahvows_gateway_refresh_waiters",
			Help:    "Requests queued behind a single refresh.",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
		}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vivahvows_realtime_events_total",
			Help: "Realtime notification events by event name.",
		}, []string{"event"}),
		connections: f.NewGauge(prometheus.GaugeOpts{
			Name: "vivahvows_realtime_connections",
			Help: "Open realtime sockets.",
		}),
	}
}

// ObserveRequest records one completed request. status 0 means no response.
func (m *Metrics) ObserveRequest(method string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, StatusClass(status)).Inc()
}

// ObserveRefresh records a refresh outcome and how many requests waited on it.
func (m *Metrics) ObserveRefresh(result string, waiters int) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
	m.refreshWaiter.Observe(float64(waiters))
}

func (m *Metrics) ObserveEvent(event string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(event).Inc()
}

func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// StatusClass maps 200 to "2xx" and 0 to "error".
func StatusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
