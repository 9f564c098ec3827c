// Package metrics exposes gateway counters for Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements the recorder hooks of authflow, notify, realtime,
// backend and middleware.
type Collector struct {
	authFlows      *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	realtimeState  *prometheus.GaugeVec
	reconnects     prometheus.Counter
	backendLatency *prometheus.HistogramVec
	rateLimited    *prometheus.CounterVec
	uiClients      prometheus.Gauge
}

var realtimeStates = []string{"connected", "connecting", "disconnected"}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authFlows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_auth_flows_total",
			Help: "Auth flow completions by flow and result.",
		}, []string{"flow", "result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_notifications_total",
			Help: "Pushed notifications by merge outcome.",
		}, []string{"outcome"}),
		realtimeState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "guardian_realtime_state",
			Help: "1 for the current realtime connection state.",
		}, []string{"state"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guardian_realtime_reconnect_attempts_total",
			Help: "Automatic reconnect attempts of the realtime channel.",
		}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guardian_backend_request_seconds",
			Help:    "Backend REST round trip latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status_code"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_rate_limited_total",
			Help: "Requests rejected by a rate limiter.",
		}, []string{"route"}),
		uiClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "guardian_ui_connections",
			Help: "Open UI websocket connections.",
		}),
	}

	reg.MustRegister(
		c.authFlows,
		c.notifications,
		c.realtimeState,
		c.reconnects,
		c.backendLatency,
		c.rateLimited,
		c.uiClients,
	)
	return c
}

func (c *Collector) RecordAuth(flow string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	c.authFlows.WithLabelValues(flow, result).Inc()
}

func (c *Collector) RecordNotification(outcome string) {
	c.notifications.WithLabelValues(outcome).Inc()
}

// RecordRealtimeState sets the gauge for state to 1 and every other state to 0.
func (c *Collector) RecordRealtimeState(state string) {
	for _, s := range realtimeStates {
		v := 0.0
		if s == state {
			v = 1
		}
		c.realtimeState.WithLabelValues(s).Set(v)
	}
}

func (c *Collector) RecordReconnectAttempt() {
	c.reconnects.Inc()
}

func (c *Collector) ObserveBackend(method string, status int, elapsed time.Duration) {
	c.backendLatency.WithLabelValues(method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func (c *Collector) RecordRateLimited(route string) {
	c.rateLimited.WithLabelValues(route).Inc()
}

func (c *Collector) SetUIConnections(n int) {
	c.uiClients.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
