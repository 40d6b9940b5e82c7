package monitoring

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the Prometheus surface for one wattkeeper process.
// SessionsActive and AlertSubscribers satisfy session.Gauge;
// ReadingsTotal, BillsTotal, AuthFailures, and AlertsBroadcast
// satisfy session.Counter, since prometheus.Gauge/Counter already
// expose Inc()/Dec().
type Metrics struct {
	registry *prometheus.Registry

	SessionsActive   prometheus.Gauge
	AlertSubscribers prometheus.Gauge
	ReadingsTotal    prometheus.Counter
	BillsTotal       prometheus.Counter
	AuthFailures     prometheus.Counter
	AlertsBroadcast  prometheus.Counter
}

// NewMetrics registers the wattkeeper metric family on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wattkeeper_sessions_active",
			Help: "Number of currently authenticated meter sessions.",
		}),
		AlertSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wattkeeper_alert_subscribers",
			Help: "Number of sessions currently subscribed to grid alerts.",
		}),
		ReadingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wattkeeper_readings_total",
			Help: "Total meter readings accepted.",
		}),
		BillsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wattkeeper_bills_total",
			Help: "Total bill replies sent.",
		}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wattkeeper_auth_failures_total",
			Help: "Total failed authentication attempts.",
		}),
		AlertsBroadcast: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wattkeeper_alerts_broadcast_total",
			Help: "Total grid alert events broadcast.",
		}),
	}
	reg.MustRegister(m.SessionsActive, m.AlertSubscribers, m.ReadingsTotal, m.BillsTotal, m.AuthFailures, m.AlertsBroadcast)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
