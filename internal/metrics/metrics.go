// Package metrics exposes qvcsd counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qvcs-go/internal/qvcs"
)

// Metrics holds the server's collectors on a private registry, so several
// servers can coexist in one test binary.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal          *prometheus.CounterVec
	RequestDuration        *prometheus.HistogramVec
	PromotionsTotal        *prometheus.CounterVec
	NotificationsDelivered *prometheus.CounterVec
	NotificationsFailed    *prometheus.CounterVec
	SessionsOpen           prometheus.Gauge
}

var _ qvcs.Recorder = (*Metrics)(nil)

// New creates and registers all collectors, plus the Go runtime and process
// collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qvcsd_requests_total",
				Help: "Total number of requests handled, by kind and outcome",
			},
			[]string{"kind", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qvcsd_request_duration_seconds",
				Help:    "Duration of request handling in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"kind"},
		),
		PromotionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qvcsd_promotions_total",
				Help: "Total number of committed file promotions, by variant",
			},
			[]string{"variant"},
		),
		NotificationsDelivered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qvcsd_notifications_delivered_total",
				Help: "Notifications written to observers",
			},
			[]string{"action"},
		),
		NotificationsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qvcsd_notifications_failed_total",
				Help: "Notifications that could not be written to an observer",
			},
			[]string{"action"},
		),
		SessionsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "qvcsd_sessions_open",
				Help: "Number of connected client sessions",
			},
		),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RequestHandled(kind qvcs.RequestKind, status string, d time.Duration) {
	m.RequestsTotal.WithLabelValues(string(kind), status).Inc()
	m.RequestDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

func (m *Metrics) PromotionCompleted(variant qvcs.PromotionVariant) {
	m.PromotionsTotal.WithLabelValues(variant.String()).Inc()
}

func (m *Metrics) NotificationDelivered(action qvcs.Action) {
	m.NotificationsDelivered.WithLabelValues(string(action)).Inc()
}

func (m *Metrics) NotificationFailed(action qvcs.Action) {
	m.NotificationsFailed.WithLabelValues(string(action)).Inc()
}

// SessionOpened and SessionClosed track the connected session count.
func (m *Metrics) SessionOpened() { m.SessionsOpen.Inc() }
func (m *Metrics) SessionClosed() { m.SessionsOpen.Dec() }
