// Package metrics holds the prometheus collectors of the portal and the gin
// middleware that feeds the HTTP ones.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	RequestCounter      *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	EventsCreated       *prometheus.CounterVec
	ShipmentTransitions *prometheus.CounterVec
	ImportRows          *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		EventsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "events_created_total",
				Help: "Events committed, by event type code",
			},
			[]string{"event_type"},
		),
		ShipmentTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shipment_transitions_total",
				Help: "Shipment status changes, by target status",
			},
			[]string{"to_status"},
		),
		ImportRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "import_rows_total",
				Help: "Imported spreadsheet rows, by entity and outcome",
			},
			[]string{"entity", "outcome"},
		),
	}
	reg.MustRegister(m.RequestCounter, m.RequestDuration, m.EventsCreated, m.ShipmentTransitions, m.ImportRows)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request count and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched" // keeps label cardinality bounded on 404s
		}
		method := c.Request.Method
		m.RequestCounter.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// EventCreated counts a committed event.
func (m *Metrics) EventCreated(eventTypeCode string) {
	if m == nil {
		return
	}
	m.EventsCreated.WithLabelValues(eventTypeCode).Inc()
}

// ShipmentTransition counts a successful status change.
func (m *Metrics) ShipmentTransition(toStatus string) {
	if m == nil {
		return
	}
	m.ShipmentTransitions.WithLabelValues(toStatus).Inc()
}

// ImportRow counts one processed import row. outcome is created, updated, skipped or failed.
func (m *Metrics) ImportRow(entity, outcome string) {
	if m == nil {
		return
	}
	m.ImportRows.WithLabelValues(entity, outcome).Inc()
}
