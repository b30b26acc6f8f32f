package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.EventCreated("wash")
	m.ShipmentTransition("shipped")
	m.ImportRow("shipments", "created")
}

func TestDomainCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.EventCreated("wash")
	m.EventCreated("wash")
	m.ShipmentTransition("cancelled")
	m.ImportRow("shipments", "updated")

	if got := testutil.ToFloat64(m.EventsCreated.WithLabelValues("wash")); got != 2 {
		t.Fatalf("events_created_total{wash} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ShipmentTransitions.WithLabelValues("cancelled")); got != 1 {
		t.Fatalf("shipment_transitions_total{cancelled} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ImportRows.WithLabelValues("shipments", "updated")); got != 1 {
		t.Fatalf("import_rows_total = %v, want 1", got)
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry())

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/shipments/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/shipments/42", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d", w.Code)
	}
	if got := testutil.ToFloat64(m.RequestCounter.WithLabelValues("GET", "/shipments/:id", "204")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), `http_requests_total{method="GET",path="/shipments/:id",status="204"} 1`) {
		t.Fatalf("metrics output missing request counter:\n%s", w.Body.String())
	}
}
