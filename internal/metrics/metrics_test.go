package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, m *DispatchMetrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatalf("read metrics body: %v", err)
	}
	return string(body)
}

func TestObserveCountsByChannelAndOutcome(t *testing.T) {
	m := NewDispatchMetrics()
	m.Observe("fax", "success", 1.2)
	m.Observe("fax", "success", 0.4)
	m.Observe("line", "TransportRejected", 0.1)

	body := scrape(t, m)

	if !strings.Contains(body, `ordersend_orders_dispatched_total{channel="fax",outcome="success"} 2`) {
		t.Errorf("fax success count missing:\n%s", body)
	}
	if !strings.Contains(body, `ordersend_orders_dispatched_total{channel="line",outcome="TransportRejected"} 1`) {
		t.Errorf("line rejection count missing:\n%s", body)
	}
	if !strings.Contains(body, `ordersend_order_dispatch_duration_seconds_count{channel="fax"} 2`) {
		t.Errorf("fax duration samples missing:\n%s", body)
	}
}

func TestNewDispatchMetricsIsolatesRegistries(t *testing.T) {
	// Two instances must not collide on metric registration.
	a := NewDispatchMetrics()
	b := NewDispatchMetrics()
	a.Observe("email", "success", 0.2)

	if strings.Contains(scrape(t, b), `channel="email"`) {
		t.Error("observation leaked across registries")
	}
}
