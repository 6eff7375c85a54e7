package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCallMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCallMetrics(reg)

	m.ObserveCallPlaced("api")
	m.ObserveCallPlaced("api")
	m.ObserveTurn("yes")
	m.ObserveOutcome("confirmed")
	m.ObserveNotification("confirmed")
	m.ObserveWebhookLatency("voice_gather", 0.12)

	if got := testutil.ToFloat64(m.callsPlaced.WithLabelValues("api")); got != 2 {
		t.Fatalf("calls placed = %v", got)
	}
	if got := testutil.ToFloat64(m.turnsTotal.WithLabelValues("yes")); got != 1 {
		t.Fatalf("turns = %v", got)
	}
	if got := testutil.ToFloat64(m.callOutcomes.WithLabelValues("confirmed")); got != 1 {
		t.Fatalf("outcomes = %v", got)
	}
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("confirmed")); got != 1 {
		t.Fatalf("notifications = %v", got)
	}
}

// Handlers and the engine call metrics unconditionally; a nil receiver must
// be a no-op.
func TestCallMetricsNilSafe(t *testing.T) {
	var m *CallMetrics
	m.ObserveCallPlaced("api")
	m.ObserveTurn("yes")
	m.ObserveOutcome("confirmed")
	m.ObserveNotification("confirmed")
	m.ObserveWebhookLatency("voice_gather", 0.1)
}
