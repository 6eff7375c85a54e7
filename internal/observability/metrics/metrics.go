package metrics

import "github.com/prometheus/client_golang/prometheus"

// CallMetrics exposes counters/histograms for the booking call pipeline.
type CallMetrics struct {
	callsPlaced    *prometheus.CounterVec
	turnsTotal     *prometheus.CounterVec
	callOutcomes   *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewCallMetrics(reg prometheus.Registerer) *CallMetrics {
	m := &CallMetrics{
		callsPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "calls",
			Name:      "placed_total",
			Help:      "Total outbound booking calls placed",
		}, []string{"origin"}),
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "calls",
			Name:      "turns_total",
			Help:      "Total dialogue turns by classified intent",
		}, []string{"intent"}),
		callOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "calls",
			Name:      "outcomes_total",
			Help:      "Terminal call outcomes",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "notify",
			Name:      "sent_total",
			Help:      "Outbound lifecycle notifications by kind",
		}, []string{"kind"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "concierge",
			Subsystem: "webhooks",
			Name:      "latency_seconds",
			Help:      "Latency of telephony webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.callsPlaced, m.turnsTotal, m.callOutcomes, m.notifications, m.webhookLatency)
	return m
}

func (m *CallMetrics) ObserveCallPlaced(origin string) {
	if m == nil {
		return
	}
	m.callsPlaced.WithLabelValues(origin).Inc()
}

func (m *CallMetrics) ObserveTurn(intent string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(intent).Inc()
}

func (m *CallMetrics) ObserveOutcome(outcome string) {
	if m == nil {
		return
	}
	m.callOutcomes.WithLabelValues(outcome).Inc()
}

func (m *CallMetrics) ObserveNotification(kind string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind).Inc()
}

func (m *CallMetrics) ObserveWebhookLatency(endpoint string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(endpoint).Observe(seconds)
}
