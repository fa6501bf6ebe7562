package metrics

import "github.com/prometheus/client_golang/prometheus"

// RelayMetrics counts outbox rows handled by the publisher.
type RelayMetrics struct {
	relayed *prometheus.CounterVec
}

func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	if reg == nil {
		return &RelayMetrics{}
	}
	relayed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "markit_outbox_relayed_total",
		Help: "Outbox rows handled by the publisher, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(relayed)
	return &RelayMetrics{relayed: relayed}
}

func (m *RelayMetrics) IncRelayed(eventType, outcome string) {
	if m == nil || m.relayed == nil {
		return
	}
	m.relayed.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}
