package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Settlement outcomes.
const (
	OutcomeBilled    = "billed"
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// OrderMetrics records checkout and settlement activity.
type OrderMetrics struct {
	created            *prometheus.CounterVec
	shortages          prometheus.Counter
	settlements        *prometheus.CounterVec
	settlementDuration *prometheus.HistogramVec
}

// NewOrderMetrics registers the order metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "markit_trynbuy_orders_created_total",
		Help: "Trynbuy orders created, one per company in a checkout.",
	}, []string{"delivery_type"})
	shortages := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "markit_trynbuy_stock_shortages_total",
		Help: "Checkouts rolled back because a line could not be reserved.",
	})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "markit_trynbuy_settlements_total",
		Help: "Settlement attempts by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "markit_trynbuy_settlement_duration_seconds",
		Help:    "Time spent inside the settlement transaction.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	reg.MustRegister(created, shortages, settlements, duration)
	return &OrderMetrics{
		created:            created,
		shortages:          shortages,
		settlements:        settlements,
		settlementDuration: duration,
	}
}

// IncCreated counts n orders created for the delivery type.
func (m *OrderMetrics) IncCreated(deliveryType string, n int) {
	if m == nil || m.created == nil || n <= 0 {
		return
	}
	m.created.WithLabelValues(normalizeLabel(deliveryType)).Add(float64(n))
}

func (m *OrderMetrics) IncShortage() {
	if m == nil || m.shortages == nil {
		return
	}
	m.shortages.Inc()
}

// ObserveSettlement counts one settlement and records its duration.
func (m *OrderMetrics) ObserveSettlement(outcome string, duration time.Duration) {
	if m == nil || m.settlements == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	m.settlements.WithLabelValues(outcome).Inc()
	m.settlementDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
