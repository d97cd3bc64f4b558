package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// ReconcileMetrics records webhook reconciliation and order creation.
type ReconcileMetrics struct {
	outcomes *prometheus.CounterVec
	attempts prometheus.Histogram
	duration prometheus.Histogram
	orders   *prometheus.CounterVec
}

// NewReconcileMetrics registers the reconciliation metrics on the provided registerer.
func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_reconcile_outcomes_total",
		Help: "Payment webhook reconciliations by terminal outcome.",
	}, []string{"outcome"})
	attempts := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_reconcile_search_attempts",
		Help:    "Order search attempts made before a reconciliation settled.",
		Buckets: []float64{1, 2, 3, 4, 5, 8},
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_reconcile_duration_seconds",
		Help:    "Duration of payment webhook reconciliations in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_created_total",
		Help: "Orders persisted, by the path that created them.",
	}, []string{"source"})
	reg.MustRegister(outcomes, attempts, duration, orders)
	return &ReconcileMetrics{
		outcomes: outcomes,
		attempts: attempts,
		duration: duration,
		orders:   orders,
	}
}

// ObserveReconcile records one finished reconciliation.
func (m *ReconcileMetrics) ObserveReconcile(outcome enums.ReconcileOutcome, attempts int, elapsed time.Duration) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome.String())).Inc()
	m.attempts.Observe(float64(attempts))
	m.duration.Observe(elapsed.Seconds())
}

// IncOrderCreated counts an order persisted by source.
func (m *ReconcileMetrics) IncOrderCreated(source enums.OrderSource) {
	if m == nil || m.orders == nil {
		return
	}
	m.orders.WithLabelValues(normalizeLabel(source.String())).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
