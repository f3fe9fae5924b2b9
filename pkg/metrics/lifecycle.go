package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Lifecycle records checkout, payment, order and inventory activity.
// A nil *Lifecycle is valid and records nothing.
type Lifecycle struct {
	checkouts        *prometheus.CounterVec
	checkoutDuration *prometheus.HistogramVec
	paymentDecisions *prometheus.CounterVec
	orderTransitions *prometheus.CounterVec
	stockMovements   *prometheus.CounterVec
	stockUnits       *prometheus.CounterVec
	restorations     prometheus.Counter
}

// NewLifecycle registers the lifecycle metrics on the provided registerer.
func NewLifecycle(reg prometheus.Registerer) *Lifecycle {
	if reg == nil {
		return &Lifecycle{}
	}
	l := &Lifecycle{
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		checkoutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_seconds",
			Help:      "Duration of the checkout transaction in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		paymentDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_decisions_total",
			Help:      "Payment confirm/reject decisions applied.",
		}, []string{"action"}),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Order status transitions applied.",
		}, []string{"from", "to"}),
		stockMovements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_movements_total",
			Help:      "Stock movements appended to the ledger.",
		}, []string{"type", "reference"}),
		stockUnits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_units_total",
			Help:      "Units moved through the ledger by direction.",
		}, []string{"direction"}),
		restorations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_restorations_total",
			Help:      "Orders whose stock was restored after cancellation.",
		}),
	}
	reg.MustRegister(
		l.checkouts,
		l.checkoutDuration,
		l.paymentDecisions,
		l.orderTransitions,
		l.stockMovements,
		l.stockUnits,
		l.restorations,
	)
	return l
}

// ObserveCheckout records one checkout attempt.
func (l *Lifecycle) ObserveCheckout(outcome string, duration time.Duration) {
	if l == nil || l.checkouts == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	l.checkouts.WithLabelValues(outcome).Inc()
	l.checkoutDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (l *Lifecycle) IncPaymentDecision(action string) {
	if l == nil || l.paymentDecisions == nil {
		return
	}
	l.paymentDecisions.WithLabelValues(normalizeLabel(action)).Inc()
}

func (l *Lifecycle) IncOrderTransition(from, to string) {
	if l == nil || l.orderTransitions == nil {
		return
	}
	l.orderTransitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// ObserveStockMovement counts a movement and its units.
func (l *Lifecycle) ObserveStockMovement(movementType, reference, direction string, quantity int) {
	if l == nil || l.stockMovements == nil {
		return
	}
	l.stockMovements.WithLabelValues(normalizeLabel(movementType), normalizeLabel(reference)).Inc()
	if quantity > 0 {
		l.stockUnits.WithLabelValues(normalizeLabel(direction)).Add(float64(quantity))
	}
}

func (l *Lifecycle) IncRestoration() {
	if l == nil || l.restorations == nil {
		return
	}
	l.restorations.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
