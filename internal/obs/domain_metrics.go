package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OrdersCreatedTotal counts order creation attempts by outcome.
	OrdersCreatedTotal *prometheus.CounterVec
	// OrderCreateLatency records order creation latency in milliseconds.
	OrderCreateLatency prometheus.Histogram
	// ReservationConflictTotal counts stock reservations rejected for insufficient stock.
	ReservationConflictTotal prometheus.Counter
	// StatusTransitionTotal counts order status transitions by target status and outcome.
	StatusTransitionTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrdersCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Count of order creation attempts by outcome.",
		}, []string{"result"})
		OrderCreateLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_create_duration_ms",
			Help:      "Latency for order creation in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
		})
		ReservationConflictTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_reservation_conflicts_total",
			Help:      "Number of stock reservations rejected for insufficient stock.",
		})
		StatusTransitionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_transition_total",
			Help:      "Count of order status transitions by target status and outcome.",
		}, []string{"to", "result"})

		reg.MustRegister(OrdersCreatedTotal, OrderCreateLatency, ReservationConflictTotal, StatusTransitionTotal)
	})
}
