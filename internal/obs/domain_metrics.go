package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OrdersCreatedTotal counts successfully committed orders.
	OrdersCreatedTotal prometheus.Counter
	// OrderNumberConflictsTotal counts order number collisions that forced a retry.
	OrderNumberConflictsTotal prometheus.Counter
	// InsufficientStockTotal counts checkouts rejected by the guarded stock decrement.
	InsufficientStockTotal prometheus.Counter
	// AuditFailuresTotal counts audit entries that could not be persisted.
	AuditFailuresTotal prometheus.Counter
	// WebhookDeliveriesTotal tracks webhook dispatch outcomes.
	WebhookDeliveriesTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrdersCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Total number of orders committed through checkout.",
		})
		OrderNumberConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_number_conflicts_total",
			Help:      "Order number collisions that triggered a checkout retry.",
		})
		InsufficientStockTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insufficient_stock_total",
			Help:      "Checkouts rejected because stock ran out inside the transaction.",
		})
		AuditFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_failures_total",
			Help:      "Audit trail writes that failed and were dropped.",
		})
		WebhookDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Count of webhook delivery outcomes.",
		}, []string{"result"})

		mustRegisterCollector(reg, OrdersCreatedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				OrdersCreatedTotal = v
			}
		})
		mustRegisterCollector(reg, OrderNumberConflictsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				OrderNumberConflictsTotal = v
			}
		})
		mustRegisterCollector(reg, InsufficientStockTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				InsufficientStockTotal = v
			}
		})
		mustRegisterCollector(reg, AuditFailuresTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				AuditFailuresTotal = v
			}
		})
		mustRegisterCollector(reg, WebhookDeliveriesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				WebhookDeliveriesTotal = v
			}
		})
	})
}

// The Inc helpers are nil-safe so packages can report outcomes without caring
// whether metrics were registered (tests, the seeder).

func IncOrderCreated() {
	if OrdersCreatedTotal != nil {
		OrdersCreatedTotal.Inc()
	}
}

func IncOrderNumberConflict() {
	if OrderNumberConflictsTotal != nil {
		OrderNumberConflictsTotal.Inc()
	}
}

func IncInsufficientStock() {
	if InsufficientStockTotal != nil {
		InsufficientStockTotal.Inc()
	}
}

func IncAuditFailure() {
	if AuditFailuresTotal != nil {
		AuditFailuresTotal.Inc()
	}
}

func IncWebhookDelivery(result string) {
	if WebhookDeliveriesTotal != nil {
		WebhookDeliveriesTotal.WithLabelValues(result).Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
