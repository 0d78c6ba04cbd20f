package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors
type Metrics struct {
	OrderOutcomes    *prometheus.CounterVec
	OrderDuration    prometheus.Histogram
	LockAttempts     *prometheus.CounterVec
	LowStockProducts prometheus.Gauge
	ArchiveRuns      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrderOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "order_outcomes_total",
			Help:      "Order placement attempts by outcome.",
		}, []string{"outcome"}),
		OrderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storefront",
			Name:      "order_duration_seconds",
			Help:      "Time spent placing an order, including lock retries.",
			Buckets:   prometheus.DefBuckets,
		}),
		LockAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "stock_lock_attempts_total",
			Help:      "No-wait stock lock attempts by result.",
		}, []string{"result"}),
		LowStockProducts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storefront",
			Name:      "low_stock_products",
			Help:      "Products below the low stock threshold at the last check.",
		}),
		ArchiveRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "order_archive_runs_total",
			Help:      "Order archive exports by status.",
		}, []string{"status"}),
	}

	reg.MustRegister(m.OrderOutcomes, m.OrderDuration, m.LockAttempts, m.LowStockProducts, m.ArchiveRuns)
	return m
}

// NewNop returns collectors registered nowhere, for tests and tools
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
