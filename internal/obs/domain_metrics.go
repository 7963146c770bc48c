package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PricingRecalculations counts completed cart pricing passes.
	PricingRecalculations *prometheus.CounterVec
	// PromotionsApplied counts promotions applied by scope.
	PromotionsApplied *prometheus.CounterVec
	// PromotionsSkipped counts promotions skipped because of malformed definitions.
	PromotionsSkipped *prometheus.CounterVec
	// PricingDuration records pricing pass latency in milliseconds.
	PricingDuration prometheus.Histogram
	// QueueTasksTotal counts background task outcomes by type.
	QueueTasksTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PricingRecalculations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_recalculations_total",
			Help:      "Count of cart pricing passes by order policy.",
		}, []string{"order_policy"})
		PromotionsApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_promotions_applied_total",
			Help:      "Count of promotions applied by scope.",
		}, []string{"scope"})
		PromotionsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_promotions_skipped_total",
			Help:      "Count of promotions skipped because their condition or action was malformed.",
		}, []string{"scope", "reason"})
		PricingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pricing_recalculation_duration_ms",
			Help:      "Latency of a cart pricing pass in milliseconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		})
		QueueTasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_tasks_total",
			Help:      "Count of background task outcomes by type.",
		}, []string{"type", "result"})

		PricingRecalculations = registerOrReuse(reg, PricingRecalculations)
		PromotionsApplied = registerOrReuse(reg, PromotionsApplied)
		PromotionsSkipped = registerOrReuse(reg, PromotionsSkipped)
		PricingDuration = registerOrReuse(reg, PricingDuration)
		QueueTasksTotal = registerOrReuse(reg, QueueTasksTotal)
	})
}
