package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// SaleMetrics records purchase pipeline activity for operator dashboards.
type SaleMetrics struct {
	Purchases    prometheus.Counter
	Rejections   *prometheus.CounterVec
	BreakerTrips prometheus.Counter
	AdminOps     *prometheus.CounterVec
	SettleTime   prometheus.Histogram
}

var (
	saleMetricsOnce sync.Once
	saleRegistry    *SaleMetrics
)

// Metrics returns the lazily-initialised sale metrics registry. Collectors
// are registered with the default prometheus registry exactly once.
func Metrics() *SaleMetrics {
	saleMetricsOnce.Do(func() {
		saleRegistry = &SaleMetrics{
			Purchases: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "salegate",
				Subsystem: "engine",
				Name:      "purchases_total",
				Help:      "Total settled purchases.",
			}),
			Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "salegate",
				Subsystem: "engine",
				Name:      "rejections_total",
				Help:      "Total rejected purchase attempts segmented by reason.",
			}, []string{"reason"}),
			BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "salegate",
				Subsystem: "engine",
				Name:      "breaker_trips_total",
				Help:      "Total circuit breaker trips.",
			}),
			AdminOps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "salegate",
				Subsystem: "engine",
				Name:      "admin_ops_total",
				Help:      "Total privileged mutations segmented by operation and outcome.",
			}, []string{"op", "outcome"}),
			SettleTime: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "salegate",
				Subsystem: "engine",
				Name:      "settlement_duration_seconds",
				Help:      "Latency distribution of the purchase settlement path.",
				Buckets:   prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(
			saleRegistry.Purchases,
			saleRegistry.Rejections,
			saleRegistry.BreakerTrips,
			saleRegistry.AdminOps,
			saleRegistry.SettleTime,
		)
	})
	return saleRegistry
}
