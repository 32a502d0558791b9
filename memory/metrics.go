package memory

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	storeOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortex_memory_store_operations_total",
			Help: "Total Memory Manager store() calls by outcome.",
		},
		[]string{"outcome"},
	)
	searchLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cortex_memory_search_latency_ms",
			Help:    "Memory Manager search() latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
	)
	vectorStoreSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cortex_memory_vector_store_size",
			Help: "Memory count reported by the last health_check.",
		},
	)
)

func init() {
	prometheus.MustRegister(storeOperationsTotal, searchLatencyMs, vectorStoreSize)
}

func observeStore(outcome string) {
	storeOperationsTotal.WithLabelValues(outcome).Inc()
}

func observeSearch(latency time.Duration) {
	searchLatencyMs.Observe(float64(latency.Milliseconds()))
}

func observeStoreSize(n int) {
	vectorStoreSize.Set(float64(n))
}
