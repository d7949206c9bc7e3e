package redis

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Redis collectors.
type Metrics struct {
	operationDuration *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
}

// DefaultMetrics is the process wide Redis metrics instance.
var DefaultMetrics = NewMetrics("console")

// NewMetrics registers Redis collectors under namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		operationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "operation_duration_seconds",
			Help:      "Duration of Redis operations",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
		operationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "operation_errors_total",
			Help:      "Total number of failed Redis operations",
		}, []string{"operation"}),
		cacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		}, []string{"prefix"}),
		cacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		}, []string{"prefix"}),
	}
}

// ObserveOperation records the duration and outcome of an operation.
func (m *Metrics) ObserveOperation(op string, d time.Duration, err error) {
	m.operationDuration.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		m.operationErrors.WithLabelValues(op).Inc()
	}
}

// RecordCacheHit counts a hit for a cache prefix.
func (m *Metrics) RecordCacheHit(prefix string) {
	m.cacheHits.WithLabelValues(prefix).Inc()
}

// RecordCacheMiss counts a miss for a cache prefix.
func (m *Metrics) RecordCacheMiss(prefix string) {
	m.cacheMisses.WithLabelValues(prefix).Inc()
}
