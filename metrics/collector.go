package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector exports pipeline metrics to prometheus. It registers on the
// registerer it is given rather than the process-global default registry.
type Collector struct {
	// Embedding metrics
	embeddingsTotal   *prometheus.CounterVec
	embeddingDuration *prometheus.HistogramVec
	backendErrors     *prometheus.CounterVec

	// Cache metrics
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// Batch metrics
	batchesTotal  prometheus.Counter
	batchSize     prometheus.Histogram
	batchDuration prometheus.Histogram

	// Pool metrics
	poolAcquires prometheus.Counter

	logger *zap.Logger
}

// NewCollector creates and registers the metric set under namespace.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.embeddingsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embeddings_total",
			Help:      "Total embeddings generated",
		},
		[]string{"backend"},
	)

	c.embeddingDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_duration_seconds",
			Help:      "Backend embedding call duration",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	c.backendErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_errors_total",
			Help:      "Total backend call failures",
		},
		[]string{"backend"},
	)

	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache hits per tier",
		},
		[]string{"tier"},
	)

	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cache misses per tier",
		},
		[]string{"tier"},
	)

	c.batchesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total batches dispatched",
		},
	)

	c.batchSize = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Items per dispatched batch",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 11),
		},
	)

	c.batchDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "End-to-end batch duration",
			Buckets:   prometheus.DefBuckets,
		},
	)

	c.poolAcquires = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_acquires_total",
			Help:      "Buffer pool acquisitions",
		},
	)

	return c
}

// RecordEmbedding records one successful backend call.
func (c *Collector) RecordEmbedding(backend string, count int, duration time.Duration) {
	c.embeddingsTotal.WithLabelValues(backend).Add(float64(count))
	c.embeddingDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordBackendError records one failed backend call.
func (c *Collector) RecordBackendError(backend string) {
	c.backendErrors.WithLabelValues(backend).Inc()
}

// RecordCacheHit records a hit at a tier.
func (c *Collector) RecordCacheHit(tier string) {
	c.cacheHits.WithLabelValues(tier).Inc()
}

// RecordCacheMiss records a full or per-tier miss.
func (c *Collector) RecordCacheMiss(tier string) {
	c.cacheMisses.WithLabelValues(tier).Inc()
}

// RecordBatch records one dispatched batch.
func (c *Collector) RecordBatch(size int, duration time.Duration) {
	c.batchesTotal.Inc()
	c.batchSize.Observe(float64(size))
	c.batchDuration.Observe(duration.Seconds())
}

// RecordPoolAcquire records one buffer acquisition.
func (c *Collector) RecordPoolAcquire() {
	c.poolAcquires.Inc()
}
