package embedflow

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/embedflow/backend"
	"github.com/BaSui01/embedflow/batch"
	"github.com/BaSui01/embedflow/cache"
	"github.com/BaSui01/embedflow/config"
	"github.com/BaSui01/embedflow/metrics"
	"github.com/BaSui01/embedflow/pool"
	"github.com/BaSui01/embedflow/ratelimit"
	"github.com/BaSui01/embedflow/tuning"
	"github.com/BaSui01/embedflow/types"
)

const backendTrack = "backend.embed"

// Pipeline owns every shared component of the performance layer: one
// explicitly constructed instance replaces process-global singletons. All
// methods are safe for concurrent use.
type Pipeline struct {
	config    *config.Config
	provider  backend.Provider
	cache     *cache.Hierarchy
	limiter   *ratelimit.Limiter
	processor *batch.Processor[string, types.Vector]
	optimizer *tuning.Optimizer
	buffers   *pool.BufferPool
	profiler  *metrics.Profiler
	monitor   *metrics.Monitor
	collector *metrics.Collector // nil unless WithPrometheus was given
	logger    *zap.Logger

	batchSize atomic.Int64
	docs      atomic.Int64
	errors    atomic.Int64
	closed    atomic.Bool
}

func newPipeline(provider backend.Provider, opts ...Option) (*Pipeline, error) {
	if provider == nil {
		return nil, types.ConfigError("backend provider must not be nil")
	}

	o := &pipelineOptions{}
	for _, opt := range opts {
		opt(o)
	}
	cfg := o.config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tiers := o.tiers
	if tiers == nil {
		var err error
		tiers, err = buildTiers(cfg, logger)
		if err != nil {
			return nil, err
		}
	}
	hierarchy, err := cache.NewHierarchy(logger, tiers...)
	if err != nil {
		return nil, err
	}

	limiter, err := ratelimit.NewLimiter(cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	processor, err := batch.NewProcessor[string, types.Vector](cfg.Batch, logger)
	if err != nil {
		return nil, err
	}
	optimizer, err := tuning.NewOptimizer(cfg.Tuning, logger)
	if err != nil {
		return nil, err
	}
	buffers, err := pool.NewBufferPool(cfg.Pool.MaxPerClass)
	if err != nil {
		return nil, err
	}
	profiler, err := metrics.NewProfiler(cfg.Profiler.HistorySize)
	if err != nil {
		return nil, err
	}
	monitor, err := metrics.NewMonitor(cfg.Monitor, logger)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		config:    cfg,
		provider:  provider,
		cache:     hierarchy,
		limiter:   limiter,
		processor: processor,
		optimizer: optimizer,
		buffers:   buffers,
		profiler:  profiler,
		monitor:   monitor,
		logger:    logger.With(zap.String("component", "pipeline")),
	}
	p.batchSize.Store(int64(cfg.Batch.BatchSize))

	if o.registry != nil {
		p.collector = metrics.NewCollector("embedflow", o.registry, logger)
	}

	monitor.RegisterSource(provider.Name(), func() metrics.BackendMetrics {
		return metrics.BackendMetrics{
			DocsProcessed: p.docs.Load(),
			AvgLatencyMs:  p.profiler.AvgDurationMs(backendTrack),
			Errors:        p.errors.Load(),
		}
	})
	monitor.Start()

	p.logger.Info("pipeline initialized",
		zap.String("backend", provider.Name()),
		zap.Int("batch_size", cfg.Batch.BatchSize),
		zap.Int("tiers", len(tiers)),
	)
	return p, nil
}

func buildTiers(cfg *config.Config, logger *zap.Logger) ([]cache.Tier, error) {
	memory, err := cache.NewMemoryTier(cfg.Cache.MemoryCapacity)
	if err != nil {
		return nil, err
	}
	tiers := []cache.Tier{memory}

	if cfg.Cache.Disk.Enabled {
		store, err := cache.NewSQLiteStore(cfg.Cache.Disk.Path)
		if err != nil {
			return nil, err
		}
		disk, err := cache.NewDiskTier(store, cfg.Cache.Disk.MaxBytes)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, disk)
	}
	if cfg.Cache.Redis.Enabled {
		remote, err := cache.NewRedisTier(cfg.Cache.Redis.ToTierConfig(), logger)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, remote)
	}
	return tiers, nil
}

// EmbedDocuments embeds texts, serving cached items and batching the rest
// through the backend. Results match input order.
func (p *Pipeline) EmbedDocuments(ctx context.Context, texts []string) ([]types.Vector, error) {
	if p.closed.Load() {
		return nil, types.NewError(types.ErrPipelineClosed, "pipeline is closed")
	}
	return p.processor.ProcessAll(ctx, texts, int(p.batchSize.Load()), p.embedBatch)
}

// EmbedQuery embeds a single text.
func (p *Pipeline) EmbedQuery(ctx context.Context, text string) (types.Vector, error) {
	vectors, err := p.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// embedBatch handles one batch: cache probe, rate-limited backend call for
// the misses, write-back, positional reassembly.
func (p *Pipeline) embedBatch(ctx context.Context, texts []string, _ int) ([]types.Vector, error) {
	start := time.Now()
	results := make([]types.Vector, len(texts))
	keys := make([]string, len(texts))

	var missIdx []int
	for i, text := range texts {
		keys[i] = cache.Fingerprint(text)
		if value, tier, ok := p.cache.Get(ctx, keys[i]); ok {
			results[i] = value
			if p.collector != nil {
				p.collector.RecordCacheHit(tier)
			}
			continue
		}
		if p.collector != nil {
			p.collector.RecordCacheMiss("all")
		}
		missIdx = append(missIdx, i)
	}

	if len(missIdx) > 0 {
		missTexts := make([]string, len(missIdx))
		for j, i := range missIdx {
			missTexts[j] = texts[i]
		}

		if err := p.limiter.Acquire(ctx); err != nil {
			return nil, err
		}

		stop := p.profiler.Track(backendTrack)
		callStart := time.Now()
		vectors, err := p.provider.Embed(ctx, missTexts)
		stop()
		if err != nil {
			p.errors.Add(1)
			if p.collector != nil {
				p.collector.RecordBackendError(p.provider.Name())
			}
			return nil, types.BackendError(err)
		}
		if len(vectors) != len(missTexts) {
			p.errors.Add(1)
			return nil, types.BackendError(
				fmt.Errorf("backend returned %d vectors for %d texts", len(vectors), len(missTexts)))
		}
		if p.collector != nil {
			p.collector.RecordEmbedding(p.provider.Name(), len(vectors), time.Since(callStart))
		}

		if p.config.Cache.Normalize {
			if err := p.normalize(vectors); err != nil {
				return nil, err
			}
		}

		for j, i := range missIdx {
			results[i] = vectors[j]
			p.cache.Set(ctx, keys[i], vectors[j])
		}
	}

	p.docs.Add(int64(len(texts)))
	if p.collector != nil {
		p.collector.RecordBatch(len(texts), time.Since(start))
	}
	return results, nil
}

// normalize L2-normalizes vectors in place, staging the batch through a
// pooled buffer so repeated batches of one shape reuse the same allocation.
func (p *Pipeline) normalize(vectors []types.Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	cols := len(vectors[0])
	if cols == 0 {
		return nil
	}
	if p.collector != nil {
		p.collector.RecordPoolAcquire()
	}
	return p.buffers.WithBuffer(len(vectors), cols, func(buf *pool.Buffer) error {
		for i, v := range vectors {
			if len(v) != cols {
				return types.BackendError(
					fmt.Errorf("vector %d has %d dimensions, expected %d", i, len(v), cols))
			}
			row := buf.Row(i)
			copy(row, v)
			var sum float64
			for _, f := range row {
				sum += float64(f) * float64(f)
			}
			norm := math.Sqrt(sum)
			if norm == 0 {
				continue
			}
			for k := range row {
				row[k] = float32(float64(row[k]) / norm)
			}
			copy(v, row)
		}
		return nil
	})
}

// Calibrate probes the backend with samples and adopts the recommended batch
// size for subsequent EmbedDocuments calls.
func (p *Pipeline) Calibrate(ctx context.Context, samples []string) int {
	size := p.optimizer.OptimalBatchSize(ctx, p.provider, samples)
	p.batchSize.Store(int64(size))
	p.logger.Info("adopted calibrated batch size", zap.Int("batch_size", size))
	return size
}

// BatchSize returns the batch size currently in effect.
func (p *Pipeline) BatchSize() int {
	return int(p.batchSize.Load())
}

// Profiler exposes the per-call sample store.
func (p *Pipeline) Profiler() *metrics.Profiler { return p.profiler }

// Monitor exposes the background monitor for summaries and alert rules.
func (p *Pipeline) Monitor() *metrics.Monitor { return p.monitor }

// Report aggregates every component's statistics.
type Report struct {
	BatchSize     int                        `json:"batch_size"`
	DocsProcessed int64                      `json:"docs_processed"`
	BackendErrors int64                      `json:"backend_errors"`
	Cache         []cache.TierStats          `json:"cache"`
	RateLimit     ratelimit.Stats            `json:"rate_limit"`
	Batch         batch.Stats                `json:"batch"`
	Pool          map[string]pool.ClassStats `json:"pool"`
}

// Stats returns the combined statistics report.
func (p *Pipeline) Stats() Report {
	return Report{
		BatchSize:     p.BatchSize(),
		DocsProcessed: p.docs.Load(),
		BackendErrors: p.errors.Load(),
		Cache:         p.cache.Stats(),
		RateLimit:     p.limiter.Stats(),
		Batch:         p.processor.Stats(),
		Pool:          p.buffers.Stats(),
	}
}

// Close stops the monitor and releases cache resources. Idempotent.
func (p *Pipeline) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.monitor.Stop()
	return p.cache.Close()
}
