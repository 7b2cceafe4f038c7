// Package batch runs a work list as contiguous batches under bounded
// concurrency, reassembling results in input order.
package batch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/embedflow/types"
)

// Config configures a Processor.
type Config struct {
	// BatchSize is the number of items per batch; the final batch may be
	// smaller.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// MaxConcurrentBatches bounds batches in flight simultaneously.
	MaxConcurrentBatches int `yaml:"max_concurrent_batches" json:"max_concurrent_batches"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:            32,
		MaxConcurrentBatches: 4,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return types.ConfigError(fmt.Sprintf("batch_size must be positive, got %d", c.BatchSize))
	}
	if c.MaxConcurrentBatches <= 0 {
		return types.ConfigError(fmt.Sprintf("max_concurrent_batches must be positive, got %d", c.MaxConcurrentBatches))
	}
	return nil
}

// Job is one dispatched batch: a contiguous slice of the input and the offset
// where its results land in the output. Jobs are immutable once formed.
type Job[I any] struct {
	ID     string
	Offset int
	Items  []I
}

// Partition splits items into contiguous jobs of batchSize.
func Partition[I any](items []I, batchSize int) []Job[I] {
	if batchSize <= 0 || len(items) == 0 {
		return nil
	}
	jobs := make([]Job[I], 0, (len(items)+batchSize-1)/batchSize)
	for offset := 0; offset < len(items); offset += batchSize {
		end := offset + batchSize
		if end > len(items) {
			end = len(items)
		}
		jobs = append(jobs, Job[I]{
			ID:     uuid.NewString(),
			Offset: offset,
			Items:  items[offset:end],
		})
	}
	return jobs
}

// Func processes one batch. offset is the batch's position in the original
// input; the returned slice must have one result per item.
type Func[I, O any] func(ctx context.Context, items []I, offset int) ([]O, error)

// Processor dispatches batches with bounded concurrency. Failure policy is
// fail-fast: the first failing batch cancels the shared context, in-flight
// batches wind down at their next cancellation point, and ProcessAll returns
// the first error with no partial results.
type Processor[I, O any] struct {
	config Config
	logger *zap.Logger

	// Metrics
	runs      atomic.Int64
	batches   atomic.Int64
	items     atomic.Int64
	failed    atomic.Int64
	busyNanos atomic.Int64
}

// NewProcessor creates a Processor.
func NewProcessor[I, O any](config Config, logger *zap.Logger) (*Processor[I, O], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Processor[I, O]{
		config: config,
		logger: logger.With(zap.String("component", "batch")),
	}, nil
}

// ProcessAll runs items through fn in batches of batchSize and returns
// results in input order: results[i] corresponds to items[i] regardless of
// which batch produced it or when that batch completed. A non-positive
// batchSize falls back to the configured one.
func (p *Processor[I, O]) ProcessAll(ctx context.Context, items []I, batchSize int, fn Func[I, O]) ([]O, error) {
	if fn == nil {
		return nil, types.ConfigError("batch function must not be nil")
	}
	if batchSize <= 0 {
		batchSize = p.config.BatchSize
	}
	if len(items) == 0 {
		return []O{}, nil
	}

	p.runs.Add(1)
	start := time.Now()

	jobs := Partition(items, batchSize)
	results := make([]O, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.MaxConcurrentBatches)

	for _, job := range jobs {
		job := job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := fn(gctx, job.Items, job.Offset)
			if err != nil {
				p.failed.Add(1)
				p.logger.Debug("batch failed",
					zap.String("job_id", job.ID),
					zap.Int("offset", job.Offset),
					zap.Int("size", len(job.Items)),
					zap.Error(err),
				)
				return err
			}
			if len(out) != len(job.Items) {
				p.failed.Add(1)
				return fmt.Errorf("batch at offset %d returned %d results for %d items",
					job.Offset, len(out), len(job.Items))
			}
			copy(results[job.Offset:], out)
			p.batches.Add(1)
			p.items.Add(int64(len(job.Items)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	p.busyNanos.Add(int64(time.Since(start)))
	return results, nil
}

// Stats returns processor statistics.
func (p *Processor[I, O]) Stats() Stats {
	return Stats{
		Runs:      p.runs.Load(),
		Batches:   p.batches.Load(),
		Items:     p.items.Load(),
		Failed:    p.failed.Load(),
		BusyMs:    p.busyNanos.Load() / 1e6,
		BatchSize: p.config.BatchSize,
	}
}

// Stats contains processor statistics.
type Stats struct {
	Runs      int64 `json:"runs"`
	Batches   int64 `json:"batches"`
	Items     int64 `json:"items"`
	Failed    int64 `json:"failed"`
	BusyMs    int64 `json:"busy_ms"`
	BatchSize int   `json:"batch_size"`
}
