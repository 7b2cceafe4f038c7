// Package tuning searches for the backend batch size that best satisfies a
// latency or throughput objective, using live calibration trials.
package tuning

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/embedflow/backend"
	"github.com/BaSui01/embedflow/types"
)

// Strategy selects how calibration trials are scored.
type Strategy string

const (
	// StrategyThroughput maximizes items per second.
	StrategyThroughput Strategy = "throughput"
	// StrategyLatency maximizes batch size under the latency ceiling.
	StrategyLatency Strategy = "latency"
	// StrategyBalanced maximizes throughput among sizes under the ceiling.
	StrategyBalanced Strategy = "balanced"
)

// Validate reports unknown strategies.
func (s Strategy) Validate() error {
	switch s {
	case StrategyThroughput, StrategyLatency, StrategyBalanced:
		return nil
	}
	return types.ConfigError(fmt.Sprintf("unknown tuning strategy %q", s))
}

// hardCap bounds every recommendation regardless of configuration.
const hardCap = 1000

// Config configures an Optimizer.
type Config struct {
	Strategy Strategy `yaml:"strategy" json:"strategy"`

	// TargetLatency is the per-batch latency ceiling. Probing stops once a
	// trial exceeds it.
	TargetLatency time.Duration `yaml:"target_latency" json:"target_latency"`

	// MaxBatchSize caps candidate sizes, itself capped at 1000.
	MaxBatchSize int `yaml:"max_batch_size" json:"max_batch_size"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Strategy:      StrategyBalanced,
		TargetLatency: 500 * time.Millisecond,
		MaxBatchSize:  hardCap,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if err := c.Strategy.Validate(); err != nil {
		return err
	}
	if c.TargetLatency <= 0 {
		return types.ConfigError(fmt.Sprintf("target_latency must be positive, got %s", c.TargetLatency))
	}
	if c.MaxBatchSize <= 0 {
		return types.ConfigError(fmt.Sprintf("max_batch_size must be positive, got %d", c.MaxBatchSize))
	}
	return nil
}

// Trial is one timed calibration probe. Trials are discarded once a size is
// chosen.
type Trial struct {
	BatchSize  int
	Latency    time.Duration
	Throughput float64 // items per second
}

// Optimizer runs calibration trials against a live backend and picks a batch
// size in [1, 1000].
type Optimizer struct {
	config Config
	logger *zap.Logger
}

// NewOptimizer creates an Optimizer.
func NewOptimizer(config Config, logger *zap.Logger) (*Optimizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Optimizer{
		config: config,
		logger: logger.With(zap.String("component", "tuning")),
	}, nil
}

// OptimalBatchSize probes provider at geometrically increasing batch sizes
// (1, 2, 4, ...) built from samples, and scores the trials per the configured
// strategy. A failing trial is discarded and probing continues; if every
// trial fails the safe default of 1 is returned.
func (o *Optimizer) OptimalBatchSize(ctx context.Context, provider backend.Provider, samples []string) int {
	if len(samples) == 0 {
		return 1
	}

	limit := o.config.MaxBatchSize
	if limit > hardCap {
		limit = hardCap
	}
	if max := provider.MaxBatchSize(); max > 0 && max < limit {
		limit = max
	}

	var trials []Trial
	for size := 1; size <= limit; size *= 2 {
		trial, err := o.runTrial(ctx, provider, samples, size)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			o.logger.Warn("calibration trial failed, discarding",
				zap.Int("batch_size", size),
				zap.Error(err),
			)
			continue
		}
		trials = append(trials, trial)
		o.logger.Debug("calibration trial",
			zap.Int("batch_size", size),
			zap.Duration("latency", trial.Latency),
			zap.Float64("throughput", trial.Throughput),
		)
		// Latency past the ceiling only grows with size; stop probing.
		if trial.Latency > o.config.TargetLatency {
			break
		}
	}

	if len(trials) == 0 {
		o.logger.Warn("all calibration trials failed, using batch size 1")
		return 1
	}

	chosen := o.config.Strategy.choose(trials, o.config.TargetLatency)
	o.logger.Info("batch size calibrated",
		zap.String("strategy", string(o.config.Strategy)),
		zap.Int("batch_size", chosen),
		zap.Int("trials", len(trials)),
	)
	return chosen
}

func (o *Optimizer) runTrial(ctx context.Context, provider backend.Provider, samples []string, size int) (Trial, error) {
	texts := make([]string, size)
	for i := range texts {
		texts[i] = samples[i%len(samples)]
	}

	start := time.Now()
	if _, err := provider.Embed(ctx, texts); err != nil {
		return Trial{}, err
	}
	latency := time.Since(start)
	if latency <= 0 {
		latency = time.Microsecond
	}

	return Trial{
		BatchSize:  size,
		Latency:    latency,
		Throughput: float64(size) / latency.Seconds(),
	}, nil
}

// choose applies the variant's scoring rule to a non-empty trial set.
func (s Strategy) choose(trials []Trial, target time.Duration) int {
	switch s {
	case StrategyLatency:
		return chooseLatency(trials, target)
	case StrategyThroughput:
		return chooseThroughput(trials, target)
	default:
		return chooseBalanced(trials, target)
	}
}

// chooseLatency picks the largest size whose latency stays under the ceiling,
// falling back to the fastest trial when none does.
func chooseLatency(trials []Trial, target time.Duration) int {
	best := 0
	for _, t := range trials {
		if t.Latency <= target && t.BatchSize > best {
			best = t.BatchSize
		}
	}
	if best == 0 {
		return fastest(trials)
	}
	return best
}

// chooseThroughput picks the trial maximizing throughput, preferring the
// larger size on ties. The result is floored at the latency rule's pick so
// the throughput objective never recommends less batching than the latency
// objective would.
func chooseThroughput(trials []Trial, target time.Duration) int {
	best := trials[0]
	for _, t := range trials[1:] {
		if t.Throughput > best.Throughput ||
			(t.Throughput == best.Throughput && t.BatchSize > best.BatchSize) {
			best = t
		}
	}
	if floor := chooseLatency(trials, target); floor > best.BatchSize {
		return floor
	}
	return best.BatchSize
}

// chooseBalanced maximizes throughput among trials under the ceiling, falling
// back to the fastest trial when none qualifies.
func chooseBalanced(trials []Trial, target time.Duration) int {
	best := Trial{}
	for _, t := range trials {
		if t.Latency > target {
			continue
		}
		if t.Throughput > best.Throughput ||
			(t.Throughput == best.Throughput && t.BatchSize > best.BatchSize) {
			best = t
		}
	}
	if best.BatchSize == 0 {
		return fastest(trials)
	}
	return best.BatchSize
}

func fastest(trials []Trial) int {
	best := trials[0]
	for _, t := range trials[1:] {
		if t.Latency < best.Latency {
			best = t
		}
	}
	return best.BatchSize
}
