package cache

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/embedflow/types"
)

// Hierarchy chains tiers ordered fastest to slowest. Get probes in order and
// promotes slower-tier hits into every faster tier before returning; Set
// writes through all tiers. Tier storage failures degrade to misses on reads
// and are logged and skipped on writes, never surfaced to the caller.
type Hierarchy struct {
	tiers  []Tier
	logger *zap.Logger
}

// NewHierarchy creates a hierarchy over tiers, fastest first.
func NewHierarchy(logger *zap.Logger, tiers ...Tier) (*Hierarchy, error) {
	if len(tiers) == 0 {
		return nil, types.ConfigError("cache hierarchy requires at least one tier")
	}
	return &Hierarchy{
		tiers:  tiers,
		logger: logger.With(zap.String("component", "cache")),
	}, nil
}

// Get returns the cached vector for key and the name of the tier that served
// it, or found=false on a full miss. A full miss performs no writes.
func (h *Hierarchy) Get(ctx context.Context, key string) (value types.Vector, tier string, found bool) {
	for i, t := range h.tiers {
		value, ok, err := t.Get(ctx, key)
		if err != nil {
			h.logger.Warn("tier read failed, treating as miss",
				zap.String("tier", t.Name()),
				zap.Error(err),
			)
			continue
		}
		if !ok {
			continue
		}
		h.promote(ctx, key, value, i)
		return value, t.Name(), true
	}
	return nil, "", false
}

// promote copies a hit at tier index into every faster tier. Runs before the
// triggering Get returns.
func (h *Hierarchy) promote(ctx context.Context, key string, value types.Vector, index int) {
	for j := 0; j < index; j++ {
		if err := h.tiers[j].Set(ctx, key, value); err != nil {
			h.logger.Warn("tier promotion failed",
				zap.String("tier", h.tiers[j].Name()),
				zap.Error(err),
			)
		}
	}
}

// Set writes the vector through every tier synchronously.
func (h *Hierarchy) Set(ctx context.Context, key string, value types.Vector) {
	for _, tier := range h.tiers {
		if err := tier.Set(ctx, key, value); err != nil {
			h.logger.Warn("tier write failed, skipping",
				zap.String("tier", tier.Name()),
				zap.Error(err),
			)
		}
	}
}

// Stats returns per-tier counters, fastest tier first.
func (h *Hierarchy) Stats() []TierStats {
	out := make([]TierStats, len(h.tiers))
	for i, tier := range h.tiers {
		out[i] = tier.Stats()
	}
	return out
}

// Close closes every tier, returning the first error observed.
func (h *Hierarchy) Close() error {
	var first error
	for _, tier := range h.tiers {
		if err := tier.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
