package cache

import (
	"context"
	"sync/atomic"

	"github.com/BaSui01/embedflow/types"
)

// Tier is one layer of the cache hierarchy. Implementations are safe for
// concurrent use and enforce their own capacity bound on every Set.
type Tier interface {
	// Name identifies the tier in stats and logs.
	Name() string

	// Get returns the cached vector for key, or found=false on a miss.
	// Storage failures are returned as errors; the hierarchy degrades them
	// to misses.
	Get(ctx context.Context, key string) (value types.Vector, found bool, err error)

	// Set stores the vector, evicting as needed to stay within the tier's
	// capacity bound. Eviction runs synchronously with the insert.
	Set(ctx context.Context, key string, value types.Vector) error

	// Stats returns the tier's counters.
	Stats() TierStats

	// Close releases tier resources.
	Close() error
}

// TierStats contains per-tier counters.
type TierStats struct {
	Name      string `json:"name"`
	Requests  int64  `json:"requests"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Evictions int64  `json:"evictions"`
	Entries   int64  `json:"entries"`
	SizeBytes int64  `json:"size_bytes"`
}

// HitRatio returns hits over requests.
func (s TierStats) HitRatio() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Requests)
}

// counters is the atomic counter set embedded by every tier.
type counters struct {
	requests  atomic.Int64
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

func (c *counters) hit() {
	c.requests.Add(1)
	c.hits.Add(1)
}

func (c *counters) miss() {
	c.requests.Add(1)
	c.misses.Add(1)
}
