package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/BaSui01/embedflow/types"
)

// DiskTier is a persistent tier bounded by total stored bytes. Eviction is
// least-recently-used over the store's on-disk access metadata, run
// synchronously before each insert until the new entry fits.
type DiskTier struct {
	store    BlobStore
	maxBytes int64

	// Serializes the evict-then-write sequence so concurrent Sets never
	// overshoot the byte bound.
	mu sync.Mutex

	counters
}

// NewDiskTier creates a disk tier over store, bounded to maxBytes.
func NewDiskTier(store BlobStore, maxBytes int64) (*DiskTier, error) {
	if maxBytes <= 0 {
		return nil, types.ConfigError(fmt.Sprintf("disk tier max_bytes must be positive, got %d", maxBytes))
	}
	return &DiskTier{store: store, maxBytes: maxBytes}, nil
}

// Name implements Tier.
func (t *DiskTier) Name() string { return "disk" }

// Get implements Tier.
func (t *DiskTier) Get(ctx context.Context, key string) (types.Vector, bool, error) {
	blob, found, err := t.store.Read(ctx, key)
	if err != nil {
		t.miss()
		return nil, false, types.StorageError(t.Name(), err)
	}
	if !found {
		t.miss()
		return nil, false, nil
	}
	t.hit()
	return types.DecodeVector(blob), true, nil
}

// Set implements Tier.
func (t *DiskTier) Set(ctx context.Context, key string, value types.Vector) error {
	blob := types.EncodeVector(value)
	if int64(len(blob)) > t.maxBytes {
		return types.StorageError(t.Name(),
			fmt.Errorf("entry of %d bytes exceeds tier capacity %d", len(blob), t.maxBytes))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.requests.Add(1)

	for {
		size, err := t.store.SizeBytes(ctx)
		if err != nil {
			return types.StorageError(t.Name(), err)
		}
		if size+int64(len(blob)) <= t.maxBytes {
			break
		}
		freed, err := t.store.EvictOne(ctx)
		if err != nil {
			return types.StorageError(t.Name(), err)
		}
		if freed == 0 {
			break
		}
		t.evictions.Add(1)
	}

	if err := t.store.Write(ctx, key, blob); err != nil {
		return types.StorageError(t.Name(), err)
	}
	return nil
}

// Stats implements Tier.
func (t *DiskTier) Stats() TierStats {
	ctx := context.Background()
	entries, _ := t.store.Entries(ctx)
	size, _ := t.store.SizeBytes(ctx)
	return TierStats{
		Name:      t.Name(),
		Requests:  t.requests.Load(),
		Hits:      t.hits.Load(),
		Misses:    t.misses.Load(),
		Evictions: t.evictions.Load(),
		Entries:   entries,
		SizeBytes: size,
	}
}

// Close implements Tier.
func (t *DiskTier) Close() error { return t.store.Close() }
