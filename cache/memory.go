package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/BaSui01/embedflow/types"
)

// MemoryTier is a strict LRU cache bounded by entry count. Both Get and Set
// refresh recency; inserting into a full tier evicts the least-recently-used
// entry first. Entries inserted at the same instant evict in insertion order,
// which the list order makes implicit.
type MemoryTier struct {
	capacity int

	mu      sync.Mutex
	order   *list.List // front = most recently used
	entries map[string]*list.Element

	counters
}

type memoryEntry struct {
	key   string
	value types.Vector
}

// NewMemoryTier creates a memory tier holding at most capacity entries.
func NewMemoryTier(capacity int) (*MemoryTier, error) {
	if capacity <= 0 {
		return nil, types.ConfigError(fmt.Sprintf("memory tier capacity must be positive, got %d", capacity))
	}
	return &MemoryTier{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}, nil
}

// Name implements Tier.
func (t *MemoryTier) Name() string { return "memory" }

// Get implements Tier.
func (t *MemoryTier) Get(_ context.Context, key string) (types.Vector, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	elem, ok := t.entries[key]
	if !ok {
		t.miss()
		return nil, false, nil
	}
	t.order.MoveToFront(elem)
	t.hit()
	return elem.Value.(*memoryEntry).value, true, nil
}

// Set implements Tier.
func (t *MemoryTier) Set(_ context.Context, key string, value types.Vector) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.requests.Add(1)

	if elem, ok := t.entries[key]; ok {
		elem.Value.(*memoryEntry).value = value
		t.order.MoveToFront(elem)
		return nil
	}

	// Evict before inserting so the bound never overshoots.
	for t.order.Len() >= t.capacity {
		oldest := t.order.Back()
		if oldest == nil {
			break
		}
		t.order.Remove(oldest)
		delete(t.entries, oldest.Value.(*memoryEntry).key)
		t.evictions.Add(1)
	}

	t.entries[key] = t.order.PushFront(&memoryEntry{key: key, value: value})
	return nil
}

// Len returns the current entry count.
func (t *MemoryTier) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.order.Len()
}

// Stats implements Tier.
func (t *MemoryTier) Stats() TierStats {
	t.mu.Lock()
	entries := int64(t.order.Len())
	var size int64
	for elem := t.order.Front(); elem != nil; elem = elem.Next() {
		size += types.VectorBytes(elem.Value.(*memoryEntry).value)
	}
	t.mu.Unlock()

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
func (t *MemoryTier) Close() error { return nil }
