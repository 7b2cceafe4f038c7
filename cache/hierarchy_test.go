package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/embedflow/types"
)

// brokenTier always fails, standing in for a tier with unavailable storage.
type brokenTier struct {
	counters
}

func (b *brokenTier) Name() string { return "broken" }

func (b *brokenTier) Get(context.Context, string) (types.Vector, bool, error) {
	return nil, false, errors.New("disk on fire")
}

func (b *brokenTier) Set(context.Context, string, types.Vector) error {
	return errors.New("disk on fire")
}

func (b *brokenTier) Stats() TierStats { return TierStats{Name: "broken"} }
func (b *brokenTier) Close() error     { return nil }

func newTwoTierHierarchy(t *testing.T) (*Hierarchy, *MemoryTier, *MemoryTier) {
	t.Helper()
	fast, err := NewMemoryTier(4)
	require.NoError(t, err)
	slow, err := NewMemoryTier(16)
	require.NoError(t, err)
	h, err := NewHierarchy(zap.NewNop(), fast, slow)
	require.NoError(t, err)
	return h, fast, slow
}

func TestNewHierarchy_RequiresTiers(t *testing.T) {
	_, err := NewHierarchy(zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, types.ErrConfigInvalid, types.GetErrorCode(err))
}

func TestHierarchy_WriteThrough(t *testing.T) {
	h, fast, slow := newTwoTierHierarchy(t)
	ctx := context.Background()

	h.Set(ctx, "k", vec(1, 2))

	_, found, _ := fast.Get(ctx, "k")
	assert.True(t, found, "write must reach the fast tier")
	_, found, _ = slow.Get(ctx, "k")
	assert.True(t, found, "write must reach the slow tier")
}

func TestHierarchy_PromotionOnSlowHit(t *testing.T) {
	h, fast, slow := newTwoTierHierarchy(t)
	ctx := context.Background()

	// Seed only the slow tier.
	require.NoError(t, slow.Set(ctx, "k", vec(3, 4)))

	value, tier, found := h.Get(ctx, "k")
	require.True(t, found)
	assert.Equal(t, vec(3, 4), value)
	assert.Equal(t, "memory", tier) // both tiers are memory tiers here

	// The hit must already be present in the fast tier when Get returns.
	got, found, _ := fast.Get(ctx, "k")
	require.True(t, found)
	assert.Equal(t, vec(3, 4), got)
}

func TestHierarchy_FullMissWritesNothing(t *testing.T) {
	h, fast, slow := newTwoTierHierarchy(t)
	ctx := context.Background()

	_, _, found := h.Get(ctx, "absent")
	assert.False(t, found)
	assert.Equal(t, 0, fast.Len())
	assert.Equal(t, 0, slow.Len())
}

func TestHierarchy_BrokenTierDegradesToMiss(t *testing.T) {
	slow, err := NewMemoryTier(4)
	require.NoError(t, err)
	h, err := NewHierarchy(zap.NewNop(), &brokenTier{}, slow)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, slow.Set(ctx, "k", vec(5)))

	// Get falls through the broken tier to the healthy one.
	value, _, found := h.Get(ctx, "k")
	require.True(t, found)
	assert.Equal(t, vec(5), value)

	// Set skips the broken tier without surfacing the failure.
	h.Set(ctx, "k2", vec(6))
	got, _, found := h.Get(ctx, "k2")
	require.True(t, found)
	assert.Equal(t, vec(6), got)
}

func TestHierarchy_RoundTripAfterSet(t *testing.T) {
	h, _, _ := newTwoTierHierarchy(t)
	ctx := context.Background()

	h.Set(ctx, "k", vec(9, 8, 7))
	value, _, found := h.Get(ctx, "k")
	require.True(t, found)
	assert.Equal(t, vec(9, 8, 7), value)
}

func TestHierarchy_Stats(t *testing.T) {
	h, _, _ := newTwoTierHierarchy(t)
	ctx := context.Background()

	h.Set(ctx, "k", vec(1))
	h.Get(ctx, "k")
	h.Get(ctx, "absent")

	stats := h.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, int64(1), stats[0].Hits)
	assert.Equal(t, int64(1), stats[0].Misses)
	// The fast-tier hit never reaches the slow tier; only the miss does.
	assert.Equal(t, int64(0), stats[1].Hits)
	assert.Equal(t, int64(1), stats[1].Misses)
}
