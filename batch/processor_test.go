package batch

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/BaSui01/embedflow/testutil"
	"github.com/BaSui01/embedflow/types"
)

func doubler(_ context.Context, items []int, _ int) ([]int, error) {
	out := make([]int, len(items))
	for i, v := range items {
		out[i] = v * 2
	}
	return out, nil
}

func newTestProcessor(t *testing.T, cfg Config) *Processor[int, int] {
	t.Helper()
	p, err := NewProcessor[int, int](cfg, zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "defaults", config: DefaultConfig()},
		{name: "zero batch size", config: Config{BatchSize: 0, MaxConcurrentBatches: 1}, wantErr: true},
		{name: "zero concurrency", config: Config{BatchSize: 1, MaxConcurrentBatches: 0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, types.ErrConfigInvalid, types.GetErrorCode(err))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestPartition(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	jobs := Partition(items, 2)
	require.Len(t, jobs, 3)
	assert.Equal(t, 0, jobs[0].Offset)
	assert.Equal(t, []string{"a", "b"}, jobs[0].Items)
	assert.Equal(t, 2, jobs[1].Offset)
	assert.Equal(t, 4, jobs[2].Offset)
	assert.Equal(t, []string{"e"}, jobs[2].Items)
	assert.NotEmpty(t, jobs[0].ID)

	assert.Nil(t, Partition([]string{}, 2))
}

func TestProcessAll_TenItemsDoubled(t *testing.T) {
	p := newTestProcessor(t, Config{BatchSize: 10, MaxConcurrentBatches: 4})
	ctx := testutil.TestContext(t)

	items := make([]int, 10)
	for i := range items {
		items[i] = i
	}

	results, err := p.ProcessAll(ctx, items, 10, doubler)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 4, 6, 8, 10, 12, 14, 16, 18}, results)
}

func TestProcessAll_OrderIndependentOfCompletion(t *testing.T) {
	p := newTestProcessor(t, Config{BatchSize: 3, MaxConcurrentBatches: 4})
	ctx := testutil.TestContext(t)

	slowDoubler := func(ctx context.Context, items []int, offset int) ([]int, error) {
		// Random delays shuffle batch completion order.
		time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
		return doubler(ctx, items, offset)
	}

	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}

	results, err := p.ProcessAll(ctx, items, 3, slowDoubler)
	require.NoError(t, err)
	require.Len(t, results, len(items))
	for i, v := range results {
		assert.Equal(t, i*2, v, "index %d", i)
	}
}

func TestProcessAll_ConcurrencyBound(t *testing.T) {
	p := newTestProcessor(t, Config{BatchSize: 1, MaxConcurrentBatches: 2})
	ctx := testutil.TestContext(t)

	var inFlight, peak atomic.Int32
	fn := func(_ context.Context, items []int, _ int) ([]int, error) {
		n := inFlight.Add(1)
		for {
			prev := peak.Load()
			if n <= prev || peak.CompareAndSwap(prev, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return items, nil
	}

	_, err := p.ProcessAll(ctx, []int{1, 2, 3, 4, 5, 6}, 1, fn)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestProcessAll_FailFast(t *testing.T) {
	p := newTestProcessor(t, Config{BatchSize: 1, MaxConcurrentBatches: 2})
	ctx := testutil.TestContext(t)

	boom := errors.New("boom")
	var cancelled atomic.Int32
	fn := func(ctx context.Context, items []int, offset int) ([]int, error) {
		if offset == 0 {
			return nil, boom
		}
		select {
		case <-ctx.Done():
			cancelled.Add(1)
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
			return items, nil
		}
	}

	start := time.Now()
	_, err := p.ProcessAll(ctx, []int{1, 2, 3, 4, 5, 6, 7, 8}, 1, fn)
	require.ErrorIs(t, err, boom)
	// Remaining batches observe cancellation instead of running to completion.
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestProcessAll_ResultCountMismatch(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig())
	ctx := testutil.TestContext(t)

	fn := func(_ context.Context, items []int, _ int) ([]int, error) {
		return items[:len(items)-1], nil
	}

	_, err := p.ProcessAll(ctx, []int{1, 2, 3}, 3, fn)
	require.Error(t, err)
}

func TestProcessAll_EmptyInput(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig())
	ctx := testutil.TestContext(t)

	results, err := p.ProcessAll(ctx, nil, 4, doubler)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestProcessAll_NilFunc(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig())
	_, err := p.ProcessAll(testutil.TestContext(t), []int{1}, 1, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrConfigInvalid, types.GetErrorCode(err))
}

// Result ordering holds for every input length, batch size, and concurrency.
func TestProcessAll_OrderingProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 64).Draw(rt, "items")
		batchSize := rapid.IntRange(1, 16).Draw(rt, "batch_size")
		workers := rapid.IntRange(1, 8).Draw(rt, "workers")

		p, err := NewProcessor[int, int](Config{
			BatchSize:            batchSize,
			MaxConcurrentBatches: workers,
		}, zap.NewNop())
		require.NoError(rt, err)

		items := make([]int, n)
		for i := range items {
			items[i] = i
		}

		results, err := p.ProcessAll(context.Background(), items, batchSize, doubler)
		require.NoError(rt, err)
		require.Len(rt, results, n)
		for i, v := range results {
			if v != i*2 {
				rt.Fatalf("results[%d] = %d, want %d", i, v, i*2)
			}
		}
	})
}

func TestProcessor_Stats(t *testing.T) {
	p := newTestProcessor(t, Config{BatchSize: 2, MaxConcurrentBatches: 2})
	ctx := testutil.TestContext(t)

	_, err := p.ProcessAll(ctx, []int{1, 2, 3, 4, 5}, 2, doubler)
	require.NoError(t, err)

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Runs)
	assert.Equal(t, int64(3), stats.Batches)
	assert.Equal(t, int64(5), stats.Items)
	assert.Equal(t, int64(0), stats.Failed)
}
