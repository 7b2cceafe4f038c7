package backend

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BaSui01/embedflow/types"
)

// Fake is a deterministic in-process Provider for tests and calibration
// dry-runs. Vectors are derived from a sha256 of the input text, so the same
// text always embeds to the same vector.
type Fake struct {
	name       string
	dimensions int
	latency    time.Duration
	perItem    time.Duration
	failFunc   func(texts []string) error

	calls atomic.Int64
	mu    sync.Mutex
	seen  [][]string
}

// FakeOption configures a Fake provider.
type FakeOption func(*Fake)

// WithLatency adds a fixed delay per Embed call.
func WithLatency(d time.Duration) FakeOption {
	return func(f *Fake) { f.latency = d }
}

// WithPerItemLatency adds a delay proportional to batch size.
func WithPerItemLatency(d time.Duration) FakeOption {
	return func(f *Fake) { f.perItem = d }
}

// WithFailure injects an error decision per call.
func WithFailure(fn func(texts []string) error) FakeOption {
	return func(f *Fake) { f.failFunc = fn }
}

// NewFake creates a Fake provider producing vectors of the given length.
func NewFake(dimensions int, opts ...FakeOption) *Fake {
	f := &Fake{name: "fake", dimensions: dimensions}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Embed implements Provider.
func (f *Fake) Embed(ctx context.Context, texts []string) ([]types.Vector, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, append([]string(nil), texts...))
	f.mu.Unlock()

	if f.failFunc != nil {
		if err := f.failFunc(texts); err != nil {
			return nil, err
		}
	}

	delay := f.latency + time.Duration(len(texts))*f.perItem
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	out := make([]types.Vector, len(texts))
	for i, text := range texts {
		out[i] = f.vectorFor(text)
	}
	return out, nil
}

func (f *Fake) vectorFor(text string) types.Vector {
	sum := sha256.Sum256([]byte(text))
	v := make(types.Vector, f.dimensions)
	for i := range v {
		word := binary.LittleEndian.Uint32(sum[(i*4)%28:])
		v[i] = float32(word%2000)/1000.0 - 1.0
	}
	return v
}

// Name implements Provider.
func (f *Fake) Name() string { return f.name }

// Dimensions implements Provider.
func (f *Fake) Dimensions() int { return f.dimensions }

// MaxBatchSize implements Provider.
func (f *Fake) MaxBatchSize() int { return 0 }

// Calls returns the number of Embed invocations.
func (f *Fake) Calls() int64 { return f.calls.Load() }

// Batches returns a copy of every batch the fake has seen, in call order.
func (f *Fake) Batches() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.seen))
	copy(out, f.seen)
	return out
}
