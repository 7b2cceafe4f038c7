// Package pool provides reusable vector buffer allocation with bounded
// per-shape free lists.
package pool

import (
	"fmt"
	"sync"

	"github.com/BaSui01/embedflow/types"
)

// BufferPool reuses float32 matrix buffers across batches. Buffers are
// grouped into classes by shape; each class keeps at most MaxPerClass free
// buffers, beyond which released buffers are dropped for the GC.
type BufferPool struct {
	maxPerClass int

	mu      sync.Mutex
	classes map[shape]*class
}

type shape struct {
	rows int
	cols int
}

func (s shape) String() string {
	return fmt.Sprintf("%dx%d", s.rows, s.cols)
}

type class struct {
	free        []*Buffer
	allocations int64
	outstanding int64
}

// Buffer is a pooled matrix of rows x cols float32 values. Data is laid out
// row-major. A Buffer belongs to the caller between Acquire and Release.
type Buffer struct {
	Data []float32

	rows     int
	cols     int
	pool     *BufferPool
	released bool
}

// Rows returns the buffer's row count.
func (b *Buffer) Rows() int { return b.rows }

// Cols returns the buffer's column count.
func (b *Buffer) Cols() int { return b.cols }

// Row returns the i-th row as a slice aliasing the buffer.
func (b *Buffer) Row(i int) []float32 {
	return b.Data[i*b.cols : (i+1)*b.cols]
}

// NewBufferPool creates a pool keeping at most maxPerClass free buffers per
// distinct shape.
func NewBufferPool(maxPerClass int) (*BufferPool, error) {
	if maxPerClass <= 0 {
		return nil, types.ConfigError(fmt.Sprintf("pool max_per_class must be positive, got %d", maxPerClass))
	}
	return &BufferPool{
		maxPerClass: maxPerClass,
		classes:     make(map[shape]*class),
	}, nil
}

// Acquire returns a buffer of the requested shape, reusing a free one when
// available. Running out of free buffers is not an error: the pool degrades
// to direct allocation.
func (p *BufferPool) Acquire(rows, cols int) *Buffer {
	key := shape{rows: rows, cols: cols}

	p.mu.Lock()
	c := p.classes[key]
	if c == nil {
		c = &class{}
		p.classes[key] = c
	}
	c.outstanding++
	if n := len(c.free); n > 0 {
		buf := c.free[n-1]
		c.free[n-1] = nil
		c.free = c.free[:n-1]
		p.mu.Unlock()
		buf.released = false
		return buf
	}
	c.allocations++
	p.mu.Unlock()

	return &Buffer{
		Data: make([]float32, rows*cols),
		rows: rows,
		cols: cols,
		pool: p,
	}
}

// Release zeroes the buffer and returns it to its class's free list, unless
// the list is already at capacity, in which case the buffer is discarded.
// Releasing twice is a no-op.
func (b *Buffer) Release() {
	if b.pool == nil || b.released {
		return
	}
	b.released = true
	clear(b.Data)

	p := b.pool
	key := shape{rows: b.rows, cols: b.cols}

	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.classes[key]
	if c == nil {
		return
	}
	if c.outstanding > 0 {
		c.outstanding--
	}
	if len(c.free) < p.maxPerClass {
		c.free = append(c.free, b)
	}
}

// WithBuffer acquires a buffer for the duration of fn, guaranteeing release
// on every exit path.
func (p *BufferPool) WithBuffer(rows, cols int, fn func(*Buffer) error) error {
	buf := p.Acquire(rows, cols)
	defer buf.Release()
	return fn(buf)
}

// ClassStats describes one shape class.
type ClassStats struct {
	Shape       string `json:"shape"`
	Outstanding int64  `json:"outstanding"`
	Free        int    `json:"free"`
	Allocations int64  `json:"allocations"`
}

// Stats returns per-class statistics keyed by shape.
func (p *BufferPool) Stats() map[string]ClassStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]ClassStats, len(p.classes))
	for key, c := range p.classes {
		out[key.String()] = ClassStats{
			Shape:       key.String(),
			Outstanding: c.outstanding,
			Free:        len(c.free),
			Allocations: c.allocations,
		}
	}
	return out
}
