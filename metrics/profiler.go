// Package metrics provides call profiling, background monitoring, and
// prometheus export for the embedding pipeline.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/embedflow/types"
)

// Sample is one recorded timing, immutable once recorded.
type Sample struct {
	Name        string    `json:"name"`
	DurationMs  float64   `json:"duration_ms"`
	MemoryBytes int64     `json:"memory_bytes,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Profiler records per-call timings into a bounded ring per name. It replaces
// transparent call interception with explicit scoped timing: callers wrap the
// timed region with Track/stop.
type Profiler struct {
	capacity int

	mu    sync.Mutex
	rings map[string]*sampleRing
}

type sampleRing struct {
	samples []Sample
	head    int
	full    bool
}

func (r *sampleRing) push(s Sample) {
	if len(r.samples) < cap(r.samples) {
		r.samples = append(r.samples, s)
		return
	}
	r.samples[r.head] = s
	r.head = (r.head + 1) % len(r.samples)
	r.full = true
}

// oldestFirst returns the retained samples in recording order.
func (r *sampleRing) oldestFirst() []Sample {
	out := make([]Sample, 0, len(r.samples))
	if r.full {
		out = append(out, r.samples[r.head:]...)
		out = append(out, r.samples[:r.head]...)
		return out
	}
	return append(out, r.samples...)
}

// NewProfiler creates a Profiler retaining up to historySize samples per name.
func NewProfiler(historySize int) (*Profiler, error) {
	if historySize <= 0 {
		return nil, types.ConfigError(fmt.Sprintf("profiler history_size must be positive, got %d", historySize))
	}
	return &Profiler{
		capacity: historySize,
		rings:    make(map[string]*sampleRing),
	}, nil
}

// Track starts timing the named region; the returned stop function records
// the sample. Call it exactly once, typically via defer.
func (p *Profiler) Track(name string) func() {
	start := time.Now()
	return func() {
		p.Record(Sample{
			Name:       name,
			DurationMs: float64(time.Since(start)) / float64(time.Millisecond),
			Timestamp:  start,
		})
	}
}

// Record appends a sample to its name's ring, evicting the oldest when full.
func (p *Profiler) Record(s Sample) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ring := p.rings[s.Name]
	if ring == nil {
		ring = &sampleRing{samples: make([]Sample, 0, p.capacity)}
		p.rings[s.Name] = ring
	}
	ring.push(s)
}

// GetMetrics returns all retained samples for name, oldest first.
func (p *Profiler) GetMetrics(name string) []Sample {
	p.mu.Lock()
	defer p.mu.Unlock()

	ring := p.rings[name]
	if ring == nil {
		return nil
	}
	return ring.oldestFirst()
}

// Names returns every profiled name.
func (p *Profiler) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(p.rings))
	for name := range p.rings {
		names = append(names, name)
	}
	return names
}

// AvgDurationMs returns the mean duration over the retained samples for name.
func (p *Profiler) AvgDurationMs(name string) float64 {
	samples := p.GetMetrics(name)
	if len(samples) == 0 {
		return 0
	}
	var total float64
	for _, s := range samples {
		total += s.DurationMs
	}
	return total / float64(len(samples))
}
