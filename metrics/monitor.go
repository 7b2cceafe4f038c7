package metrics

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/embedflow/types"
)

// MonitorConfig configures the background monitor.
type MonitorConfig struct {
	// CollectionInterval is the period between snapshots.
	CollectionInterval time.Duration `yaml:"collection_interval" json:"collection_interval"`

	// HistorySize bounds the retained snapshot ring.
	HistorySize int `yaml:"history_size" json:"history_size"`
}

// DefaultMonitorConfig returns sensible defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		CollectionInterval: 10 * time.Second,
		HistorySize:        360,
	}
}

// Validate reports configuration errors.
func (c MonitorConfig) Validate() error {
	if c.CollectionInterval <= 0 {
		return types.ConfigError(fmt.Sprintf("collection_interval must be positive, got %s", c.CollectionInterval))
	}
	if c.HistorySize <= 0 {
		return types.ConfigError(fmt.Sprintf("history_size must be positive, got %d", c.HistorySize))
	}
	return nil
}

// BackendMetrics is one backend's point-in-time state.
type BackendMetrics struct {
	DocsProcessed int64   `json:"docs_processed"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	Errors        int64   `json:"errors"`
}

// SystemMetrics is the process-level portion of a snapshot.
type SystemMetrics struct {
	Goroutines     int     `json:"goroutines"`
	HeapAllocBytes uint64  `json:"heap_alloc_bytes"`
	DocsProcessed  int64   `json:"docs_processed"`
	DocsPerMinute  float64 `json:"docs_per_minute"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
}

// Snapshot combines system and per-backend metrics at one instant.
type Snapshot struct {
	Timestamp time.Time                 `json:"timestamp"`
	System    SystemMetrics             `json:"system"`
	Backends  map[string]BackendMetrics `json:"backends"`
}

// Summary is the windowed aggregate returned by GetSummary.
type Summary struct {
	WindowSeconds float64                   `json:"window_seconds"`
	Samples       int                       `json:"samples"`
	System        SystemMetrics             `json:"system"`
	Backends      map[string]BackendMetrics `json:"backends"`
	Alerts        []Alert                   `json:"alerts,omitempty"`
}

// SourceFunc supplies one backend's current metrics.
type SourceFunc func() BackendMetrics

// AlertRule fires when a metric crosses a threshold. Value extracts the
// watched metric from a snapshot.
type AlertRule struct {
	Name      string
	Threshold float64
	Above     bool // fire when value > threshold; otherwise when value < threshold
	Cooldown  time.Duration
	Value     func(Snapshot) float64

	lastFired time.Time
}

// Alert is one fired rule evaluation.
type Alert struct {
	Rule      string    `json:"rule"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// Monitor snapshots registered sources on a fixed interval into a bounded
// ring and evaluates alert rules against each snapshot.
type Monitor struct {
	config MonitorConfig
	logger *zap.Logger

	mu        sync.Mutex
	sources   map[string]SourceFunc
	rules     []*AlertRule
	snapshots []Snapshot
	head      int
	full      bool
	onAlert   func(Alert)
	alerts    []Alert
	running   bool

	stop chan struct{}
	done chan struct{}
}

// NewMonitor creates a stopped Monitor; call Start to begin collection.
func NewMonitor(config MonitorConfig, logger *zap.Logger) (*Monitor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Monitor{
		config:    config,
		logger:    logger.With(zap.String("component", "monitor")),
		sources:   make(map[string]SourceFunc),
		snapshots: make([]Snapshot, 0, config.HistorySize),
	}, nil
}

// RegisterSource adds a named backend metrics source.
func (m *Monitor) RegisterSource(name string, fn SourceFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[name] = fn
}

// AddRule registers an alert rule.
func (m *Monitor) AddRule(rule *AlertRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule)
}

// OnAlert registers the alert callback. Invoked from the collection loop.
func (m *Monitor) OnAlert(fn func(Alert)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAlert = fn
}

// Start launches the background collection loop. Starting a running monitor
// is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.loop(m.stop, m.done)
	m.logger.Info("monitor started", zap.Duration("interval", m.config.CollectionInterval))
}

// Stop halts collection, returning only after the loop has ceased.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stop, done := m.stop, m.done
	m.mu.Unlock()

	close(stop)
	<-done
	m.logger.Info("monitor stopped")
}

func (m *Monitor) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.config.CollectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Collect()
		case <-stop:
			return
		}
	}
}

// Collect takes one snapshot immediately. The loop calls this on every tick;
// tests call it directly.
func (m *Monitor) Collect() Snapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	snap := Snapshot{
		Timestamp: time.Now(),
		System: SystemMetrics{
			Goroutines:     runtime.NumGoroutine(),
			HeapAllocBytes: memStats.HeapAlloc,
		},
		Backends: make(map[string]BackendMetrics),
	}

	m.mu.Lock()
	for name, fn := range m.sources {
		bm := fn()
		snap.Backends[name] = bm
		snap.System.DocsProcessed += bm.DocsProcessed
	}
	if n := len(snap.Backends); n > 0 {
		var total float64
		for _, bm := range snap.Backends {
			total += bm.AvgLatencyMs
		}
		snap.System.AvgLatencyMs = total / float64(n)
	}
	if prev, ok := m.previousLocked(); ok {
		elapsed := snap.Timestamp.Sub(prev.Timestamp).Minutes()
		if elapsed > 0 {
			snap.System.DocsPerMinute = float64(snap.System.DocsProcessed-prev.System.DocsProcessed) / elapsed
		}
	}
	m.pushLocked(snap)
	fired := m.evaluateLocked(snap)
	callback := m.onAlert
	m.mu.Unlock()

	for _, alert := range fired {
		m.logger.Warn("alert fired",
			zap.String("rule", alert.Rule),
			zap.Float64("value", alert.Value),
			zap.Float64("threshold", alert.Threshold),
		)
		if callback != nil {
			callback(alert)
		}
	}
	return snap
}

func (m *Monitor) previousLocked() (Snapshot, bool) {
	if len(m.snapshots) == 0 {
		return Snapshot{}, false
	}
	if m.full {
		return m.snapshots[(m.head+len(m.snapshots)-1)%len(m.snapshots)], true
	}
	return m.snapshots[len(m.snapshots)-1], true
}

func (m *Monitor) pushLocked(snap Snapshot) {
	if len(m.snapshots) < cap(m.snapshots) {
		m.snapshots = append(m.snapshots, snap)
		return
	}
	m.snapshots[m.head] = snap
	m.head = (m.head + 1) % len(m.snapshots)
	m.full = true
}

func (m *Monitor) evaluateLocked(snap Snapshot) []Alert {
	var fired []Alert
	for _, rule := range m.rules {
		if rule.Value == nil {
			continue
		}
		value := rule.Value(snap)
		crossed := (rule.Above && value > rule.Threshold) || (!rule.Above && value < rule.Threshold)
		if !crossed {
			continue
		}
		if rule.Cooldown > 0 && snap.Timestamp.Sub(rule.lastFired) < rule.Cooldown {
			continue
		}
		rule.lastFired = snap.Timestamp
		alert := Alert{
			Rule:      rule.Name,
			Value:     value,
			Threshold: rule.Threshold,
			Timestamp: snap.Timestamp,
		}
		m.alerts = append(m.alerts, alert)
		fired = append(fired, alert)
	}
	return fired
}

// GetSummary aggregates snapshots from the trailing window into a report with
// system and per-backend sections.
func (m *Monitor) GetSummary(window time.Duration) Summary {
	cutoff := time.Now().Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	summary := Summary{
		WindowSeconds: window.Seconds(),
		Backends:      make(map[string]BackendMetrics),
	}

	var inWindow []Snapshot
	for _, snap := range m.orderedLocked() {
		if snap.Timestamp.After(cutoff) {
			inWindow = append(inWindow, snap)
		}
	}
	summary.Samples = len(inWindow)
	if len(inWindow) == 0 {
		return summary
	}

	// System section: averages over the window, latest counters.
	var docsPerMin, latency float64
	for _, snap := range inWindow {
		docsPerMin += snap.System.DocsPerMinute
		latency += snap.System.AvgLatencyMs
	}
	latest := inWindow[len(inWindow)-1]
	summary.System = latest.System
	summary.System.DocsPerMinute = docsPerMin / float64(len(inWindow))
	summary.System.AvgLatencyMs = latency / float64(len(inWindow))

	// Backends section: latest state per backend.
	for name, bm := range latest.Backends {
		summary.Backends[name] = bm
	}

	for _, alert := range m.alerts {
		if alert.Timestamp.After(cutoff) {
			summary.Alerts = append(summary.Alerts, alert)
		}
	}
	return summary
}

func (m *Monitor) orderedLocked() []Snapshot {
	if !m.full {
		return m.snapshots
	}
	out := make([]Snapshot, 0, len(m.snapshots))
	out = append(out, m.snapshots[m.head:]...)
	out = append(out, m.snapshots[:m.head]...)
	return out
}
