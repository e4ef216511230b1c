package observability

import (
	"sync"
	"time"
)

// OpSnapshot is the exported view of one operation's counters.
type OpSnapshot struct {
	Count         int64   `json:"count"`
	Errors        int64   `json:"errors"`
	InFlight      int64   `json:"in_flight"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
	LastLatencyMs float64 `json:"last_latency_ms"`
}

// Snapshot is the exported view of all metrics.
type Snapshot struct {
	UptimeSec     int64                 `json:"uptime_sec"`
	TotalRequests int64                 `json:"total_requests"`
	TotalErrors   int64                 `json:"total_errors"`
	InFlight      int64                 `json:"in_flight"`
	SendWaits     int64                 `json:"send_waits"`
	SendWaitMs    int64                 `json:"send_wait_ms"`
	ShutdownAt    *time.Time            `json:"shutdown_at,omitempty"`
	Operations    map[string]OpSnapshot `json:"operations"`
}

type opStats struct {
	count        int64
	errors       int64
	inFlight     int64
	totalLatency time.Duration
	maxLatency   time.Duration
	lastLatency  time.Duration
}

// Metrics tracks per-operation counters: update handling by event kind,
// gateway calls and reconciliations.
type Metrics struct {
	mu         sync.Mutex
	start      time.Time
	operations map[string]*opStats
	sendWaits  int64
	sendWait   time.Duration
	shutdownAt time.Time
}

// CallSpan measures a single in-flight operation.
type CallSpan struct {
	metrics *Metrics
	op      string
	start   time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{
		start:      time.Now(),
		operations: make(map[string]*opStats),
	}
}

// Start opens a span for the named operation.
func (m *Metrics) Start(op string) *CallSpan {
	if m == nil {
		return &CallSpan{}
	}
	m.mu.Lock()
	stats := m.ensureOp(op)
	stats.inFlight++
	m.mu.Unlock()
	return &CallSpan{
		metrics: m,
		op:      op,
		start:   time.Now(),
	}
}

// End closes the span, recording latency and whether the operation failed.
func (s *CallSpan) End(err error) {
	if s == nil || s.metrics == nil {
		return
	}
	dur := time.Since(s.start)
	s.metrics.finish(s.op, dur, err != nil)
}

// AddSendWait accounts time spent waiting on the outbound send throttle.
func (m *Metrics) AddSendWait(d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.mu.Lock()
	m.sendWaits++
	m.sendWait += d
	m.mu.Unlock()
}

// MarkShutdown records that graceful shutdown began.
func (m *Metrics) MarkShutdown() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.shutdownAt = time.Now()
	m.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	snap := Snapshot{
		UptimeSec:  int64(now.Sub(m.start).Seconds()),
		Operations: make(map[string]OpSnapshot),
		SendWaits:  m.sendWaits,
		SendWaitMs: int64(m.sendWait / time.Millisecond),
	}

	for op, stats := range m.operations {
		avg := 0.0
		if stats.count > 0 {
			avg = float64(stats.totalLatency.Milliseconds()) / float64(stats.count)
		}
		snap.Operations[op] = OpSnapshot{
			Count:         stats.count,
			Errors:        stats.errors,
			InFlight:      stats.inFlight,
			AvgLatencyMs:  avg,
			MaxLatencyMs:  float64(stats.maxLatency.Milliseconds()),
			LastLatencyMs: float64(stats.lastLatency.Milliseconds()),
		}
		snap.TotalRequests += stats.count
		snap.TotalErrors += stats.errors
		snap.InFlight += stats.inFlight
	}

	if !m.shutdownAt.IsZero() {
		at := m.shutdownAt
		snap.ShutdownAt = &at
	}

	return snap
}

func (m *Metrics) ensureOp(op string) *opStats {
	stats, ok := m.operations[op]
	if !ok {
		stats = &opStats{}
		m.operations[op] = stats
	}
	return stats
}

func (m *Metrics) finish(op string, dur time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	stats := m.ensureOp(op)
	stats.inFlight--
	stats.count++
	if failed {
		stats.errors++
	}
	stats.totalLatency += dur
	if dur > stats.maxLatency {
		stats.maxLatency = dur
	}
	stats.lastLatency = dur
	m.mu.Unlock()
}
