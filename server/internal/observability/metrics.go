package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects request counters and durations per API operation.
type Metrics struct {
	mu sync.Mutex

	requestTotal  atomic.Int64
	requestFailed atomic.Int64

	operations map[string]*OperationMetrics
}

// OperationMetrics represents metrics for a single operation.
type OperationMetrics struct {
	count         atomic.Int64
	errorCount    atomic.Int64
	totalDuration atomic.Int64 // milliseconds
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{operations: make(map[string]*OperationMetrics)}
}

// RecordRequest records a finished request of operation.
func (m *Metrics) RecordRequest(operation string, duration time.Duration, failed bool) {
	m.requestTotal.Add(1)
	om := m.getOperation(operation)
	om.count.Add(1)
	om.totalDuration.Add(duration.Milliseconds())
	if failed {
		m.requestFailed.Add(1)
		om.errorCount.Add(1)
	}
}

func (m *Metrics) getOperation(operation string) *OperationMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	om, ok := m.operations[operation]
	if !ok {
		om = &OperationMetrics{}
		m.operations[operation] = om
	}
	return om
}

// Snapshot returns a point-in-time copy of the metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	ops := make([]*OperationSnapshot, 0, len(m.operations))
	for name, om := range m.operations {
		snap := &OperationSnapshot{
			Operation:     name,
			Count:         om.count.Load(),
			ErrorCount:    om.errorCount.Load(),
			TotalDuration: om.totalDuration.Load(),
		}
		if snap.Count > 0 {
			snap.AverageDuration = snap.TotalDuration / snap.Count
		}
		ops = append(ops, snap)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].Operation < ops[j].Operation })

	return &MetricsSnapshot{
		RequestTotal:  m.requestTotal.Load(),
		RequestFailed: m.requestFailed.Load(),
		Operations:    ops,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RequestTotal  int64                `json:"requestTotal"`
	RequestFailed int64                `json:"requestFailed"`
	Operations    []*OperationSnapshot `json:"operations"`
}

// OperationSnapshot represents metrics for a specific operation.
type OperationSnapshot struct {
	Operation       string `json:"operation"`
	Count           int64  `json:"count"`
	ErrorCount      int64  `json:"errorCount"`
	TotalDuration   int64  `json:"totalDurationMs"`
	AverageDuration int64  `json:"averageDurationMs"`
}

// SuccessRate returns the success rate as a percentage (0-100).
func (s *MetricsSnapshot) SuccessRate() float64 {
	if s.RequestTotal == 0 {
		return 100.0
	}
	return float64(s.RequestTotal-s.RequestFailed) / float64(s.RequestTotal) * 100.0
}
