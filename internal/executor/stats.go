package executor

import (
	"sync"
	"time"
)

// StatsSnapshot is a read-only copy of the execution counters.
type StatsSnapshot struct {
	TotalExecutions      uint64  `json:"total_executions"`
	SuccessfulExecutions uint64  `json:"successful_executions"`
	FailedExecutions     uint64  `json:"failed_executions"`
	AverageLatencyMs     float64 `json:"average_latency_ms"`
	MinLatencyMs         int64   `json:"min_latency_ms"`
	MaxLatencyMs         int64   `json:"max_latency_ms"`
	SuccessRate          float64 `json:"success_rate"`
}

// ExecutionStats tracks latency and outcome of every execution attempt.
// Only the executor's completion handler writes to it; everything else
// reads snapshots.
type ExecutionStats struct {
	mu         sync.Mutex
	total      uint64
	successful uint64
	failed     uint64
	averageMs  float64
	minMs      int64
	maxMs      int64
}

// NewExecutionStats returns zeroed stats. Min and max are set from the
// first recorded sample.
func NewExecutionStats() *ExecutionStats {
	return &ExecutionStats{}
}

// RecordSuccess records a successful attempt with its measured latency.
func (s *ExecutionStats) RecordSuccess(latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	s.successful++
	s.updateLatencyLocked(latency)
}

// RecordFailure records a failed attempt; failures are timed too.
func (s *ExecutionStats) RecordFailure(latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	s.failed++
	s.updateLatencyLocked(latency)
}

func (s *ExecutionStats) updateLatencyLocked(latency time.Duration) {
	ms := latency.Milliseconds()

	if s.total == 1 {
		s.minMs = ms
		s.maxMs = ms
	} else {
		if ms < s.minMs {
			s.minMs = ms
		}
		if ms > s.maxMs {
			s.maxMs = ms
		}
	}

	// Incremental rolling average: avg' = (avg*(n-1) + latest) / n.
	s.averageMs = (s.averageMs*float64(s.total-1) + float64(ms)) / float64(s.total)
}

// Snapshot returns the current counters.
func (s *ExecutionStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	rate := 0.0
	if s.total > 0 {
		rate = float64(s.successful) / float64(s.total) * 100.0
	}
	return StatsSnapshot{
		TotalExecutions:      s.total,
		SuccessfulExecutions: s.successful,
		FailedExecutions:     s.failed,
		AverageLatencyMs:     s.averageMs,
		MinLatencyMs:         s.minMs,
		MaxLatencyMs:         s.maxMs,
		SuccessRate:          rate,
	}
}
