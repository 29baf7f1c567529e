package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsFirstSampleSeedsMinMax(t *testing.T) {
	s := NewExecutionStats()
	s.RecordSuccess(100 * time.Millisecond)

	snap := s.Snapshot()
	assert.Equal(t, uint64(1), snap.TotalExecutions)
	assert.Equal(t, uint64(1), snap.SuccessfulExecutions)
	assert.Equal(t, int64(100), snap.MinLatencyMs)
	assert.Equal(t, int64(100), snap.MaxLatencyMs)
	assert.InDelta(t, 100, snap.AverageLatencyMs, 1e-9)
	assert.InDelta(t, 100, snap.SuccessRate, 1e-9)
}

func TestStatsIncrementalAverage(t *testing.T) {
	s := NewExecutionStats()
	s.RecordSuccess(100 * time.Millisecond)
	s.RecordFailure(300 * time.Millisecond)

	snap := s.Snapshot()
	assert.Equal(t, uint64(2), snap.TotalExecutions)
	assert.Equal(t, uint64(1), snap.FailedExecutions)
	assert.Equal(t, int64(100), snap.MinLatencyMs)
	assert.Equal(t, int64(300), snap.MaxLatencyMs)
	assert.InDelta(t, 200, snap.AverageLatencyMs, 1e-9)
	assert.InDelta(t, 50, snap.SuccessRate, 1e-9)
}

func TestStatsEmptySnapshot(t *testing.T) {
	snap := NewExecutionStats().Snapshot()
	assert.Zero(t, snap.TotalExecutions)
	assert.Zero(t, snap.SuccessRate)
}
