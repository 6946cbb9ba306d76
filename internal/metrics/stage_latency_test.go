package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStageLatencyTrackerReportsPercentilesAcrossStages(t *testing.T) {
	tr := NewStageLatencyTracker()
	for _, ms := range []int{10, 20, 30, 40, 50} {
		tr.Record(StagePrice, time.Duration(ms)*time.Millisecond)
	}

	snap := tr.Snapshot()
	assert.Equal(t, 5, snap[StagePrice].Count)
	assert.InDelta(t, 30.0, snap[StagePrice].P50, 0.01)
	assert.InDelta(t, 50.0, snap[StagePrice].P99, 0.01)
}

func TestStageLatencyTrackerKeepsStagesIndependent(t *testing.T) {
	tr := NewStageLatencyTracker()
	tr.Record(StageResolve, 5*time.Millisecond)
	tr.Record(StagePrice, 50*time.Millisecond)

	snap := tr.Snapshot()
	assert.InDelta(t, 5.0, snap[StageResolve].P50, 0.01)
	assert.InDelta(t, 50.0, snap[StagePrice].P50, 0.01)
	assert.Zero(t, snap[StageScore].Count)
}

func TestStageReservoirCapsSampleCountAtCapacity(t *testing.T) {
	tr := NewStageLatencyTracker()
	for i := 0; i < reservoirCapacity*2; i++ {
		tr.Record(StageSink, time.Millisecond)
	}

	snap := tr.Snapshot()
	assert.Equal(t, reservoirCapacity, snap[StageSink].Count)
}

func TestStageLatencyUnrecordedStageHasZeroCount(t *testing.T) {
	tr := NewStageLatencyTracker()
	snap := tr.Snapshot()
	assert.Zero(t, snap[StageResolve].Count)
}
