package outcome

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsignal/chainsignal/internal/model"
)

func newTestTracker(t *testing.T) *Tracker {
	dir := t.TempDir()
	return New(filepath.Join(dir, "active.json"), filepath.Join(dir, "completed.json"))
}

func TestAdmitFirstMentionGetsSignalNumberOne(t *testing.T) {
	tr := newTestTracker(t)
	result := tr.Admit("msg1", "channel-a", "0xabc", 1.0, time.Now(), model.EntrySourceCurrentPrice, model.TierMicro, "evm")
	require.NotNil(t, result.Outcome)
	assert.Equal(t, 1, result.Outcome.SignalNumber)
	assert.False(t, result.Duplicate)
}

func TestAdmitDuplicateWhileActiveIsIgnored(t *testing.T) {
	tr := newTestTracker(t)
	tr.Admit("msg1", "channel-a", "0xabc", 1.0, time.Now(), model.EntrySourceCurrentPrice, model.TierMicro, "evm")
	result := tr.Admit("msg2", "channel-a", "0xabc", 1.0, time.Now(), model.EntrySourceCurrentPrice, model.TierMicro, "evm")
	assert.True(t, result.Duplicate)
}

func TestUpdateMarksCheckpointsReachedByElapsedTime(t *testing.T) {
	tr := newTestTracker(t)
	entryTime := time.Now().Add(-2 * time.Hour)
	tr.Admit("msg1", "channel-a", "0xabc", 1.0, entryTime, model.EntrySourceCurrentPrice, model.TierMicro, "evm")

	so, ok := tr.Update("0xabc", 1.5, time.Now())
	require.True(t, ok)
	assert.True(t, so.Checkpoints[model.Checkpoint1h].Reached)
	assert.False(t, so.Checkpoints[model.Checkpoint4h].Reached)
}

func TestCompleteMovesOutcomeFromActiveToCompleted(t *testing.T) {
	tr := newTestTracker(t)
	entryTime := time.Now().Add(-31 * 24 * time.Hour)
	tr.Admit("msg1", "channel-a", "0xabc", 1.0, entryTime, model.EntrySourceCurrentPrice, model.TierMicro, "evm")
	tr.Update("0xabc", 3.0, time.Now())

	so, err := tr.Complete("0xabc", model.Completion30dElapsed, time.Now())
	require.NoError(t, err)
	assert.True(t, so.IsComplete)
	assert.Equal(t, model.StatusCompleted, so.StatusValue)

	_, stillActive := tr.Update("0xabc", 3.1, time.Now())
	assert.False(t, stillActive)
}

func TestShouldCompleteOnDrawdown(t *testing.T) {
	so := &model.SignalOutcome{ATHPrice: 10, CurrentPrice: 0.5, EntryTimestamp: time.Now()}
	done, reason := ShouldComplete(so, time.Now())
	assert.True(t, done)
	assert.Equal(t, model.Completion90PctLoss, reason)
}

func TestFreshStartIncrementsSignalNumberAfterCompletion(t *testing.T) {
	tr := newTestTracker(t)
	entryTime := time.Now().Add(-31 * 24 * time.Hour)
	tr.Admit("msg1", "channel-a", "0xabc", 1.0, entryTime, model.EntrySourceCurrentPrice, model.TierMicro, "evm")
	_, err := tr.Complete("0xabc", model.Completion30dElapsed, time.Now())
	require.NoError(t, err)

	result := tr.Admit("msg2", "channel-a", "0xabc", 2.0, time.Now(), model.EntrySourceCurrentPrice, model.TierMicro, "evm")
	require.NotNil(t, result.Outcome)
	assert.Equal(t, 2, result.Outcome.SignalNumber)
	assert.Equal(t, []string{"msg1"}, result.Outcome.PreviousSignals)
}
