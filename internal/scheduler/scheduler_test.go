package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsignal/chainsignal/internal/model"
	"github.com/chainsignal/chainsignal/internal/outcome"
	"github.com/chainsignal/chainsignal/internal/reputation"
)

type fakeSink struct {
	published map[string]*model.ChannelReputation
}

func (f *fakeSink) PublishReputations(ctx context.Context, channels map[string]*model.ChannelReputation) error {
	f.published = channels
	return nil
}

func newTestScheduler(t *testing.T) (*Scheduler, *outcome.Tracker, *reputation.Engine, *fakeSink) {
	dir := t.TempDir()
	tr := outcome.New(filepath.Join(dir, "active.json"), filepath.Join(dir, "completed.json"))
	rep := reputation.New(filepath.Join(dir, "channels.json"), filepath.Join(dir, "coins.json"))
	sink := &fakeSink{}
	s := New(tr, rep, nil, sink)
	return s, tr, rep, sink
}

func TestRunCycleArchivesOutcomesOlderThan30Days(t *testing.T) {
	s, tr, _, _ := newTestScheduler(t)

	old := time.Now().Add(-31 * 24 * time.Hour)
	tr.Admit("msg1", "channel-a", "0xabc", 1.0, old, model.EntrySourceCurrentPrice, model.TierMicro, "evm")
	s.NoteChannel("channel-a")

	require.NoError(t, s.RunCycle(context.Background(), time.Now()))

	assert.Empty(t, tr.ActiveOlderThan(time.Now()))
	assert.Len(t, tr.CompletedForChannel("channel-a"), 1)
}

func TestRunCycleRecomputesOnlyDirtyChannels(t *testing.T) {
	s, tr, rep, _ := newTestScheduler(t)

	old := time.Now().Add(-31 * 24 * time.Hour)
	tr.Admit("msg1", "channel-a", "0xabc", 1.0, old, model.EntrySourceCurrentPrice, model.TierMicro, "evm")
	s.NoteChannel("channel-a")
	s.NoteChannel("channel-b")

	require.NoError(t, s.RunCycle(context.Background(), time.Now()))

	assert.NotNil(t, rep.Get("channel-a"))
	assert.Nil(t, rep.Get("channel-b"))
}

func TestRunCyclePublishesReputationsToSinks(t *testing.T) {
	s, tr, _, sink := newTestScheduler(t)

	old := time.Now().Add(-31 * 24 * time.Hour)
	tr.Admit("msg1", "channel-a", "0xabc", 1.0, old, model.EntrySourceCurrentPrice, model.TierMicro, "evm")
	s.NoteChannel("channel-a")

	require.NoError(t, s.RunCycle(context.Background(), time.Now()))

	assert.Contains(t, sink.published, "channel-a")
}
