package reputation

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chainsignal/chainsignal/internal/model"
)

func newTestEngine(t *testing.T) *Engine {
	dir := t.TempDir()
	return New(filepath.Join(dir, "channels.json"), filepath.Join(dir, "coins.json"))
}

func mkOutcome(athMultiplier float64, isWinner bool, tier model.MarketTier, daysToATH float64) *model.SignalOutcome {
	return &model.SignalOutcome{
		ATHMultiplier: athMultiplier,
		IsWinner:      isWinner,
		MarketTier:    tier,
		DaysToATH:     daysToATH,
		EntryTimestamp: time.Now().Add(-time.Duration(daysToATH) * 24 * time.Hour),
	}
}

func TestRecomputeWithFewerThanTenSignalsIsUnproven(t *testing.T) {
	e := newTestEngine(t)
	outcomes := []*model.SignalOutcome{mkOutcome(2.0, true, model.TierMicro, 3)}
	rep := e.Recompute("channel-a", outcomes)
	assert.Equal(t, model.TierUnproven, rep.ReputationTier)
}

func TestRecomputeWinRateAndAverageROI(t *testing.T) {
	e := newTestEngine(t)
	var outcomes []*model.SignalOutcome
	for i := 0; i < 12; i++ {
		outcomes = append(outcomes, mkOutcome(2.0, true, model.TierMicro, 3))
	}
	rep := e.Recompute("channel-a", outcomes)
	assert.Equal(t, 100.0, rep.WinRate)
	assert.Equal(t, 2.0, rep.AverageROI)
}

func TestRecordMentionComputesMentionWeightedROI(t *testing.T) {
	e := newTestEngine(t)
	e.RecordMention("0xabc", "FOO", "channel-a", 2.0, true, time.Now())
	cc := e.RecordMention("0xabc", "FOO", "channel-b", 4.0, true, time.Now())
	assert.InDelta(t, 3.0, cc.MentionWeightedROI, 0.001)
}

func TestRecordMentionConsensusStrengthStaysNonNegativeForDivergentChannels(t *testing.T) {
	e := newTestEngine(t)
	e.RecordMention("0xabc", "FOO", "channel-a", 10.0, true, time.Now())
	cc := e.RecordMention("0xabc", "FOO", "channel-b", 0.1, false, time.Now())
	assert.GreaterOrEqual(t, cc.ConsensusStrength, 0.0)
}
