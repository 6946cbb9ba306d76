package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreHDRBClipsToMaxIC(t *testing.T) {
	result := ScoreHDRB(EngagementCounters{Forwards: 1000, Reactions: 1000, Replies: 1000}, 10.0)
	assert.Equal(t, 100.0, result.NormalizedScore)
}

func TestScoreHDRBZeroCountersYieldsZero(t *testing.T) {
	result := ScoreHDRB(EngagementCounters{}, 10.0)
	assert.Equal(t, 0.0, result.RawIC)
	assert.Equal(t, 0.0, result.NormalizedScore)
}

func TestComposeConfidenceClampsToUnitInterval(t *testing.T) {
	c := ComposeConfidence(100, true, 1.0, 500, nil, 0.7)
	assert.LessOrEqual(t, c.Base, 1.0)
	assert.True(t, c.High)
}

func TestComposeConfidenceAppliesReputationTierFactor(t *testing.T) {
	sharpe := 2.0
	withoutRep := ComposeConfidence(50, true, 0.5, 100, nil, 0.7)
	withRep := ComposeConfidence(50, true, 0.5, 100, &sharpe, 0.7)
	assert.Greater(t, withRep.Adjusted, withoutRep.Adjusted)
}

func TestComposeConfidencePenalizesNegativeSharpe(t *testing.T) {
	sharpe := -1.0
	base := ComposeConfidence(50, true, 0.5, 100, nil, 0.7)
	adjusted := ComposeConfidence(50, true, 0.5, 100, &sharpe, 0.7)
	assert.Less(t, adjusted.Adjusted, base.Base)
}
