package sentiment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chainsignal/chainsignal/internal/model"
)

func TestAnalyzeDetectsPositiveVocabulary(t *testing.T) {
	a := NewPatternAnalyzer()
	label, score := a.Analyze("this coin is mooning, bullish breakout incoming")
	assert.Equal(t, model.SentimentPositive, label)
	assert.Greater(t, score, 0.0)
}

func TestAnalyzeDetectsNegativeVocabulary(t *testing.T) {
	a := NewPatternAnalyzer()
	label, score := a.Analyze("looks like a rugpull, total scam, avoid")
	assert.Equal(t, model.SentimentNegative, label)
	assert.Less(t, score, 0.0)
}

func TestAnalyzeDefaultsToNeutralWithNoMatches(t *testing.T) {
	a := NewPatternAnalyzer()
	label, score := a.Analyze("just checking the price chart today")
	assert.Equal(t, model.SentimentNeutral, label)
	assert.Equal(t, 0.0, score)
}
