// Package sentiment provides the pluggable sentiment capability:
// a stateless analyze(text) -> (label, score) contract. The default
// implementation is pattern-based; a model-backed implementation can be
// layered on top via the same Analyzer interface.
package sentiment

import (
	"strings"

	"github.com/chainsignal/chainsignal/internal/model"
)

// Analyzer is the pluggable capability contract.
type Analyzer interface {
	Analyze(text string) (model.Sentiment, float64)
}

// PatternAnalyzer is the default, keyword-weighted classifier.
type PatternAnalyzer struct {
	positive map[string]float64
	negative map[string]float64
}

// NewPatternAnalyzer builds the default analyzer with a small curated
// lexicon of crypto-chat vocabulary.
func NewPatternAnalyzer() *PatternAnalyzer {
	return &PatternAnalyzer{
		positive: map[string]float64{
			"moon": 0.8, "mooning": 0.8, "bullish": 0.7, "pump": 0.6, "pumping": 0.6,
			"breakout": 0.6, "gem": 0.5, "ath": 0.4, "buy": 0.3, "accumulate": 0.3,
			"undervalued": 0.4, "rocket": 0.7, "explode": 0.6,
		},
		negative: map[string]float64{
			"dump": -0.6, "dumping": -0.6, "rug": -0.9, "rugpull": -0.9, "scam": -0.9,
			"bearish": -0.7, "crash": -0.7, "sell": -0.3, "dead": -0.5, "honeypot": -0.9,
			"avoid": -0.4, "warning": -0.5,
		},
	}
}

// Analyze implements Analyzer. Score is the mean of matched-word
// weights, clamped to [-1, 1]; label follows the sign with a small
// neutral deadband.
func (a *PatternAnalyzer) Analyze(text string) (model.Sentiment, float64) {
	lower := strings.ToLower(text)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})

	var sum float64
	var matches int
	for _, w := range words {
		if weight, ok := a.positive[w]; ok {
			sum += weight
			matches++
		} else if weight, ok := a.negative[w]; ok {
			sum += weight
			matches++
		}
	}

	if matches == 0 {
		return model.SentimentNeutral, 0
	}

	score := sum / float64(matches)
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}

	switch {
	case score > 0.15:
		return model.SentimentPositive, score
	case score < -0.15:
		return model.SentimentNegative, score
	default:
		return model.SentimentNeutral, score
	}
}
