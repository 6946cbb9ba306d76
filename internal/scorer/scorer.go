// Package scorer implements the Signal Scorer: HDRB salience
// scoring, sentiment-aware confidence composition, and the
// reputation-derived tier-factor adjustment.
package scorer

import (
	"github.com/chainsignal/chainsignal/internal/model"
	"github.com/chainsignal/chainsignal/internal/sentiment"
)

// EngagementCounters are the raw per-message engagement signals:
// forwards, reactions, replies, views. Missing counters default to 0
// at the call site.
type EngagementCounters struct {
	Forwards int
	Reactions int
	Replies  int
	Views    int
}

// HDRBResult exposes both the raw information-content value and its
// normalized [0,100] form, since callers need both the raw and
// normalized shape of the same salience measurement.
type HDRBResult struct {
	RawIC           float64
	NormalizedScore float64
}

// ScoreHDRB computes the raw information-content value and normalizes
// it onto [0, 100] by clipping to maxIC. The exact IC formula is
// intentionally simple and swappable — only the exposed contract is
// load-bearing.
func ScoreHDRB(c EngagementCounters, maxIC float64) HDRBResult {
	if maxIC <= 0 {
		maxIC = 10.0
	}
	rawIC := float64(c.Forwards)*0.4 + float64(c.Reactions)*0.3 + float64(c.Replies)*0.2 + float64(c.Views)*0.0001

	normalized := rawIC / maxIC * 100
	if normalized > 100 {
		normalized = 100
	}
	if normalized < 0 {
		normalized = 0
	}
	return HDRBResult{RawIC: rawIC, NormalizedScore: normalized}
}

// Confidence is the scorer's output: a base composite score, an
// optional reputation-adjusted score, and the HIGH/LOW label.
type Confidence struct {
	Base     float64
	Adjusted float64
	High     bool
}

// ComposeConfidence implements the weighted-sum confidence formula, clamped
// to [0,1], then applies the reputation tier-factor adjustment when a
// Sharpe-like ratio is supplied.
func ComposeConfidence(hdrbScore float64, hasMentions bool, sentimentScore float64, messageLength int, sharpe *float64, threshold float64) Confidence {
	mentionTerm := 0.0
	if hasMentions {
		mentionTerm = 1.0
	}
	lengthTerm := float64(messageLength) / 200.0
	if lengthTerm > 1 {
		lengthTerm = 1
	}

	base := 0.40*(hdrbScore/100) + 0.30*mentionTerm + 0.20*absFloat(sentimentScore) + 0.10*lengthTerm
	base = clamp01(base)

	adjusted := base
	if sharpe != nil {
		adjusted = clamp01(base * tierFactor(*sharpe))
	}

	if threshold <= 0 {
		threshold = 0.7
	}
	return Confidence{Base: base, Adjusted: adjusted, High: adjusted >= threshold}
}

// tierFactor maps a channel's Sharpe-like ratio onto the
// reputation multiplier bands.
func tierFactor(sharpe float64) float64 {
	switch {
	case sharpe > 1.5:
		return 1.25
	case sharpe >= 1.0:
		return 1.20
	case sharpe >= 0.5:
		return 1.10
	case sharpe >= 0.0:
		return 1.00
	default:
		return 0.90
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// AnalyzeMessage is a small convenience wrapper combining the HDRB
// score, a pluggable sentiment analyzer, and confidence composition —
// the shape the Signal Scorer presents to the rest of the pipeline.
func AnalyzeMessage(text string, counters EngagementCounters, hasMentions bool, maxIC float64, confidenceThreshold float64, sharpe *float64, analyzer sentiment.Analyzer) (HDRBResult, model.Sentiment, float64, Confidence) {
	hdrb := ScoreHDRB(counters, maxIC)
	label, sentimentScore := analyzer.Analyze(text)
	confidence := ComposeConfidence(hdrb.NormalizedScore, hasMentions, sentimentScore, len(text), sharpe, confidenceThreshold)
	return hdrb, label, sentimentScore, confidence
}
