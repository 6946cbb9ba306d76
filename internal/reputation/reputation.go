// Package reputation implements the Reputation Engine: per-
// channel metric aggregation over completed outcomes, a composite
// 0-100 score mapped onto a named tier, and per-coin cross-channel
// consensus aggregation.
package reputation

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chainsignal/chainsignal/internal/model"
	"github.com/chainsignal/chainsignal/internal/store"
)

// Engine owns the channel reputation map and the per-coin cross-channel
// map, both serialized by a single reputation-wide mutex around update
// and save.
type Engine struct {
	mu            sync.Mutex
	channels      map[string]*model.ChannelReputation
	coins         map[string]*model.CoinCrossChannel
	channelsPath  string
	coinsPath     string
}

// New loads the channel and cross-channel stores from disk.
func New(channelsPath, coinsPath string) *Engine {
	e := &Engine{
		channels:     make(map[string]*model.ChannelReputation),
		coins:        make(map[string]*model.CoinCrossChannel),
		channelsPath: channelsPath,
		coinsPath:    coinsPath,
	}

	var channelsOnDisk map[string]*model.ChannelReputation
	if found, err := store.Load(channelsPath, &channelsOnDisk); err != nil {
		log.Error().Err(err).Str("path", channelsPath).Msg("channel reputation store corrupt, starting empty")
	} else if found {
		e.channels = channelsOnDisk
	}

	var coinsOnDisk map[string]*model.CoinCrossChannel
	if found, err := store.Load(coinsPath, &coinsOnDisk); err != nil {
		log.Error().Err(err).Str("path", coinsPath).Msg("cross-channel store corrupt, starting empty")
	} else if found {
		e.coins = coinsOnDisk
	}
	return e
}

// Get returns the current reputation for a channel, or nil if unknown.
func (e *Engine) Get(channel string) *model.ChannelReputation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.channels[channel]
}

// All returns a snapshot of every tracked channel's current reputation,
// keyed by channel name.
func (e *Engine) All() map[string]*model.ChannelReputation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]*model.ChannelReputation, len(e.channels))
	for k, v := range e.channels {
		out[k] = v
	}
	return out
}

// Recompute rebuilds a channel's reputation from its full set of
// completed outcomes.
func (e *Engine) Recompute(channel string, outcomes []*model.SignalOutcome) *model.ChannelReputation {
	e.mu.Lock()
	defer e.mu.Unlock()

	rep := model.NewChannelReputation(channel)
	rep.TotalSignals = len(outcomes)
	if len(outcomes) == 0 {
		e.channels[channel] = rep
		e.persist()
		return rep
	}

	rois := make([]float64, 0, len(outcomes))
	var winners, losers, neutral int
	var confidenceSum, hdrbSum, daysToATHSum, daysTo2xSum float64
	var daysTo2xCount int

	for _, so := range outcomes {
		rois = append(rois, so.ATHMultiplier)
		if so.IsWinner {
			winners++
		} else if so.ATHMultiplier < 1.0 {
			losers++
		} else {
			neutral++
		}
		confidenceSum += so.Confidence
		hdrbSum += so.HDRBScore
		daysToATHSum += so.DaysToATH
		if so.IsWinner {
			daysTo2xSum += so.DaysToATH
			daysTo2xCount++
		}
	}

	n := float64(len(outcomes))
	rep.WinningSignals = winners
	rep.LosingSignals = losers
	rep.NeutralSignals = neutral
	rep.WinRate = float64(winners) / n * 100

	avg, median, best, worst, stdDev := moments(rois)
	rep.AverageROI = avg
	rep.MedianROI = median
	rep.BestROI = best
	rep.WorstROI = worst
	rep.ROIStdDev = stdDev
	if stdDev > 0 {
		rep.SharpeRatio = (avg - 1) / stdDev
	}

	rep.AvgTimeToATH = daysToATHSum / n
	if daysTo2xCount > 0 {
		rep.AvgTimeTo2x = daysTo2xSum / float64(daysTo2xCount)
	}
	rep.SpeedScore = clamp(100-(rep.AvgTimeToATH-1)*3.33, 0, 100)
	rep.AvgConfidence = confidenceSum / n
	rep.AvgHDRBScore = hdrbSum / n

	for _, tier := range []model.MarketTier{model.TierMicro, model.TierSmall, model.TierMid, model.TierLarge} {
		rep.TierPerformance[tier] = tierPerformance(outcomes, tier)
	}

	rep.ReputationScore = clamp(
		0.30*rep.WinRate+
			0.25*clampMax((rep.AverageROI-1)*50, 100)+
			0.20*clampMax(rep.SharpeRatio*50, 100)+
			0.15*rep.SpeedScore+
			0.10*(rep.AvgConfidence*100),
		0, 100)
	rep.ReputationTier = model.ClassifyReputationTier(rep.TotalSignals, rep.ReputationScore)

	if rep.AverageROI > 0 && rep.ExpectedROI == 0 {
		rep.ExpectedROI = rep.AverageROI
	}

	rep.FirstSignalDate = outcomes[0].EntryTimestamp
	rep.LastSignalDate = outcomes[0].EntryTimestamp
	for _, so := range outcomes {
		if so.EntryTimestamp.Before(rep.FirstSignalDate) {
			rep.FirstSignalDate = so.EntryTimestamp
		}
		if so.EntryTimestamp.After(rep.LastSignalDate) {
			rep.LastSignalDate = so.EntryTimestamp
		}
	}
	rep.LastUpdated = time.Now()

	e.channels[channel] = rep
	e.persist()
	return rep
}

func tierPerformance(outcomes []*model.SignalOutcome, tier model.MarketTier) model.TierPerformance {
	var subset []*model.SignalOutcome
	for _, so := range outcomes {
		if so.MarketTier == tier {
			subset = append(subset, so)
		}
	}
	if len(subset) == 0 {
		return model.TierPerformance{}
	}

	rois := make([]float64, 0, len(subset))
	var winners int
	for _, so := range subset {
		rois = append(rois, so.ATHMultiplier)
		if so.IsWinner {
			winners++
		}
	}
	avg, _, _, _, stdDev := moments(rois)
	tp := model.TierPerformance{
		TotalCalls:   len(subset),
		WinningCalls: winners,
		WinRate:      float64(winners) / float64(len(subset)) * 100,
		AvgROI:       avg,
	}
	if stdDev > 0 {
		tp.SharpeRatio = (avg - 1) / stdDev
	}
	return tp
}

// moments returns (mean, median, max, min, population-stddev).
func moments(values []float64) (mean, median, best, worst, stdDev float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0, 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		median = sorted[mid]
	}
	best = sorted[len(sorted)-1]
	worst = sorted[0]

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	stdDev = math.Sqrt(variance)
	return
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampMax(v, hi float64) float64 {
	if v > hi {
		return hi
	}
	return v
}

func (e *Engine) persist() {
	if err := store.Commit(store.Write{Path: e.channelsPath, Value: e.channels}); err != nil {
		log.Error().Err(err).Str("path", e.channelsPath).Msg("failed to persist channel reputation store")
	}
}

// RecordMention updates the per-coin cross-channel aggregate after a
// channel mentions an address.
func (e *Engine) RecordMention(address, symbol, channel string, roi float64, isWinner bool, mentionedAt time.Time) *model.CoinCrossChannel {
	e.mu.Lock()
	defer e.mu.Unlock()

	cc, ok := e.coins[address]
	if !ok {
		cc = &model.CoinCrossChannel{Address: address, Symbol: symbol, PerChannel: make(map[string]model.CoinChannelStat)}
		e.coins[address] = cc
	}

	stat, ok := cc.PerChannel[channel]
	if !ok {
		stat = model.CoinChannelStat{ChannelName: channel, BestROI: roi, WorstROI: roi}
	}
	newCount := stat.MentionCount + 1
	stat.AvgROI = (stat.AvgROI*float64(stat.MentionCount) + roi) / float64(newCount)
	if roi > stat.BestROI {
		stat.BestROI = roi
	}
	if roi < stat.WorstROI || stat.MentionCount == 0 {
		stat.WorstROI = roi
	}
	if isWinner {
		stat.WinRate = (stat.WinRate*float64(stat.MentionCount) + 100) / float64(newCount)
	} else {
		stat.WinRate = (stat.WinRate * float64(stat.MentionCount)) / float64(newCount)
	}
	stat.MentionCount = newCount
	stat.LastMentioned = mentionedAt
	cc.PerChannel[channel] = stat

	recomputeCoinAggregate(cc)

	if err := store.Commit(store.Write{Path: e.coinsPath, Value: e.coins}); err != nil {
		log.Error().Err(err).Str("path", e.coinsPath).Msg("failed to persist cross-channel store")
	}
	return cc
}

// recomputeCoinAggregate recomputes the mention-weighted average ROI,
// consensus strength, and best/worst channel pointers from scratch.
func recomputeCoinAggregate(cc *model.CoinCrossChannel) {
	var totalMentions int
	var weightedSum float64
	rois := make([]float64, 0, len(cc.PerChannel))

	var bestChannel, worstChannel string
	var bestROI = math.Inf(-1)
	var worstROI = math.Inf(1)

	for name, stat := range cc.PerChannel {
		totalMentions += stat.MentionCount
		weightedSum += stat.AvgROI * float64(stat.MentionCount)
		rois = append(rois, stat.AvgROI)
		if stat.AvgROI > bestROI {
			bestROI = stat.AvgROI
			bestChannel = name
		}
		if stat.AvgROI < worstROI {
			worstROI = stat.AvgROI
			worstChannel = name
		}
	}

	if totalMentions > 0 {
		cc.MentionWeightedROI = weightedSum / float64(totalMentions)
	}
	cc.BestChannel = bestChannel
	cc.WorstChannel = worstChannel

	mean, _, _, _, stdDev := moments(rois)
	if mean > 0 {
		cc.ConsensusStrength = math.Max(0, 1-stdDev/mean)
	} else {
		cc.ConsensusStrength = 0
	}
}
