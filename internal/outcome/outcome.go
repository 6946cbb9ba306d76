// Package outcome implements the Outcome Tracker: per-(channel,
// address) signal lifecycle, fixed checkpoints, and atomic two-file
// (active/completed) persistence built on internal/store.
package outcome

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chainsignal/chainsignal/internal/model"
	"github.com/chainsignal/chainsignal/internal/store"
)

// Tracker owns the in-memory active/completed maps and serializes every
// mutation behind a single mutex: outcome mutations are strictly
// serialized.
type Tracker struct {
	mu           sync.Mutex
	active       map[string]*model.SignalOutcome // key: address
	completed    map[string][]*model.SignalOutcome
	activePath   string
	completedPath string
}

// New loads the active/completed stores from disk, treating a missing
// or corrupt file as empty.
func New(activePath, completedPath string) *Tracker {
	t := &Tracker{
		active:        make(map[string]*model.SignalOutcome),
		completed:     make(map[string][]*model.SignalOutcome),
		activePath:    activePath,
		completedPath: completedPath,
	}

	var activeOnDisk map[string]*model.SignalOutcome
	if found, err := store.Load(activePath, &activeOnDisk); err != nil {
		log.Error().Err(err).Str("path", activePath).Msg("active outcome store corrupt, starting empty")
	} else if found {
		t.active = activeOnDisk
	}

	var completedOnDisk map[string][]*model.SignalOutcome
	if found, err := store.Load(completedPath, &completedOnDisk); err != nil {
		log.Error().Err(err).Str("path", completedPath).Msg("completed outcome store corrupt, starting empty")
	} else if found {
		t.completed = completedOnDisk
	}
	return t
}

// AdmitResult reports what creation decided.
type AdmitResult struct {
	Outcome  *model.SignalOutcome
	Duplicate bool
}

// Admit implements the creation algorithm: duplicate suppression,
// fresh-start re-numbering from completed history, or a first mention.
func (t *Tracker) Admit(messageID, channelName, address string, entryPrice float64, entryTime time.Time, entrySource model.EntrySource, tier model.MarketTier, chain string) AdmitResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.active[address]; exists {
		return AdmitResult{Duplicate: true}
	}

	signalNumber := 1
	var previousSignals []string
	if prior, ok := t.completed[address]; ok && len(prior) > 0 {
		maxSignal := 0
		for _, p := range prior {
			if p.SignalNumber > maxSignal {
				maxSignal = p.SignalNumber
			}
			previousSignals = append(previousSignals, p.MessageID)
		}
		signalNumber = maxSignal + 1
	}

	so := &model.SignalOutcome{
		MessageID:       messageID,
		ChannelName:     channelName,
		Address:         address,
		Chain:           chain,
		SignalNumber:    signalNumber,
		PreviousSignals: previousSignals,
		EntryPrice:      entryPrice,
		EntryTimestamp:  entryTime,
		EntrySource:     entrySource,
		Checkpoints:     model.NewCheckpointMap(),
		CurrentPrice:    entryPrice,
		CurrentMultiplier: 1.0,
		ATHPrice:        entryPrice,
		ATHMultiplier:   1.0,
		MarketTier:      tier,
		StatusValue:     model.StatusInProgress,
		OutcomeCategory: model.ClassifyOutcomeCategory(1.0),
	}
	t.active[address] = so
	t.persistActive()
	return AdmitResult{Outcome: so}
}

// Update recomputes ROI and ATH, and marks
// checkpoints whose interval has elapsed.
func (t *Tracker) Update(address string, currentPrice float64, now time.Time) (*model.SignalOutcome, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	so, ok := t.active[address]
	if !ok {
		return nil, false
	}

	so.CurrentPrice = currentPrice
	if so.EntryPrice > 0 {
		so.CurrentMultiplier = currentPrice / so.EntryPrice
	}
	if currentPrice > so.ATHPrice {
		so.ATHPrice = currentPrice
		ts := now
		so.ATHTimestamp = &ts
		if so.EntryPrice > 0 {
			so.ATHMultiplier = so.ATHPrice / so.EntryPrice
		}
		so.DaysToATH = now.Sub(so.EntryTimestamp).Hours() / 24
	}

	elapsed := now.Sub(so.EntryTimestamp)
	for _, key := range model.CheckpointOrder {
		if model.CheckpointInterval(key) > elapsed {
			continue
		}
		cp := so.Checkpoints[key]
		if cp.Reached {
			continue
		}
		cp.Timestamp = &now
		cp.Price = currentPrice
		if so.EntryPrice > 0 {
			cp.ROIMult = currentPrice / so.EntryPrice
			cp.ROIPct = (cp.ROIMult - 1) * 100
		}
		cp.Reached = true
		so.Checkpoints[key] = cp
	}

	t.persistActive()
	return so, true
}

// ShouldComplete evaluates the completion stop conditions.
func ShouldComplete(so *model.SignalOutcome, now time.Time) (bool, model.CompletionReason) {
	if now.Sub(so.EntryTimestamp) >= 30*24*time.Hour {
		return true, model.Completion30dElapsed
	}
	if so.ATHPrice > 0 {
		drawdown := (so.ATHPrice - so.CurrentPrice) / so.ATHPrice
		if drawdown >= 0.9 {
			return true, model.Completion90PctLoss
		}
	}
	return false, ""
}

// Complete moves an outcome from active to completed, computing its
// terminal fields, atomically (Invariant I6: either both files are
// updated or neither is).
func (t *Tracker) Complete(address string, reason model.CompletionReason, now time.Time) (*model.SignalOutcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	so, ok := t.active[address]
	if !ok {
		return nil, fmt.Errorf("outcome: %s is not active", address)
	}

	day7 := so.Checkpoints[model.Checkpoint7d]
	day30 := so.Checkpoints[model.Checkpoint30d]
	if day7.Reached {
		p := day7.Price
		m := day7.ROIMult
		so.Day7Price = &p
		so.Day7Multiplier = &m
	}
	if day30.Reached {
		p := day30.Price
		m := day30.ROIMult
		so.Day30Price = &p
		so.Day30Multiplier = &m
	}

	trajectory := model.TrajectoryImproved
	if so.Day30Multiplier != nil {
		if so.ATHMultiplier > *so.Day30Multiplier*1.02 {
			trajectory = model.TrajectoryCrashed
		} else if so.Day7Multiplier != nil && *so.Day30Multiplier < *so.Day7Multiplier {
			trajectory = model.TrajectoryCrashed
		}
	}
	so.Trajectory = &trajectory

	peak := model.PeakLate
	if so.DaysToATH <= 7 {
		peak = model.PeakEarly
	}
	so.PeakTiming = &peak

	threshold := so.MarketTier.WinnerThreshold()
	so.IsWinner = so.ATHMultiplier >= threshold
	so.OutcomeCategory = model.ClassifyOutcomeCategory(so.ATHMultiplier)
	so.IsComplete = true
	so.StatusValue = model.StatusCompleted
	so.CompletionReason = &reason

	delete(t.active, address)
	t.completed[address] = append(t.completed[address], so)

	if err := store.Commit(
		store.Write{Path: t.activePath, Value: t.active},
		store.Write{Path: t.completedPath, Value: t.completed},
	); err != nil {
		// Roll back the in-memory move so both maps return to their
		// state before the archival. If the active file's rename already
		// landed, the active file on disk no longer holds this entry.
		t.active[address] = so
		t.completed[address] = t.completed[address][:len(t.completed[address])-1]
		return nil, fmt.Errorf("outcome: archival commit failed: %w", err)
	}
	return so, nil
}

func (t *Tracker) persistActive() {
	if err := store.Commit(store.Write{Path: t.activePath, Value: t.active}); err != nil {
		log.Error().Err(err).Str("path", t.activePath).Msg("failed to persist active outcome store")
	}
}

// ActiveOlderThan returns every active outcome whose entry_timestamp
// predates the cutoff — used by the scheduler's archival walk.
func (t *Tracker) ActiveOlderThan(cutoff time.Time) []*model.SignalOutcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []*model.SignalOutcome
	for _, so := range t.active {
		if so.EntryTimestamp.Before(cutoff) {
			out = append(out, so)
		}
	}
	return out
}

// CompletedForChannel returns every completed outcome for channelName,
// used by the Reputation Engine.
func (t *Tracker) CompletedForChannel(channelName string) []*model.SignalOutcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []*model.SignalOutcome
	for _, outcomes := range t.completed {
		for _, so := range outcomes {
			if so.ChannelName == channelName {
				out = append(out, so)
			}
		}
	}
	return out
}
