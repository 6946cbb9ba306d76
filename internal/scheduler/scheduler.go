// Package scheduler implements the periodic driver: recompute
// reputations, archive aged outcomes, and republish to sinks on a
// fixed cadence, with a failed-cycle retry.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/chainsignal/chainsignal/internal/model"
	"github.com/chainsignal/chainsignal/internal/outcome"
	"github.com/chainsignal/chainsignal/internal/reputation"
)

const (
	defaultInterval   = 30 * time.Minute
	retryInterval     = 5 * time.Minute
	archivalThreshold = 30 * 24 * time.Hour
)

// OutcomeFinalizer computes the terminal fields of an outcome (ATH,
// days-to-ATH, ROI) when a 30-day-old entry hasn't completed on its
// own via Update, computing its terminal fields via OHLC if not
// already populated.
type OutcomeFinalizer func(ctx context.Context, so *model.SignalOutcome, now time.Time) error

// Sink republishes reputations and cross-channel records at the end
// of each cycle.
type Sink interface {
	PublishReputations(ctx context.Context, channels map[string]*model.ChannelReputation) error
}

// Scheduler drives the periodic reputation/archival/publish cycle.
// It has two interchangeable cadence drivers: a fixed-interval ticker
// (the default) and a crontab-syntax variant built on robfig/cron/v3
// for operators who want cron expressions instead.
type Scheduler struct {
	outcomes   *outcome.Tracker
	reputation *reputation.Engine
	finalize   OutcomeFinalizer
	sinks      []Sink
	interval   time.Duration

	lastCompletionSeen map[string]int // channel -> completed-outcomes count observed at last cycle
}

// New builds a Scheduler with the default 30-minute interval.
func New(outcomes *outcome.Tracker, rep *reputation.Engine, finalize OutcomeFinalizer, sinks ...Sink) *Scheduler {
	return &Scheduler{
		outcomes:           outcomes,
		reputation:         rep,
		finalize:           finalize,
		sinks:              sinks,
		interval:           defaultInterval,
		lastCompletionSeen: make(map[string]int),
	}
}

// WithInterval overrides the default cadence.
func (s *Scheduler) WithInterval(d time.Duration) *Scheduler {
	if d > 0 {
		s.interval = d
	}
	return s
}

// Run drives the fixed-interval ticker loop until ctx is cancelled
// on a periodic, default 30-minute interval. A failed cycle
// retries after retryInterval rather than waiting a full interval.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := s.RunCycle(ctx, time.Now()); err != nil {
				log.Error().Err(err).Msg("scheduler cycle failed, retrying sooner")
				timer.Reset(retryInterval)
				continue
			}
			timer.Reset(s.interval)
		}
	}
}

// RunCron drives the cadence using a crontab expression (e.g. "*/30 * * * *")
// instead of a fixed interval, for operators who prefer cron syntax
// over a plain Go duration.
func (s *Scheduler) RunCron(ctx context.Context, spec string) error {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return err
	}

	next := sched.Next(time.Now())
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-timer.C:
			if err := s.RunCycle(ctx, now); err != nil {
				log.Error().Err(err).Msg("scheduler cycle failed, retrying sooner")
				timer.Reset(retryInterval)
				continue
			}
			timer.Reset(time.Until(sched.Next(now)))
		}
	}
}

// RunCycle executes one scheduler pass: recompute reputations for
// channels with newly completed outcomes, archive aged active
// outcomes, and republish to sinks.
func (s *Scheduler) RunCycle(ctx context.Context, now time.Time) error {
	if err := s.archiveAged(ctx, now); err != nil {
		return err
	}
	s.recomputeDirtyChannels()
	return s.publish(ctx)
}

// archiveAged walks active outcomes and completes every one older
// than 30 days, finalizing terminal fields first when the finalizer
// is configured and the caller hasn't already done so via Update.
func (s *Scheduler) archiveAged(ctx context.Context, now time.Time) error {
	cutoff := now.Add(-archivalThreshold)
	for _, so := range s.outcomes.ActiveOlderThan(cutoff) {
		if s.finalize != nil {
			if err := s.finalize(ctx, so, now); err != nil {
				log.Error().Err(err).Str("address", so.Address).Msg("failed to finalize aged outcome before archival")
			}
		}
		if _, err := s.outcomes.Complete(so.Address, model.Completion30dElapsed, now); err != nil {
			log.Error().Err(err).Str("address", so.Address).Msg("failed to archive aged outcome")
			return err
		}
		s.NoteChannel(so.ChannelName)
	}
	return nil
}

// recomputeDirtyChannels recomputes reputation for every channel
// whose completed-outcome count has grown since the last cycle
// at least one newly completed outcome since the last run.
func (s *Scheduler) recomputeDirtyChannels() {
	for channel, lastCount := range s.lastCompletionSeen {
		completed := s.outcomes.CompletedForChannel(channel)
		if len(completed) > lastCount {
			s.reputation.Recompute(channel, completed)
			s.lastCompletionSeen[channel] = len(completed)
		}
	}
}

// NoteChannel registers a channel for dirty-tracking so future cycles
// recompute its reputation once new completions appear. Call this
// whenever an outcome is admitted or completed for a channel.
func (s *Scheduler) NoteChannel(channel string) {
	if _, ok := s.lastCompletionSeen[channel]; !ok {
		s.lastCompletionSeen[channel] = len(s.outcomes.CompletedForChannel(channel))
	}
}

func (s *Scheduler) publish(ctx context.Context) error {
	channels := make(map[string]*model.ChannelReputation)
	for channel := range s.lastCompletionSeen {
		if rep := s.reputation.Get(channel); rep != nil {
			channels[channel] = rep
		}
	}
	for _, sink := range s.sinks {
		if err := sink.PublishReputations(ctx, channels); err != nil {
			log.Error().Err(err).Msg("failed to publish reputations to sink")
			return err
		}
	}
	return nil
}
