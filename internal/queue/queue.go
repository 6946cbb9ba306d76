// Package queue implements the Priority Queue: a bounded min-heap of
// admitted messages keyed by (100 - channel reputation score), drained
// by a single consumer at a global messages-per-second rate with
// drop-on-full backpressure and bounded retry.
package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Message is one queued unit of work. CorrelationID is assigned once at
// Enqueue time and carried through retry/demotion so log lines for the
// original attempt and its demoted retry can be joined.
type Message struct {
	CorrelationID string
	Priority      float64
	EnqueueTS     time.Time
	Payload       interface{}
	retries       int
}

// Handler processes a dequeued message; a non-nil error triggers the
// single-retry demotion path.
type Handler func(ctx context.Context, msg *Message) error

type item struct {
	msg   *Message
	index int
}

type heapImpl []*item

func (h heapImpl) Len() int { return len(h) }
func (h heapImpl) Less(i, j int) bool {
	if h[i].msg.Priority != h[j].msg.Priority {
		return h[i].msg.Priority < h[j].msg.Priority
	}
	return h[i].msg.EnqueueTS.Before(h[j].msg.EnqueueTS)
}
func (h heapImpl) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *heapImpl) Push(x interface{}) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *heapImpl) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Queue is the bounded priority queue plus its single consumer loop.
type Queue struct {
	mu           sync.Mutex
	notEmpty     chan struct{}
	heap         heapImpl
	maxSize      int
	totalDropped int64

	limiter      *rate.Limiter
	drainTimeout time.Duration
}

// New builds a Queue bounded at maxSize (default 1000) draining at
// messagesPerSecond.
func New(maxSize int, messagesPerSecond float64, drainTimeout time.Duration) *Queue {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if messagesPerSecond <= 0 {
		messagesPerSecond = 2.0
	}
	if drainTimeout <= 0 {
		drainTimeout = 10 * time.Second
	}
	return &Queue{
		notEmpty:     make(chan struct{}, 1),
		maxSize:      maxSize,
		limiter:      rate.NewLimiter(rate.Limit(messagesPerSecond), 1),
		drainTimeout: drainTimeout,
	}
}

// ReputationPriority is 100 - reputation score if known, else 50.
func ReputationPriority(score *float64) float64 {
	if score == nil {
		return 50
	}
	return 100 - *score
}

// Enqueue adds a message, dropping it and incrementing total_dropped
// when the queue is already at capacity.
func (q *Queue) Enqueue(priority float64, payload interface{}) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.heap) >= q.maxSize {
		q.totalDropped++
		log.Warn().Int("queue_size", len(q.heap)).Msg("priority queue full, dropping message")
		return false
	}

	msg := &Message{CorrelationID: uuid.NewString(), Priority: priority, EnqueueTS: time.Now(), Payload: payload}
	heap.Push(&q.heap, &item{msg: msg})
	select {
	case q.notEmpty <- struct{}{}:
	default:
	}
	return true
}

// TotalDropped returns the running drop count for observability.
func (q *Queue) TotalDropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.totalDropped
}

// Len returns the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

func (q *Queue) pop() *Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return nil
	}
	it := heap.Pop(&q.heap).(*item)
	return it.msg
}

// demote re-enqueues a message once with priority shifted by +100,
// keeping its original CorrelationID so the demoted attempt's log
// lines can be joined with the one that failed; a message that has
// already been retried is dropped with a warning instead.
func (q *Queue) demote(msg *Message) {
	if msg.retries >= 1 {
		log.Warn().Str("correlation_id", msg.CorrelationID).Interface("payload", msg.Payload).Msg("message dropped after single retry")
		return
	}
	msg.retries++
	q.mu.Lock()
	heap.Push(&q.heap, &item{msg: &Message{
		CorrelationID: msg.CorrelationID,
		Priority:      msg.Priority + 100,
		EnqueueTS:     msg.EnqueueTS,
		Payload:       msg.Payload,
		retries:       msg.retries,
	}})
	select {
	case q.notEmpty <- struct{}{}:
	default:
	}
	q.mu.Unlock()
}

// Run drives the single consumer loop until ctx is cancelled, at which
// point it waits up to drainTimeout for the queue to empty before a
// best-effort final drain.
func (q *Queue) Run(ctx context.Context, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			q.drain(handler)
			return
		case <-q.notEmpty:
			q.consumeAvailable(ctx, handler)
		case <-time.After(100 * time.Millisecond):
			q.consumeAvailable(ctx, handler)
		}
	}
}

func (q *Queue) consumeAvailable(ctx context.Context, handler Handler) {
	for {
		msg := q.pop()
		if msg == nil {
			return
		}
		if err := q.limiter.Wait(ctx); err != nil {
			// Cancellation during rate-limit wait re-queues the message
			// rather than dropping it, then re-raises cancellation.
			q.requeueFront(msg)
			return
		}
		if err := handler(ctx, msg); err != nil {
			log.Warn().Err(err).Str("correlation_id", msg.CorrelationID).Msg("handler failed, demoting message for single retry")
			q.demote(msg)
		}
	}
}

func (q *Queue) requeueFront(msg *Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.heap, &item{msg: msg})
}

// drain best-effort processes remaining entries within drainTimeout
// after cancellation, then returns regardless of remaining depth.
func (q *Queue) drain(handler Handler) {
	deadline := time.Now().Add(q.drainTimeout)
	drainCtx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	for time.Now().Before(deadline) {
		msg := q.pop()
		if msg == nil {
			return
		}
		if err := handler(drainCtx, msg); err != nil {
			log.Warn().Err(err).Msg("handler failed during drain, message dropped")
		}
	}
}
