package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnqueueDropsWhenAtCapacity(t *testing.T) {
	q := New(2, 1000, time.Second)
	assert.True(t, q.Enqueue(10, "a"))
	assert.True(t, q.Enqueue(10, "b"))
	assert.False(t, q.Enqueue(10, "c"))
	assert.Equal(t, int64(1), q.TotalDropped())
}

func TestConsumerDrainsInPriorityOrder(t *testing.T) {
	q := New(10, 1000, time.Second)
	q.Enqueue(50, "low-priority-number-means-high-priority-item")
	q.Enqueue(10, "highest-priority-item")
	q.Enqueue(30, "middle-item")

	var mu sync.Mutex
	var order []string
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	q.Run(ctx, func(ctx context.Context, msg *Message) error {
		mu.Lock()
		order = append(order, msg.Payload.(string))
		mu.Unlock()
		return nil
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"highest-priority-item", "middle-item", "low-priority-number-means-high-priority-item"}, order)
}

func TestHandlerErrorDemotesThenDropsAfterOneRetry(t *testing.T) {
	q := New(10, 1000, time.Second)
	q.Enqueue(10, "flaky")

	var attempts int32
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	q.Run(ctx, func(ctx context.Context, msg *Message) error {
		atomic.AddInt32(&attempts, 1)
		return assert.AnError
	})

	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestDemotedRetryKeepsOriginalCorrelationID(t *testing.T) {
	q := New(10, 1000, time.Second)
	q.Enqueue(10, "flaky")

	var mu sync.Mutex
	var seen []string
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	q.Run(ctx, func(ctx context.Context, msg *Message) error {
		mu.Lock()
		seen = append(seen, msg.CorrelationID)
		mu.Unlock()
		return assert.AnError
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 2)
	assert.NotEmpty(t, seen[0])
	assert.Equal(t, seen[0], seen[1])
}

func TestReputationPriorityDefaultsToFiftyWhenUnknown(t *testing.T) {
	assert.Equal(t, 50.0, ReputationPriority(nil))
	score := 80.0
	assert.Equal(t, 20.0, ReputationPriority(&score))
}
