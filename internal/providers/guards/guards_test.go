package guards

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chainsignal/chainsignal/internal/config"
	"github.com/chainsignal/chainsignal/internal/model"
)

func TestRateLimiterRejectsOnceBurstIsExhausted(t *testing.T) {
	rl := NewRateLimiter(config.ProviderConfig{RPS: 1000, Burst: 2})
	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())
}

func TestCircuitBreakerOpensAfterFailureRate(t *testing.T) {
	cb := NewCircuitBreaker("test", config.CircuitConfig{FailureThreshold: 0.5, WindowRequests: 4, ProbeIntervalSec: 30})

	fail := func() (interface{}, error) { return nil, assertErr }
	for i := 0; i < 4; i++ {
		_, _ = cb.Execute(fail)
	}

	_, err := cb.Execute(func() (interface{}, error) { return "ok", nil })
	assert.Error(t, err)
}

var assertErr = errTest("boom")

type errTest string

func (e errTest) Error() string { return string(e) }

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewCache(50*time.Millisecond, nil)
	price := 1.23
	c.Set(ctx, "key", &model.PriceData{PriceUSD: price})

	v, ok := c.Get(ctx, "key")
	assert.True(t, ok)
	assert.Equal(t, price, v.PriceUSD)

	time.Sleep(60 * time.Millisecond)
	_, ok = c.Get(ctx, "key")
	assert.False(t, ok)
}
