// Package guards holds the per-provider resilience primitives the Price
// Engine and Historical Price Service fan out through: token-bucket rate
// limiting, a circuit breaker wrapping sony/gobreaker, and a response
// cache, generalized from exchange-microstructure guarding to
// price-provider guarding.
package guards

import (
	"sync"
	"time"

	"github.com/chainsignal/chainsignal/internal/config"
)

// RateLimiter implements a token bucket: burst capacity refilled at a
// sustained per-second rate. Each provider is guarded by its own
// independent limiter.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time
}

// NewRateLimiter builds a limiter from a provider's configured RPS/burst.
func NewRateLimiter(cfg config.ProviderConfig) *RateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 10
	}
	rate := cfg.RPS
	if rate <= 0 {
		rate = 1.0
	}
	return &RateLimiter{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: rate,
		lastRefill: time.Now(),
	}
}

// Allow reports whether a request may proceed right now, consuming a
// token if so. A provider that exceeds its budget is skipped for the
// current request without retry.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill(time.Now())
	if rl.tokens >= 1.0 {
		rl.tokens -= 1.0
		return true
	}
	return false
}

func (rl *RateLimiter) refill(now time.Time) {
	elapsed := now.Sub(rl.lastRefill)
	if elapsed <= 0 {
		return
	}
	rl.tokens += elapsed.Seconds() * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now
}

// AvailableTokens reports the current token count for diagnostics.
func (rl *RateLimiter) AvailableTokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill(time.Now())
	return rl.tokens
}

// Budget reports the current bucket usage as (tokens consumed, burst
// capacity), both rounded to whole requests, for rate-limit-pressure
// reporting in the provider call snapshot.
func (rl *RateLimiter) Budget() (used, cap int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill(time.Now())
	cap = int(rl.maxTokens)
	used = cap - int(rl.tokens)
	if used < 0 {
		used = 0
	}
	return used, cap
}

// MultiProviderRateLimiter manages one RateLimiter per named provider.
type MultiProviderRateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*RateLimiter
}

// NewMultiProviderRateLimiter builds an empty registry.
func NewMultiProviderRateLimiter() *MultiProviderRateLimiter {
	return &MultiProviderRateLimiter{limiters: make(map[string]*RateLimiter)}
}

// Register adds (or replaces) the limiter for a provider.
func (m *MultiProviderRateLimiter) Register(name string, cfg config.ProviderConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[name] = NewRateLimiter(cfg)
}

// Allow checks the named provider's limiter; an unregistered provider is
// unrestricted.
func (m *MultiProviderRateLimiter) Allow(provider string) bool {
	m.mu.RLock()
	rl, ok := m.limiters[provider]
	m.mu.RUnlock()
	if !ok {
		return true
	}
	return rl.Allow()
}
