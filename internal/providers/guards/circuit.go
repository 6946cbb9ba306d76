package guards

import (
	"time"

	"github.com/sony/gobreaker"

	"github.com/chainsignal/chainsignal/internal/config"
)

// CircuitBreaker wraps sony/gobreaker with the provider-resilience policy:
// a provider whose failure rate trips the breaker is
// skipped without retry until the breaker's probe interval elapses.
type CircuitBreaker struct {
	cb   *gobreaker.CircuitBreaker
	name string
}

// NewCircuitBreaker builds a breaker from a provider's circuit config.
func NewCircuitBreaker(name string, cfg config.CircuitConfig) *CircuitBreaker {
	threshold := cfg.FailureThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = 0.5
	}
	minRequests := cfg.WindowRequests
	if minRequests <= 0 {
		minRequests = 10
	}
	probeInterval := time.Duration(cfg.ProbeIntervalSec) * time.Second
	if probeInterval <= 0 {
		probeInterval = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:     name,
		Interval: probeInterval * 2,
		Timeout:  probeInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < uint32(minRequests) {
				return false
			}
			failureRate := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRate >= threshold
		},
	}

	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(settings), name: name}
}

// Execute runs fn through the breaker, translating gobreaker's open-state
// rejection into a plain error the provider adapter can treat like any
// other transient failure that should be skipped like a rate limit.
func (c *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return c.cb.Execute(fn)
}

// State reports the breaker's current state for diagnostics/health.
func (c *CircuitBreaker) State() string {
	return c.cb.State().String()
}

// MultiProviderCircuitBreaker manages one breaker per named provider.
type MultiProviderCircuitBreaker struct {
	breakers map[string]*CircuitBreaker
}

// NewMultiProviderCircuitBreaker builds an empty registry.
func NewMultiProviderCircuitBreaker() *MultiProviderCircuitBreaker {
	return &MultiProviderCircuitBreaker{breakers: make(map[string]*CircuitBreaker)}
}

// Register adds (or replaces) the breaker for a provider.
func (m *MultiProviderCircuitBreaker) Register(name string, cfg config.CircuitConfig) {
	m.breakers[name] = NewCircuitBreaker(name, cfg)
}

// For returns the breaker for a provider, or nil if unregistered (in
// which case the caller should treat the provider as unguarded).
func (m *MultiProviderCircuitBreaker) For(provider string) *CircuitBreaker {
	return m.breakers[provider]
}
