package guards

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/chainsignal/chainsignal/internal/config"
)

// ProviderGuard composes the three per-provider resilience primitives a
// provider adapter needs: rate limiting, circuit breaking, and response
// caching.
type ProviderGuard struct {
	Name    string
	Limiter *RateLimiter
	Breaker *CircuitBreaker
	Cache   *Cache
	Timeout config.ProviderConfig
}

// NewProviderGuard builds a guard from one provider's configuration.
// redisClient is shared across every provider's Cache and may be nil,
// in which case each Cache falls back to an in-process map.
func NewProviderGuard(name string, cfg config.ProviderConfig, redisClient *redis.Client) *ProviderGuard {
	return &ProviderGuard{
		Name:    name,
		Limiter: NewRateLimiter(cfg),
		Breaker: NewCircuitBreaker(name, cfg.Circuit),
		Cache:   NewCache(cfg.TTL(), redisClient),
		Timeout: cfg,
	}
}

// ErrBudgetExhausted is returned when the provider's rate-limit budget is
// spent for the current request.
var ErrBudgetExhausted = fmt.Errorf("guards: provider rate-limit budget exhausted")

// Allow checks the rate limiter only (the breaker is applied around the
// call through Breaker.Execute); callers skip the provider on a false
// return rather than waiting or retrying.
func (g *ProviderGuard) Allow() bool {
	if !g.Limiter.Allow() {
		return false
	}
	return true
}

// Registry manages one ProviderGuard per configured provider name.
type Registry struct {
	guards map[string]*ProviderGuard
	redis  *redis.Client
}

// NewRegistry builds guards for every entry in cfg. When cfg.RedisAddr
// is set, every provider's response cache shares a single redis.Client
// against that address; otherwise every cache runs in-process only.
func NewRegistry(cfg config.ProvidersConfig) *Registry {
	r := &Registry{guards: make(map[string]*ProviderGuard)}
	if cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	for name, pc := range cfg.Providers {
		r.guards[name] = NewProviderGuard(name, pc, r.redis)
	}
	return r
}

// Guard returns the named provider's guard, or nil if unconfigured (the
// caller should then run the provider unguarded — no limits configured
// is the default for an omitted entry).
func (r *Registry) Guard(name string) *ProviderGuard {
	return r.guards[name]
}

// Close releases the shared redis connection, if one was opened.
func (r *Registry) Close() error {
	if r.redis != nil {
		return r.redis.Close()
	}
	return nil
}
