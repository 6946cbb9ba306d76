// Package priceengine implements the Price Engine: given (address,
// chain), return a best-effort merged PriceData by querying providers
// in preference order, falling back to a parallel fan-out of secondary
// sources when the primary response is incomplete.
package priceengine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/chainsignal/chainsignal/internal/metrics"
	"github.com/chainsignal/chainsignal/internal/model"
	"github.com/chainsignal/chainsignal/internal/providers/guards"
	"github.com/chainsignal/chainsignal/internal/providers/priceproviders"
)

// Engine fans out across the configured provider roster, merging
// results into a single PriceData record.
type Engine struct {
	primary   priceproviders.Provider
	secondary []priceproviders.Provider
	rpcSymbol func(ctx context.Context, chain, address string) (string, error)
	guards    *guards.Registry
	metrics   *metrics.Registry
}

// New builds an Engine. primary is queried first; secondary providers
// are only queried in parallel when the primary result is incomplete.
// rpcSymbol is optional — it implements the on-chain symbol() read
// last-resort step and is typically backed by priceproviders.RPCProvider.
// guardRegistry is optional and, when set, is consulted after every
// provider call to mirror that provider's current circuit-breaker and
// rate-limit state into the call-accounting snapshot (nil disables
// this, leaving every provider reported "closed"). metricsRegistry
// supplies both the Prometheus latency/error series and the
// ProviderCalls accounting tracker every call is recorded against.
func New(primary priceproviders.Provider, secondary []priceproviders.Provider, rpcSymbol func(ctx context.Context, chain, address string) (string, error), guardRegistry *guards.Registry, metricsRegistry *metrics.Registry) *Engine {
	if metricsRegistry == nil {
		metricsRegistry = metrics.NewUnregistered()
	}
	return &Engine{
		primary:   primary,
		secondary: secondary,
		rpcSymbol: rpcSymbol,
		guards:    guardRegistry,
		metrics:   metricsRegistry,
	}
}

// ProviderCallStats returns a point-in-time snapshot of call volume,
// error rate, latency, and guard state across every provider this
// engine has queried, for the health and report commands.
func (e *Engine) ProviderCallStats() map[string]metrics.ProviderCallStats {
	return e.metrics.ProviderCalls.Snapshot()
}

// ProviderFleetHealth aggregates ProviderCallStats into a single
// healthy/unhealthy rollup.
func (e *Engine) ProviderFleetHealth() metrics.FleetHealth {
	return e.metrics.ProviderCalls.FleetHealth()
}

// ProvidersText renders the current provider call snapshot as a
// plain-text table for the /providers introspection endpoint.
func (e *Engine) ProvidersText() string {
	return e.metrics.ProviderCalls.RenderText()
}

// recordProviderCall folds one provider call's outcome into both the
// Prometheus series (ProviderLatency, ProviderErrors) and the call
// accounting tracker, then syncs the provider's current guard state
// into the latter when a guard registry is wired.
func (e *Engine) recordProviderCall(name string, started time.Time, err error) {
	elapsed := time.Since(started)
	if err != nil {
		errType := "error"
		timeout := errors.Is(err, context.DeadlineExceeded)
		if timeout {
			errType = "timeout"
		}
		e.metrics.RecordProviderError(name, errType)
		e.metrics.ProviderLatency.WithLabelValues(name, "error").Observe(elapsed.Seconds())
		e.metrics.ProviderCalls.RecordFailure(name, timeout)
	} else {
		e.metrics.ProviderLatency.WithLabelValues(name, "ok").Observe(elapsed.Seconds())
		e.metrics.ProviderCalls.RecordSuccess(name, elapsed)
	}
	if e.guards == nil {
		return
	}
	if g := e.guards.Guard(name); g != nil {
		e.metrics.ProviderCalls.SetCircuitState(name, g.Breaker.State())
		used, cap := g.Limiter.Budget()
		e.metrics.ProviderCalls.SetRateLimitBudget(name, used, cap)
	}
}

// isComplete mirrors the enrichment contract's completeness check:
// symbol, market_cap and volume_24h must all be present.
func isComplete(pd *model.PriceData) bool {
	if pd == nil {
		return false
	}
	return pd.Symbol != nil && pd.MarketCap != nil && pd.Volume24h != nil
}

// cacheKey identifies one provider's cached response for a (chain,
// address) pair.
func cacheKey(provider, chain, address string) string {
	return provider + ":" + chain + ":" + address
}

// callCached runs provider.GetPrice, serving a cached response when the
// provider's guard has a fresh one and populating the cache on a fresh
// successful call. A provider with no configured guard (or no guard
// registry at all) always calls through.
func (e *Engine) callCached(ctx context.Context, provider priceproviders.Provider, chain, address string) (*model.PriceData, error) {
	var cache *guards.Cache
	if e.guards != nil {
		if g := e.guards.Guard(provider.Name()); g != nil {
			cache = g.Cache
		}
	}

	key := cacheKey(provider.Name(), chain, address)
	if cache != nil {
		if pd, ok := cache.Get(ctx, key); ok {
			return pd, nil
		}
	}

	pd, err := provider.GetPrice(ctx, chain, address)
	if err == nil && pd != nil {
		pd.AddSource(provider.Name())
		if cache != nil {
			cache.Set(ctx, key, pd)
		}
	}
	return pd, err
}

// GetPrice returns a best-effort merged PriceData, or nil if every
// provider failed.
func (e *Engine) GetPrice(ctx context.Context, chain, address string) *model.PriceData {
	var merged *model.PriceData

	if e.primary != nil {
		start := time.Now()
		pd, err := e.callCached(ctx, e.primary, chain, address)
		e.recordProviderCall(e.primary.Name(), start, err)
		if err != nil {
			log.Debug().Err(err).Str("provider", e.primary.Name()).Msg("primary price provider failed")
		} else if pd != nil {
			merged = pd
		}
	}

	if isComplete(merged) {
		return merged
	}

	secondaryResults := e.queryParallel(ctx, chain, address)
	for _, pd := range secondaryResults {
		merged = mergeInto(merged, pd)
	}

	if merged != nil && merged.Symbol == nil && e.rpcSymbol != nil {
		if sym, err := e.rpcSymbol(ctx, chain, address); err == nil && sym != "" {
			merged.Symbol = &sym
			merged.AddSource("rpc")
		} else if err != nil {
			log.Debug().Err(err).Str("chain", chain).Str("address", address).Msg("on-chain symbol() read failed")
		}
	}

	return merged
}

// queryParallel issues every secondary provider concurrently and
// returns the successful results. A single provider's failure never
// aborts the others.
func (e *Engine) queryParallel(ctx context.Context, chain, address string) []*model.PriceData {
	results := make([]*model.PriceData, len(e.secondary))
	group, gctx := errgroup.WithContext(ctx)

	for i, provider := range e.secondary {
		i, provider := i, provider
		group.Go(func() error {
			start := time.Now()
			pd, err := e.callCached(gctx, provider, chain, address)
			e.recordProviderCall(provider.Name(), start, err)
			if err != nil {
				log.Debug().Err(err).Str("provider", provider.Name()).Msg("secondary price provider failed")
				return nil
			}
			results[i] = pd
			return nil
		})
	}
	_ = group.Wait() // per-provider errors are swallowed above; never propagated

	out := make([]*model.PriceData, 0, len(results))
	for _, pd := range results {
		if pd != nil {
			out = append(out, pd)
		}
	}
	return out
}

// mergeInto folds src's fields into dst without overwriting anything
// already set, and accumulates dst.Source with src's provider names.
func mergeInto(dst, src *model.PriceData) *model.PriceData {
	if src == nil {
		return dst
	}
	if dst == nil {
		return src
	}
	if dst.Symbol == nil {
		dst.Symbol = src.Symbol
	}
	if dst.MarketCap == nil {
		dst.MarketCap = src.MarketCap
	}
	if dst.Volume24h == nil {
		dst.Volume24h = src.Volume24h
	}
	if dst.PriceChange24h == nil {
		dst.PriceChange24h = src.PriceChange24h
	}
	if dst.LiquidityUSD == nil {
		dst.LiquidityUSD = src.LiquidityUSD
	}
	if dst.PairCreatedAt == nil {
		dst.PairCreatedAt = src.PairCreatedAt
	}
	if dst.ATH == nil {
		dst.ATH = src.ATH
	}
	if dst.ATHDate == nil {
		dst.ATHDate = src.ATHDate
	}
	if dst.ATHChangePercentage == nil {
		dst.ATHChangePercentage = src.ATHChangePercentage
	}
	if dst.PriceUSD == 0 {
		dst.PriceUSD = src.PriceUSD
	}
	for _, name := range sourceNames(src.Source) {
		dst.AddSource(name)
	}
	return dst
}

func sourceNames(source string) []string {
	var out []string
	start := 0
	for i := 0; i < len(source); i++ {
		if source[i] == '+' {
			out = append(out, source[start:i])
			start = i + 1
		}
	}
	if start < len(source) {
		out = append(out, source[start:])
	}
	return out
}
