package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// providerLatencyEMAAlpha weights the most recent call's latency against
// the running average: alpha=0.2 means roughly the last 5 calls
// dominate the estimate.
const providerLatencyEMAAlpha = 0.2

// ProviderCallStats is a point-in-time snapshot of one provider's call
// accounting, used by the health command and the /providers endpoint.
type ProviderCallStats struct {
	Provider       string  `json:"provider"`
	Calls          int64   `json:"calls"`
	Successes      int64   `json:"successes"`
	Failures       int64   `json:"failures"`
	Timeouts       int64   `json:"timeouts"`
	ErrorRate      float64 `json:"error_rate_pct"`
	AvgLatencyMS   float64 `json:"avg_latency_ms"`
	CircuitState   string  `json:"circuit_state"`
	RateLimitUsed  int     `json:"rate_limit_used"`
	RateLimitCap   int     `json:"rate_limit_cap"`
	RateLimitPct   float64 `json:"rate_limit_pct"`
}

type providerAccount struct {
	calls        int64
	successes    int64
	failures     int64
	timeouts     int64
	emaLatencyMS float64
	circuitState string
	rlUsed       int
	rlCap        int
}

func (a *providerAccount) snapshot(name string) ProviderCallStats {
	errRate := 0.0
	if a.calls > 0 {
		errRate = float64(a.failures) / float64(a.calls) * 100
	}
	rlPct := 0.0
	if a.rlCap > 0 {
		rlPct = float64(a.rlUsed) / float64(a.rlCap) * 100
	}
	state := a.circuitState
	if state == "" {
		state = "closed"
	}
	return ProviderCallStats{
		Provider:      name,
		Calls:         a.calls,
		Successes:     a.successes,
		Failures:      a.failures,
		Timeouts:      a.timeouts,
		ErrorRate:     errRate,
		AvgLatencyMS:  a.emaLatencyMS,
		CircuitState:  state,
		RateLimitUsed: a.rlUsed,
		RateLimitCap:  a.rlCap,
		RateLimitPct:  rlPct,
	}
}

// ProviderCallTracker accounts for call volume, error rate, EMA-smoothed
// latency, and the last-observed circuit/rate-limit state for every
// price provider the engine has queried. It is a synchronous in-process
// accumulator for the health/report surfaces, not a Prometheus
// collector — ProviderLatency and ProviderErrors on Registry already
// cover the scrape path.
type ProviderCallTracker struct {
	mu       sync.Mutex
	accounts map[string]*providerAccount
}

// NewProviderCallTracker builds an empty tracker.
func NewProviderCallTracker() *ProviderCallTracker {
	return &ProviderCallTracker{accounts: make(map[string]*providerAccount)}
}

func (t *ProviderCallTracker) account(name string) *providerAccount {
	a, ok := t.accounts[name]
	if !ok {
		a = &providerAccount{}
		t.accounts[name] = a
	}
	return a
}

// RecordSuccess folds a successful call's latency into the provider's
// running EMA.
func (t *ProviderCallTracker) RecordSuccess(name string, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a := t.account(name)
	a.calls++
	a.successes++
	ms := float64(latency.Microseconds()) / 1000.0
	if a.calls == 1 {
		a.emaLatencyMS = ms
	} else {
		a.emaLatencyMS = providerLatencyEMAAlpha*ms + (1-providerLatencyEMAAlpha)*a.emaLatencyMS
	}
}

// RecordFailure accounts a failed call; timeout distinguishes a
// deadline-exceeded failure from any other error for reporting.
func (t *ProviderCallTracker) RecordFailure(name string, timeout bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a := t.account(name)
	a.calls++
	a.failures++
	if timeout {
		a.timeouts++
	}
}

// SetCircuitState records the provider's current breaker state as last
// observed by the caller.
func (t *ProviderCallTracker) SetCircuitState(name, state string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.account(name).circuitState = state
}

// SetRateLimitBudget records the provider's current rate-limit usage
// against its configured cap.
func (t *ProviderCallTracker) SetRateLimitBudget(name string, used, cap int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a := t.account(name)
	a.rlUsed = used
	a.rlCap = cap
}

// Snapshot returns a stats record for every provider seen so far.
func (t *ProviderCallTracker) Snapshot() map[string]ProviderCallStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]ProviderCallStats, len(t.accounts))
	for name, a := range t.accounts {
		out[name] = a.snapshot(name)
	}
	return out
}

// FleetHealth aggregates the per-provider snapshot into a single
// healthy/unhealthy count, where unhealthy means an open circuit or an
// error rate above 50%.
type FleetHealth struct {
	TotalProviders     int `json:"total_providers"`
	HealthyProviders   int `json:"healthy_providers"`
	UnhealthyProviders int `json:"unhealthy_providers"`
}

// IsHealthy reports whether every tracked provider is currently healthy.
func (f FleetHealth) IsHealthy() bool {
	return f.TotalProviders > 0 && f.UnhealthyProviders == 0
}

// FleetHealth computes the aggregate health rollup from the current
// snapshot.
func (t *ProviderCallTracker) FleetHealth() FleetHealth {
	snap := t.Snapshot()
	fh := FleetHealth{TotalProviders: len(snap)}
	for _, s := range snap {
		if s.CircuitState == "open" || s.ErrorRate > 50 {
			fh.UnhealthyProviders++
		} else {
			fh.HealthyProviders++
		}
	}
	return fh
}

// RenderText renders the current snapshot as a plain-text table for the
// /providers introspection endpoint.
func (t *ProviderCallTracker) RenderText() string {
	snap := t.Snapshot()
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "%-14s %8s %8s %10s %12s %10s %10s\n", "provider", "calls", "errors", "err_rate%", "avg_ms", "circuit", "rl_pct")
	for _, name := range names {
		s := snap[name]
		fmt.Fprintf(&b, "%-14s %8d %8d %9.1f%% %12.1f %10s %9.1f%%\n",
			s.Provider, s.Calls, s.Failures, s.ErrorRate, s.AvgLatencyMS, s.CircuitState, s.RateLimitPct)
	}
	return b.String()
}
