package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProviderCallTrackerAccumulatesCallsAndErrorRate(t *testing.T) {
	tr := NewProviderCallTracker()
	tr.RecordSuccess("dexscreener", 100*time.Millisecond)
	tr.RecordFailure("dexscreener", false)

	snap := tr.Snapshot()["dexscreener"]
	assert.Equal(t, int64(2), snap.Calls)
	assert.Equal(t, int64(1), snap.Successes)
	assert.Equal(t, int64(1), snap.Failures)
	assert.InDelta(t, 50.0, snap.ErrorRate, 0.01)
}

func TestProviderCallTrackerTracksTimeoutsSeparately(t *testing.T) {
	tr := NewProviderCallTracker()
	tr.RecordFailure("coingecko", true)

	snap := tr.Snapshot()["coingecko"]
	assert.Equal(t, int64(1), snap.Failures)
	assert.Equal(t, int64(1), snap.Timeouts)
}

func TestProviderCallTrackerEMASmoothsLatencyTowardRecentCalls(t *testing.T) {
	tr := NewProviderCallTracker()
	tr.RecordSuccess("defillama", 100*time.Millisecond)
	for i := 0; i < 20; i++ {
		tr.RecordSuccess("defillama", 10*time.Millisecond)
	}

	snap := tr.Snapshot()["defillama"]
	assert.InDelta(t, 11.04, snap.AvgLatencyMS, 0.01)
}

func TestProviderCallTrackerRateLimitAndCircuitState(t *testing.T) {
	tr := NewProviderCallTracker()
	tr.SetCircuitState("rpc", "open")
	tr.SetRateLimitBudget("rpc", 8, 10)

	snap := tr.Snapshot()["rpc"]
	assert.Equal(t, "open", snap.CircuitState)
	assert.InDelta(t, 80.0, snap.RateLimitPct, 0.01)
}

func TestFleetHealthCountsOpenCircuitAsUnhealthy(t *testing.T) {
	tr := NewProviderCallTracker()
	tr.RecordSuccess("dexscreener", time.Millisecond)
	tr.RecordSuccess("coingecko", time.Millisecond)
	tr.SetCircuitState("coingecko", "open")

	fh := tr.FleetHealth()
	assert.Equal(t, 2, fh.TotalProviders)
	assert.Equal(t, 1, fh.HealthyProviders)
	assert.Equal(t, 1, fh.UnhealthyProviders)
	assert.False(t, fh.IsHealthy())
}

func TestRenderTextIncludesProviderName(t *testing.T) {
	tr := NewProviderCallTracker()
	tr.RecordSuccess("dexscreener", 5*time.Millisecond)

	out := tr.RenderText()
	assert.Contains(t, out, "dexscreener")
}
