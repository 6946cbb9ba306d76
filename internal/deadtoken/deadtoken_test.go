package deadtoken

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateFlagsNullPrice(t *testing.T) {
	assert.Equal(t, "price_null", Evaluate(Signal{Price: nil, TotalSupplyWei: 1e18}))
}

func TestEvaluateFlagsLowSupply(t *testing.T) {
	price := 0.001
	assert.Equal(t, "supply_below_1000_wei", Evaluate(Signal{Price: &price, TotalSupplyWei: 500}))
}

func TestEvaluateClearsHealthyToken(t *testing.T) {
	price := 1.0
	assert.Equal(t, "", Evaluate(Signal{Price: &price, TotalSupplyWei: 1e18, Transfers: 100, ContractAgeDays: 30}))
}

func TestBlacklistAddIsIdempotentAndNotAutoRemoved(t *testing.T) {
	bl := New(filepath.Join(t.TempDir(), "blacklist.json"))
	bl.Add("0xabc", "evm", "price_null", 0, 0, 0)
	assert.True(t, bl.IsBlacklisted("0xabc"))

	bl.Add("0xabc", "evm", "supply_below_1000_wei", 500, 10, 3)
	entry, _ := bl.Get("0xabc")
	assert.Equal(t, "price_null", entry.Reason)
}
