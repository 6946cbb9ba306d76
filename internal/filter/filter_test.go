package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chainsignal/chainsignal/internal/config"
)

func testFilter() *Filter {
	return New(config.FilterConfig{
		MinPrice:     1e-6,
		MinMarketCap: 50000,
		MajorTokens: []config.MajorToken{
			{
				Symbol:           "ETH",
				CanonicalAddress: map[string]string{"evm": "0xCanonicalETH"},
				MinPrice:         100,
				MaxPrice:         100000,
				MinMarketCap:     1e9,
			},
		},
	})
}

func price(p float64) *float64 { return &p }
func cap_(c float64) *float64  { return &c }

func TestMajorTokenScamAddressRejected(t *testing.T) {
	f := testFilter()
	v := f.Evaluate(Candidate{Symbol: "ETH", Address: "0xdeadbeef", Chain: "evm", Price: price(0.002), MarketCap: cap_(1e12)})
	assert.False(t, v.Admitted)
}

func TestMajorTokenCanonicalAddressAdmitted(t *testing.T) {
	f := testFilter()
	v := f.Evaluate(Candidate{Symbol: "ETH", Address: "0xCanonicalETH", Chain: "evm", Price: price(3000), MarketCap: cap_(1e12)})
	assert.True(t, v.Admitted)
}

func TestMinorTokenBelowMinPriceRejected(t *testing.T) {
	f := testFilter()
	v := f.Evaluate(Candidate{Symbol: "RANDOM", Address: "0xabc", Chain: "evm", Price: price(1e-9), MarketCap: cap_(1e6)})
	assert.False(t, v.Admitted)
}

func TestMinorTokenZeroSupplyRejected(t *testing.T) {
	f := testFilter()
	zero := 0.0
	v := f.Evaluate(Candidate{Symbol: "RANDOM", Address: "0xabc", Chain: "evm", Price: price(1.0), MarketCap: cap_(1e6), Supply: &zero})
	assert.False(t, v.Admitted)
}

func TestMarketCommentarySuppressionWithoutAddress(t *testing.T) {
	f := testFilter()
	v := f.Evaluate(Candidate{Symbol: "ETH", Address: "", Chain: "evm", MessageText: "ETH rally coming soon, mooning hard!"})
	assert.False(t, v.Admitted)
}
