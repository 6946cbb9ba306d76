package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chainsignal/chainsignal/internal/providers/priceproviders"
)

type fakePairResolver struct {
	info *priceproviders.PairInfo
	err  error
}

func (f *fakePairResolver) ResolvePair(ctx context.Context, chain, address string) (*priceproviders.PairInfo, error) {
	return f.info, f.err
}

func TestResolveReturnsBaseTokenWhenDexAggregatorIdentifiesPair(t *testing.T) {
	r := New(&fakePairResolver{info: &priceproviders.PairInfo{IsPair: true, BaseTokenAddr: "0xbase", BaseTokenSym: "FOO"}}, nil)
	res := r.Resolve(context.Background(), "evm", "0xpair")
	assert.True(t, res.IsPool)
	assert.Equal(t, "0xbase", res.Address)
	assert.Equal(t, "dexscreener", res.ResolvedFrom)
}

func TestResolveKeepsOriginalAddressWhenNotAPair(t *testing.T) {
	r := New(&fakePairResolver{info: &priceproviders.PairInfo{IsPair: false}}, nil)
	res := r.Resolve(context.Background(), "evm", "0xtoken")
	assert.False(t, res.IsPool)
	assert.Equal(t, "0xtoken", res.Address)
}

func TestResolveDowngradesOnProviderFailure(t *testing.T) {
	r := New(&fakePairResolver{err: errors.New("boom")}, nil)
	res := r.Resolve(context.Background(), "evm", "0xtoken")
	assert.False(t, res.IsPool)
	assert.Equal(t, "0xtoken", res.Address)
}

func TestResolveNeverCallsRPCFallbackForSolana(t *testing.T) {
	r := New(&fakePairResolver{info: &priceproviders.PairInfo{IsPair: false}}, nil)
	res := r.Resolve(context.Background(), "solana", "abc123")
	assert.False(t, res.IsPool)
}
