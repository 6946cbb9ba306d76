package priceproviders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDexScreenerGetPricePicksHighestLiquidityPair(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tokens/0xabc", r.URL.Path)
		resp := dexscreenerResponse{Pairs: []dexscreenerPair{
			{PairAddress: "0xpair1", PriceUsd: "1.5"},
			{PairAddress: "0xpair2", PriceUsd: "1.6"},
		}}
		resp.Pairs[0].Liquidity.Usd = floatPtr(1000)
		resp.Pairs[1].Liquidity.Usd = floatPtr(50000)
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	p := NewDexScreenerProvider(server.URL, nil)
	pd, err := p.GetPrice(context.Background(), "evm", "0xabc")
	require.NoError(t, err)
	assert.Equal(t, 1.6, pd.PriceUSD)
	assert.Equal(t, "dexscreener", pd.Source)
}

func TestDexScreenerResolvePairDetectsPoolAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := dexscreenerResponse{Pairs: []dexscreenerPair{
			{PairAddress: "0xPairAddr", BaseToken: struct {
				Address string `json:"address"`
				Symbol  string `json:"symbol"`
			}{Address: "0xBase", Symbol: "FOO"}},
		}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	p := NewDexScreenerProvider(server.URL, nil)
	info, err := p.ResolvePair(context.Background(), "evm", "0xpairaddr")
	require.NoError(t, err)
	assert.True(t, info.IsPair)
	assert.Equal(t, "0xBase", info.BaseTokenAddr)
}

func TestDefiLlamaSpotAtMissingKeyIsNotFoundNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(defillamaPriceResponse{Coins: map[string]struct {
			Price     float64 `json:"price"`
			Timestamp int64   `json:"timestamp"`
			Symbol    string  `json:"symbol"`
		}{}}))
	}))
	defer server.Close()

	p := NewDefiLlamaProvider(server.URL, nil)
	_, found, err := p.SpotAt(context.Background(), "evm", "0xabc", 1700000000)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDecodeAddressReturnExtractsRightAligned20Bytes(t *testing.T) {
	padded := make([]byte, 32)
	addrBytes := []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	copy(padded[12:], addrBytes)
	got := decodeAddressReturn(padded)
	assert.Equal(t, "0xdeadbeef00000000000000000000000000000000", strings.ToLower(got))
}

func TestDecodeStringReturnHandlesDynamicABIEncoding(t *testing.T) {
	// offset (32) + length (3) + "FOO" padded to 32 bytes
	out := make([]byte, 96)
	out[31] = 32
	out[63] = 3
	copy(out[64:], []byte("FOO"))
	assert.Equal(t, "FOO", decodeStringReturn(out))
}

func floatPtr(f float64) *float64 { return &f }
