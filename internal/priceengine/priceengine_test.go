package priceengine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chainsignal/chainsignal/internal/model"
	"github.com/chainsignal/chainsignal/internal/providers/priceproviders"
)

type fakeProvider struct {
	name string
	pd   *model.PriceData
	err  error
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) GetPrice(ctx context.Context, chain, address string) (*model.PriceData, error) {
	return f.pd, f.err
}

func strp(s string) *string     { return &s }
func floatp(f float64) *float64 { return &f }

func TestGetPriceReturnsPrimaryWhenComplete(t *testing.T) {
	primary := &fakeProvider{name: "dexscreener", pd: &model.PriceData{
		PriceUSD: 1.0, Symbol: strp("FOO"), MarketCap: floatp(1e6), Volume24h: floatp(1000),
	}}
	e := New(primary, nil, nil, nil, nil)
	got := e.GetPrice(context.Background(), "evm", "0xabc")
	assert.NotNil(t, got)
	assert.Equal(t, "FOO", *got.Symbol)
}

func TestGetPriceMergesSecondaryWithoutOverwritingExistingFields(t *testing.T) {
	primary := &fakeProvider{name: "dexscreener", pd: &model.PriceData{PriceUSD: 1.0}}
	secondary := []priceproviders.Provider{
		&fakeProvider{name: "coingecko", pd: &model.PriceData{Symbol: strp("FOO"), MarketCap: floatp(1e6), Volume24h: floatp(500)}},
	}
	e := New(primary, secondary, nil, nil, nil)
	got := e.GetPrice(context.Background(), "evm", "0xabc")
	assert.NotNil(t, got)
	assert.Equal(t, 1.0, got.PriceUSD)
	assert.Equal(t, "FOO", *got.Symbol)
	assert.Contains(t, got.Source, "coingecko")
}

func TestGetPriceReturnsNilWhenAllProvidersFail(t *testing.T) {
	primary := &fakeProvider{name: "dexscreener", err: errors.New("boom")}
	e := New(primary, nil, nil, nil, nil)
	got := e.GetPrice(context.Background(), "evm", "0xabc")
	assert.Nil(t, got)
}

func TestGetPriceRecordsProviderCallStats(t *testing.T) {
	primary := &fakeProvider{name: "dexscreener", err: errors.New("boom")}
	secondary := []priceproviders.Provider{
		&fakeProvider{name: "coingecko", pd: &model.PriceData{Symbol: strp("FOO")}},
	}
	e := New(primary, secondary, nil, nil, nil)
	e.GetPrice(context.Background(), "evm", "0xabc")

	fh := e.ProviderFleetHealth()
	assert.Equal(t, 2, fh.TotalProviders)
	assert.Equal(t, 1, fh.HealthyProviders)
	assert.Equal(t, 1, fh.UnhealthyProviders)

	stats := e.ProviderCallStats()
	assert.Equal(t, int64(1), stats["dexscreener"].Failures)
	assert.Equal(t, int64(1), stats["coingecko"].Successes)
}
