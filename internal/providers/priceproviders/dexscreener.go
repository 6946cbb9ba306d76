package priceproviders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chainsignal/chainsignal/internal/model"
	"github.com/chainsignal/chainsignal/internal/providers/guards"
)

// DexScreenerProvider is the keyless DEX aggregator adapter: it covers
// the pair-detection step and is the primary spot-price source for
// tokens that trade on an on-chain DEX, using the same plain
// net/http + json.Decoder adapter shape as the other provider adapters.
type DexScreenerProvider struct {
	baseURL string
	client  *http.Client
	guard   *guards.ProviderGuard
}

// NewDexScreenerProvider builds the adapter from its guard configuration.
func NewDexScreenerProvider(baseURL string, guard *guards.ProviderGuard) *DexScreenerProvider {
	if baseURL == "" {
		baseURL = "https://api.dexscreener.com/latest/dex"
	}
	timeout := 10 * time.Second
	if guard != nil {
		timeout = guard.Timeout.Timeout()
	}
	return &DexScreenerProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		guard:   guard,
	}
}

func (p *DexScreenerProvider) Name() string { return "dexscreener" }

type dexscreenerPair struct {
	ChainID     string `json:"chainId"`
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	QuoteToken struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
	} `json:"quoteToken"`
	PriceUsd  string `json:"priceUsd"`
	Liquidity struct {
		Usd *float64 `json:"usd"`
	} `json:"liquidity"`
	FDV      *float64 `json:"fdv"`
	MarketCap *float64 `json:"marketCap"`
	Volume   struct {
		H24 *float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		H24 *float64 `json:"h24"`
	} `json:"priceChange"`
}

type dexscreenerResponse struct {
	Pairs []dexscreenerPair `json:"pairs"`
}

func (p *DexScreenerProvider) fetchPairs(ctx context.Context, chain, address string) ([]dexscreenerPair, error) {
	if p.guard != nil && !p.guard.Allow() {
		return nil, guards.ErrBudgetExhausted
	}

	url := fmt.Sprintf("%s/tokens/%s", p.baseURL, address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	run := func() (interface{}, error) {
		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("dexscreener: HTTP %d", resp.StatusCode)
		}
		var out dexscreenerResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("dexscreener: decode: %w", err)
		}
		return out.Pairs, nil
	}

	var result interface{}
	if p.guard != nil {
		result, err = p.guard.Breaker.Execute(run)
	} else {
		result, err = run()
	}
	if err != nil {
		log.Debug().Err(err).Str("chain", chain).Str("address", address).Msg("dexscreener request failed")
		return nil, err
	}
	return result.([]dexscreenerPair), nil
}

// ResolvePair implements PairResolver: an address is treated as a pool
// when DexScreener returns it directly as a pairAddress.
func (p *DexScreenerProvider) ResolvePair(ctx context.Context, chain, address string) (*PairInfo, error) {
	pairs, err := p.fetchPairs(ctx, chain, address)
	if err != nil {
		return nil, err
	}
	for _, pair := range pairs {
		if sameAddress(pair.PairAddress, address) {
			return &PairInfo{IsPair: true, BaseTokenAddr: pair.BaseToken.Address, BaseTokenSym: pair.BaseToken.Symbol}, nil
		}
	}
	return &PairInfo{IsPair: false}, nil
}

// GetPrice implements Provider: picks the highest-liquidity pair among
// those returned for the token and maps it onto model.PriceData.
func (p *DexScreenerProvider) GetPrice(ctx context.Context, chain, address string) (*model.PriceData, error) {
	pairs, err := p.fetchPairs(ctx, chain, address)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("dexscreener: no pairs for %s", address)
	}

	best := pairs[0]
	for _, pair := range pairs[1:] {
		if liquidityOf(pair) > liquidityOf(best) {
			best = pair
		}
	}

	price, err := strconv.ParseFloat(best.PriceUsd, 64)
	if err != nil {
		return nil, fmt.Errorf("dexscreener: parse price: %w", err)
	}

	pd := &model.PriceData{PriceUSD: price}
	if best.MarketCap != nil {
		pd.MarketCap = best.MarketCap
	} else if best.FDV != nil {
		pd.MarketCap = best.FDV
	}
	pd.Volume24h = best.Volume.H24
	pd.PriceChange24h = best.PriceChange.H24
	pd.LiquidityUSD = best.Liquidity.Usd
	pd.AddSource(p.Name())
	return pd, nil
}

func liquidityOf(p dexscreenerPair) float64 {
	if p.Liquidity.Usd == nil {
		return 0
	}
	return *p.Liquidity.Usd
}

func sameAddress(a, b string) bool {
	return len(a) > 0 && len(b) > 0 && strings.EqualFold(a, b)
}
