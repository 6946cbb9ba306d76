package priceproviders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chainsignal/chainsignal/internal/model"
	"github.com/chainsignal/chainsignal/internal/providers/guards"
)

// DefiLlamaProvider is the keyless meta-aggregator used for historical
// spot lookups (a second-choice, defillama-shaped historical endpoint)
// and as a TVL/market-cap fallback source.
type DefiLlamaProvider struct {
	baseURL string
	client  *http.Client
	guard   *guards.ProviderGuard
}

func NewDefiLlamaProvider(baseURL string, guard *guards.ProviderGuard) *DefiLlamaProvider {
	if baseURL == "" {
		baseURL = "https://coins.llama.fi"
	}
	timeout := 10 * time.Second
	if guard != nil {
		timeout = guard.Timeout.Timeout()
	}
	return &DefiLlamaProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		guard:   guard,
	}
}

func (p *DefiLlamaProvider) Name() string { return "defillama" }

type defillamaPriceResponse struct {
	Coins map[string]struct {
		Price     float64 `json:"price"`
		Timestamp int64   `json:"timestamp"`
		Symbol    string  `json:"symbol"`
	} `json:"coins"`
}

func defillamaKey(chain, address string) string {
	switch chain {
	case "evm":
		return "ethereum:" + address
	case "solana":
		return "solana:" + address
	default:
		return chain + ":" + address
	}
}

// SpotAt implements SpotProvider via /prices/historical/{timestamp}/{key}.
func (p *DefiLlamaProvider) SpotAt(ctx context.Context, chain, address string, unixTS int64) (float64, bool, error) {
	if p.guard != nil && !p.guard.Allow() {
		return 0, false, guards.ErrBudgetExhausted
	}
	key := defillamaKey(chain, address)
	url := fmt.Sprintf("%s/prices/historical/%d/%s", p.baseURL, unixTS, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, false, err
	}

	run := func() (interface{}, error) {
		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("defillama: HTTP %d", resp.StatusCode)
		}
		var out defillamaPriceResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("defillama: decode: %w", err)
		}
		return out, nil
	}

	var result interface{}
	if p.guard != nil {
		result, err = p.guard.Breaker.Execute(run)
	} else {
		result, err = run()
	}
	if err != nil {
		log.Debug().Err(err).Str("key", key).Msg("defillama historical lookup failed")
		return 0, false, err
	}

	out := result.(defillamaPriceResponse)
	coin, ok := out.Coins[key]
	if !ok {
		return 0, false, nil
	}
	return coin.Price, true, nil
}

// GetPrice implements Provider using the current-price endpoint, giving
// the Price Engine a keyless fallback source.
func (p *DefiLlamaProvider) GetPrice(ctx context.Context, chain, address string) (*model.PriceData, error) {
	if p.guard != nil && !p.guard.Allow() {
		return nil, guards.ErrBudgetExhausted
	}
	key := defillamaKey(chain, address)
	url := fmt.Sprintf("%s/prices/current/%s", p.baseURL, key)
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
			return nil, fmt.Errorf("defillama: HTTP %d", resp.StatusCode)
		}
		var out defillamaPriceResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("defillama: decode: %w", err)
		}
		return out, nil
	}

	var result interface{}
	if p.guard != nil {
		result, err = p.guard.Breaker.Execute(run)
	} else {
		result, err = run()
	}
	if err != nil {
		return nil, err
	}

	out := result.(defillamaPriceResponse)
	coin, ok := out.Coins[key]
	if !ok {
		return nil, fmt.Errorf("defillama: no price for %s", key)
	}
	pd := &model.PriceData{PriceUSD: coin.Price}
	pd.AddSource(p.Name())
	return pd, nil
}
