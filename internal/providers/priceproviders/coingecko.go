package priceproviders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chainsignal/chainsignal/internal/model"
	"github.com/chainsignal/chainsignal/internal/providers/guards"
)

// CoinGeckoProvider is the keyed metadata/candle provider: used as a
// secondary source for ATH/market-cap enrichment and as a CandleProvider
// for the Historical Price Service. Grounded on
// the CoinGecko REST API (same base URL shape, same "x-cg-pro-api-key
// header when present").
type CoinGeckoProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	guard   *guards.ProviderGuard
}

func NewCoinGeckoProvider(baseURL, apiKey string, guard *guards.ProviderGuard) *CoinGeckoProvider {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	timeout := 10 * time.Second
	if guard != nil {
		timeout = guard.Timeout.Timeout()
	}
	return &CoinGeckoProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		guard:   guard,
	}
}

func (p *CoinGeckoProvider) Name() string { return "coingecko" }

func (p *CoinGeckoProvider) newRequest(ctx context.Context, path string, query url.Values) (*http.Request, error) {
	u := fmt.Sprintf("%s%s", p.baseURL, path)
	if len(query) > 0 {
		u = u + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if p.apiKey != "" {
		req.Header.Set("x-cg-pro-api-key", p.apiKey)
	}
	return req, nil
}

func (p *CoinGeckoProvider) do(ctx context.Context, req *http.Request, dest interface{}) error {
	if p.guard != nil && !p.guard.Allow() {
		return guards.ErrBudgetExhausted
	}
	run := func() (interface{}, error) {
		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("coingecko: HTTP %d", resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return nil, fmt.Errorf("coingecko: decode: %w", err)
		}
		return dest, nil
	}
	var err error
	if p.guard != nil {
		_, err = p.guard.Breaker.Execute(run)
	} else {
		_, err = run()
	}
	if err != nil {
		log.Debug().Err(err).Str("url", req.URL.String()).Msg("coingecko request failed")
	}
	return err
}

type coingeckoTokenPrice struct {
	MarketData struct {
		CurrentPrice struct {
			Usd float64 `json:"usd"`
		} `json:"current_price"`
		MarketCap struct {
			Usd float64 `json:"usd"`
		} `json:"market_cap"`
		ATH struct {
			Usd float64 `json:"usd"`
		} `json:"ath"`
		ATHChangePercentage struct {
			Usd float64 `json:"usd"`
		} `json:"ath_change_percentage"`
		ATHDate struct {
			Usd time.Time `json:"usd"`
		} `json:"ath_date"`
	} `json:"market_data"`
}

// GetPrice implements Provider, fetching metadata by on-chain contract
// address via CoinGecko's coins/{platform}/contract/{address} endpoint.
func (p *CoinGeckoProvider) GetPrice(ctx context.Context, chain, address string) (*model.PriceData, error) {
	platform := coingeckoPlatform(chain)
	req, err := p.newRequest(ctx, fmt.Sprintf("/coins/%s/contract/%s", platform, address), nil)
	if err != nil {
		return nil, err
	}
	var out coingeckoTokenPrice
	if err := p.do(ctx, req, &out); err != nil {
		return nil, err
	}

	pd := &model.PriceData{PriceUSD: out.MarketData.CurrentPrice.Usd}
	mc := out.MarketData.MarketCap.Usd
	pd.MarketCap = &mc
	ath := out.MarketData.ATH.Usd
	pd.ATH = &ath
	athChange := out.MarketData.ATHChangePercentage.Usd
	pd.ATHChangePercentage = &athChange
	athDate := out.MarketData.ATHDate.Usd
	pd.ATHDate = &athDate
	pd.AddSource(p.Name())
	return pd, nil
}

type coingeckoMarketChartRange struct {
	Prices []([2]float64) `json:"prices"`
}

// DailyCandles implements CandleProvider using market_chart/range, which
// CoinGecko buckets to daily granularity beyond a 1-day window.
func (p *CoinGeckoProvider) DailyCandles(ctx context.Context, symbol, chain, address string, fromUnix, toUnix int64) ([]model.Candle, error) {
	platform := coingeckoPlatform(chain)
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("from", fmt.Sprintf("%d", fromUnix))
	q.Set("to", fmt.Sprintf("%d", toUnix))

	req, err := p.newRequest(ctx, fmt.Sprintf("/coins/%s/contract/%s/market_chart/range", platform, address), q)
	if err != nil {
		return nil, err
	}
	var out coingeckoMarketChartRange
	if err := p.do(ctx, req, &out); err != nil {
		return nil, err
	}

	candles := make([]model.Candle, 0, len(out.Prices))
	for _, point := range out.Prices {
		ts := time.UnixMilli(int64(point[0])).UTC()
		price := point[1]
		candles = append(candles, model.Candle{
			Timestamp: ts,
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
		})
	}
	return candles, nil
}

func coingeckoPlatform(chain string) string {
	switch chain {
	case "evm":
		return "ethereum"
	case "solana":
		return "solana"
	default:
		return chain
	}
}
