package priceproviders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chainsignal/chainsignal/internal/providers/guards"
)

// SecurityProvider wraps a GoPlus-shaped keyless token-security endpoint:
// honeypot flags, holder counts and LP lock status. The pipeline uses
// its honeypot flag to blacklist a token. It uses
// the same per-adapter guard composition as the other price
// providers in this package.
type SecurityProvider struct {
	baseURL string
	client  *http.Client
	guard   *guards.ProviderGuard
}

func NewSecurityProvider(baseURL string, guard *guards.ProviderGuard) *SecurityProvider {
	if baseURL == "" {
		baseURL = "https://api.gopluslabs.io/api/v1/token_security"
	}
	timeout := 10 * time.Second
	if guard != nil {
		timeout = guard.Timeout.Timeout()
	}
	return &SecurityProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		guard:   guard,
	}
}

func (p *SecurityProvider) Name() string { return "security" }

// TokenSecurity is the subset of the upstream response this adapter
// decodes.
type TokenSecurity struct {
	IsHoneypot      bool
	IsOpenSource    bool
	HolderCount     int
	LPHolderCount   int
	LPTotalSupply   float64
	IsBlacklisted   bool
	BuyTax          float64
	SellTax         float64
}

type goplusEnvelope struct {
	Code    int                              `json:"code"`
	Message string                           `json:"message"`
	Result  map[string]goplusTokenSecurity   `json:"result"`
}

type goplusTokenSecurity struct {
	IsHoneypot      string `json:"is_honeypot"`
	IsOpenSource    string `json:"is_open_source"`
	HolderCount     string `json:"holder_count"`
	LPHolderCount   string `json:"lp_holder_count"`
	LPTotalSupply   string `json:"lp_total_supply"`
	IsBlacklisted   string `json:"is_blacklisted"`
	BuyTax          string `json:"buy_tax"`
	SellTax         string `json:"sell_tax"`
}

// Check looks up the security profile of a single contract address on
// the given numeric chain ID.
func (p *SecurityProvider) Check(ctx context.Context, chainID, address string) (*TokenSecurity, error) {
	if p.guard != nil && !p.guard.Allow() {
		return nil, guards.ErrBudgetExhausted
	}
	url := fmt.Sprintf("%s/%s?contract_addresses=%s", p.baseURL, chainID, address)
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
			return nil, fmt.Errorf("security: HTTP %d", resp.StatusCode)
		}
		var env goplusEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return nil, fmt.Errorf("security: decode: %w", err)
		}
		if env.Code != 1 {
			return nil, fmt.Errorf("security: %s", env.Message)
		}
		return env.Result, nil
	}

	var result interface{}
	if p.guard != nil {
		result, err = p.guard.Breaker.Execute(run)
	} else {
		result, err = run()
	}
	if err != nil {
		log.Debug().Err(err).Str("address", address).Msg("security check failed")
		return nil, err
	}

	byAddress := result.(map[string]goplusTokenSecurity)
	raw, ok := byAddress[address]
	if !ok {
		return nil, fmt.Errorf("security: no result for %s", address)
	}
	return &TokenSecurity{
		IsHoneypot:    raw.IsHoneypot == "1",
		IsOpenSource:  raw.IsOpenSource == "1",
		HolderCount:   atoiOrZero(raw.HolderCount),
		LPHolderCount: atoiOrZero(raw.LPHolderCount),
		LPTotalSupply: atofOrZero(raw.LPTotalSupply),
		IsBlacklisted: raw.IsBlacklisted == "1",
		BuyTax:        atofOrZero(raw.BuyTax),
		SellTax:       atofOrZero(raw.SellTax),
	}, nil
}

func atoiOrZero(s string) int {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil {
		return 0
	}
	return n
}

func atofOrZero(s string) float64 {
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	if err != nil {
		return 0
	}
	return f
}
