package priceproviders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chainsignal/chainsignal/internal/providers/guards"
)

// ExplorerProvider wraps an Etherscan-shaped "v2/api" block-explorer
// endpoint, serving the supply and contract-creation lookups of the
// dead-token check; the address resolver does not use it. One
// instance is configured per EVM chain (etherscan, bscscan, etc. all
// share the v2 API shape), using the same query-string request style
// as the other HTTP-backed provider adapters.
type ExplorerProvider struct {
	baseURL string
	apiKey  string
	chainID string
	client  *http.Client
	guard   *guards.ProviderGuard
}

func NewExplorerProvider(baseURL, apiKey, chainID string, guard *guards.ProviderGuard) *ExplorerProvider {
	if baseURL == "" {
		baseURL = "https://api.etherscan.io/v2/api"
	}
	timeout := 10 * time.Second
	if guard != nil {
		timeout = guard.Timeout.Timeout()
	}
	return &ExplorerProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		chainID: chainID,
		client:  &http.Client{Timeout: timeout},
		guard:   guard,
	}
}

func (p *ExplorerProvider) Name() string { return "explorer" }

type explorerEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (p *ExplorerProvider) call(ctx context.Context, params url.Values) (json.RawMessage, error) {
	if p.guard != nil && !p.guard.Allow() {
		return nil, guards.ErrBudgetExhausted
	}
	params.Set("chainid", p.chainID)
	if p.apiKey != "" {
		params.Set("apikey", p.apiKey)
	}
	reqURL := fmt.Sprintf("%s?%s", p.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
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
			return nil, fmt.Errorf("explorer: HTTP %d", resp.StatusCode)
		}
		var env explorerEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return nil, fmt.Errorf("explorer: decode: %w", err)
		}
		if env.Status != "1" {
			return nil, fmt.Errorf("explorer: %s", env.Message)
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
		log.Debug().Err(err).Str("module", params.Get("module")).Str("action", params.Get("action")).Msg("explorer call failed")
		return nil, err
	}
	return result.(json.RawMessage), nil
}

// TokenSupply returns the raw on-chain total supply for an ERC-20/BEP-20
// contract, used by the zero-supply rejection rule.
func (p *ExplorerProvider) TokenSupply(ctx context.Context, address string) (float64, error) {
	q := url.Values{"module": {"stats"}, "action": {"tokensupply"}, "contractaddress": {address}}
	raw, err := p.call(ctx, q)
	if err != nil {
		return 0, err
	}
	var supplyStr string
	if err := json.Unmarshal(raw, &supplyStr); err != nil {
		return 0, fmt.Errorf("explorer: parse supply: %w", err)
	}
	supply, err := strconv.ParseFloat(supplyStr, 64)
	if err != nil {
		return 0, fmt.Errorf("explorer: parse supply value: %w", err)
	}
	return supply, nil
}

// ContractCreationTime returns when a contract was deployed, used as
// the contract age in the dead-token check.
func (p *ExplorerProvider) ContractCreationTime(ctx context.Context, address string) (time.Time, error) {
	q := url.Values{"module": {"contract"}, "action": {"getcontractcreation"}, "contractaddresses": {address}}
	raw, err := p.call(ctx, q)
	if err != nil {
		return time.Time{}, err
	}
	var rows []struct {
		TxHash    string `json:"txHash"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return time.Time{}, fmt.Errorf("explorer: parse creation: %w", err)
	}
	if len(rows) == 0 {
		return time.Time{}, fmt.Errorf("explorer: no creation record for %s", address)
	}
	unixSec, err := strconv.ParseInt(rows[0].Timestamp, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("explorer: parse creation timestamp: %w", err)
	}
	return time.Unix(unixSec, 0).UTC(), nil
}

// EthCall proxies a raw eth_call (module=proxy, action=eth_call) through
// the explorer API. The address resolver does not call it; it reads
// token0()/token1()/symbol() through RPCProvider.
func (p *ExplorerProvider) EthCall(ctx context.Context, to, data string) (string, error) {
	q := url.Values{"module": {"proxy"}, "action": {"eth_call"}, "to": {to}, "data": {data}, "tag": {"latest"}}
	raw, err := p.call(ctx, q)
	if err != nil {
		return "", err
	}
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		return "", fmt.Errorf("explorer: parse eth_call result: %w", err)
	}
	return hex, nil
}
