package priceproviders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"

	"github.com/chainsignal/chainsignal/internal/providers/guards"
)

// token0()/token1()/symbol() function selectors — the three calls the
// EVM resolver fallback needs, for calling token0()/token1() on the pair
// contract directly over RPC when the DEX aggregator doesn't resolve
// it").
const (
	selectorToken0 = "0dfe1681"
	selectorToken1 = "d21220a7"
	selectorSymbol = "95d89b41"
)

// RPCProvider is a thin ethclient.CallContract wrapper used as the last
// resort in the address resolver's fallback chain, built on
// ethclient.Dial + CallContract.
type RPCProvider struct {
	client *ethclient.Client
	guard  *guards.ProviderGuard
}

// NewRPCProvider dials the configured JSON-RPC endpoint once at
// startup; ethclient.Client is safe for concurrent use.
func NewRPCProvider(rpcURL string, guard *guards.ProviderGuard) (*RPCProvider, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", rpcURL, err)
	}
	return &RPCProvider{client: client, guard: guard}, nil
}

func (p *RPCProvider) Name() string { return "rpc" }

func (p *RPCProvider) call(ctx context.Context, to common.Address, selector string) ([]byte, error) {
	if p.guard != nil && !p.guard.Allow() {
		return nil, guards.ErrBudgetExhausted
	}
	data := common.FromHex("0x" + selector)
	msg := ethereum.CallMsg{To: &to, Data: data}

	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if p.guard != nil {
		callCtx, cancel = context.WithTimeout(ctx, p.guard.Timeout.Timeout())
		defer cancel()
	}

	run := func() (interface{}, error) {
		return p.client.CallContract(callCtx, msg, nil)
	}

	var result interface{}
	var err error
	if p.guard != nil {
		result, err = p.guard.Breaker.Execute(run)
	} else {
		result, err = run()
	}
	if err != nil {
		log.Debug().Err(err).Str("to", to.Hex()).Str("selector", selector).Msg("eth_call failed")
		return nil, err
	}
	return result.([]byte), nil
}

// TokenPair returns the (token0, token1) addresses of an AMM pair
// contract, resolving the "is this address a pool?" question when
// the DEX aggregator didn't already answer it.
func (p *RPCProvider) TokenPair(ctx context.Context, pairAddress string) (token0, token1 string, err error) {
	addr := common.HexToAddress(pairAddress)

	out0, err := p.call(ctx, addr, selectorToken0)
	if err != nil {
		return "", "", fmt.Errorf("rpc: token0(): %w", err)
	}
	out1, err := p.call(ctx, addr, selectorToken1)
	if err != nil {
		return "", "", fmt.Errorf("rpc: token1(): %w", err)
	}
	return decodeAddressReturn(out0), decodeAddressReturn(out1), nil
}

// Symbol returns an ERC-20 contract's symbol() string.
func (p *RPCProvider) Symbol(ctx context.Context, tokenAddress string) (string, error) {
	addr := common.HexToAddress(tokenAddress)
	out, err := p.call(ctx, addr, selectorSymbol)
	if err != nil {
		return "", fmt.Errorf("rpc: symbol(): %w", err)
	}
	return decodeStringReturn(out), nil
}

// decodeAddressReturn extracts the right-aligned 20-byte address from a
// 32-byte ABI-encoded return value.
func decodeAddressReturn(out []byte) string {
	if len(out) < 32 {
		return ""
	}
	return common.BytesToAddress(out[12:32]).Hex()
}

// decodeStringReturn trims the ABI dynamic-string encoding (offset +
// length + data) down to the symbol text, tolerating the bytes32-packed
// variant some older ERC-20s (e.g. early MKR) use instead.
func decodeStringReturn(out []byte) string {
	if len(out) == 32 {
		return strings.TrimRight(string(out), "\x00")
	}
	if len(out) < 64 {
		return ""
	}
	length := int(out[63])
	if 64+length > len(out) {
		return ""
	}
	return strings.TrimRight(string(out[64:64+length]), "\x00")
}
