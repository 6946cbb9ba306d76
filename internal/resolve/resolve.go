// Package resolve implements the Address Resolver: given a
// detected address, decide whether it names a liquidity-pool contract
// and, if so, surface the underlying base token instead.
package resolve

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/chainsignal/chainsignal/internal/providers/priceproviders"
)

// Result is the resolver's verdict for one address.
type Result struct {
	IsPool      bool
	Address     string // the address to use going forward
	Symbol      string // known only when the DEX aggregator resolved it
	ResolvedFrom string // "" | "dexscreener" | "rpc"
}

// Resolver tries the DEX aggregator's pair endpoint first, falling back
// to a raw token0()/token1() RPC read for EVM addresses. Solana
// addresses skip the RPC fallback entirely.
type Resolver struct {
	pairResolver priceproviders.PairResolver
	rpc          *priceproviders.RPCProvider
}

// New builds a Resolver. rpc may be nil when no EVM RPC endpoint is
// configured — the resolver then only tries the DEX aggregator.
func New(pairResolver priceproviders.PairResolver, rpc *priceproviders.RPCProvider) *Resolver {
	return &Resolver{pairResolver: pairResolver, rpc: rpc}
}

// Resolve applies the two-step algorithm. Any provider failure
// downgrades to "not a pair" rather than propagating — resolution
// failures never fail the pipeline.
func (r *Resolver) Resolve(ctx context.Context, chain, address string) Result {
	notAPair := Result{IsPool: false, Address: address}

	if r.pairResolver != nil {
		info, err := r.pairResolver.ResolvePair(ctx, chain, address)
		if err != nil {
			log.Debug().Err(err).Str("chain", chain).Str("address", address).Msg("pair resolution failed, treating as non-pair")
		} else if info != nil && info.IsPair {
			return Result{
				IsPool:       true,
				Address:      info.BaseTokenAddr,
				Symbol:       info.BaseTokenSym,
				ResolvedFrom: "dexscreener",
			}
		}
	}

	if chain != "evm" || r.rpc == nil {
		return notAPair
	}

	token0, token1, err := r.rpc.TokenPair(ctx, address)
	if err != nil || token0 == "" || token1 == "" {
		if err != nil {
			log.Debug().Err(err).Str("address", address).Msg("rpc pair fallback failed, treating as non-pair")
		}
		return notAPair
	}

	return Result{
		IsPool:       true,
		Address:      token0,
		ResolvedFrom: "rpc",
	}
}
