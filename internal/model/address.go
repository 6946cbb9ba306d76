// Package model holds the shared data records that flow through the
// signal pipeline: addresses, price snapshots, historical candles,
// checkpoints, and the outcome/reputation records derived from them.
package model

import "strings"

// ChainFamily classifies the shape of a detected address.
type ChainFamily string

const (
	ChainEVM     ChainFamily = "evm"
	ChainSolana  ChainFamily = "solana"
	ChainUnknown ChainFamily = "unknown"
)

// Address is a detected, shape-validated on-chain address.
type Address struct {
	Raw            string      `json:"raw"`
	Family         ChainFamily `json:"family"`
	Valid          bool        `json:"valid"`
	Ticker         *string     `json:"ticker,omitempty"`
	ChainSpecific  *string     `json:"chain_specific,omitempty"`
	IsPool         bool        `json:"is_pool"`
	UnderlyingAddr *string     `json:"underlying_address,omitempty"`
	UnderlyingSym  *string     `json:"underlying_symbol,omitempty"`
	ResolvedFrom   *string     `json:"resolved_from,omitempty"`
}

// Normalized returns the canonical form used for map keys and sinks:
// lower-cased for all address families.
func (a Address) Normalized() string {
	return strings.ToLower(a.Raw)
}
