// Package priceproviders defines the PriceProvider contract used by the
// Price Engine and Historical Price Service fan-outs, plus
// the HTTP-backed adapters for each provider in the canonical preference
// order.
package priceproviders

import (
	"context"

	"github.com/chainsignal/chainsignal/internal/model"
)

// Provider fetches price data for a single (chain, address) pair. Every
// adapter must be non-blocking beyond its own configured timeout and
// must never propagate a transient failure as anything other than an
// error value: a failing provider is skipped rather than allowed to
// abort the whole fan-out.
type Provider interface {
	Name() string
	GetPrice(ctx context.Context, chain, address string) (*model.PriceData, error)
}

// PairResolver is implemented by providers that can identify a DEX pair
// contract and its underlying base token.
type PairResolver interface {
	ResolvePair(ctx context.Context, chain, address string) (*PairInfo, error)
}

// PairInfo describes a DEX pair lookup result.
type PairInfo struct {
	IsPair        bool
	BaseTokenAddr string
	BaseTokenSym  string
}

// CandleProvider fetches daily OHLC candles for historical ROI
// computation.
type CandleProvider interface {
	Name() string
	DailyCandles(ctx context.Context, symbol, chain, address string, fromUnix, toUnix int64) ([]model.Candle, error)
}

// SpotProvider fetches a point-in-time historical spot price keyed by
// (chain:address, unix_ts) — the defillama-shaped historical endpoint
// used as the second-choice lookup.
type SpotProvider interface {
	Name() string
	SpotAt(ctx context.Context, chain, address string, unixTS int64) (float64, bool, error)
}
