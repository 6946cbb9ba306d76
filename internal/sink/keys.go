// Package sink implements the two write contracts: an
// append-only message log and upsert tables for prices, performance,
// reputation, and cross-channel aggregates.
package sink

import (
	"math"
	"strconv"
	"strings"
)

// NormalizeAddress lower-cases an on-chain address for use as a
// primary/composite key: addresses are lower-cased.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// NormalizeSymbol upper-cases a token symbol and strips a leading
// apostrophe some spreadsheet exports add to prevent numeric
// auto-formatting: symbols are upper-cased, with a leading ' stripped.
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	return strings.TrimPrefix(s, "'")
}

// PerformanceKey builds the composite key required to prevent
// fresh-start collisions in the performance table: address +
// first_message_id.
func PerformanceKey(address, firstMessageID string) string {
	return NormalizeAddress(address) + "+" + firstMessageID
}

// FormatPrice renders a price avoiding scientific notation, with
// precision scaled to magnitude: 12 decimals below 1e-6, 8 below
// 0.01, 6 otherwise.
func FormatPrice(price float64) string {
	abs := math.Abs(price)
	var decimals int
	switch {
	case abs < 1e-6:
		decimals = 12
	case abs < 0.01:
		decimals = 8
	default:
		decimals = 6
	}
	return strconv.FormatFloat(price, 'f', decimals, 64)
}
