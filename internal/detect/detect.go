// Package detect extracts ticker and address mentions from raw chat
// text. Detectors are pure, side-effect-free functions: they only
// shape-check candidates, never validate cryptographically or perform
// network I/O.
package detect

import (
	"regexp"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"

	"github.com/chainsignal/chainsignal/internal/model"
)

var (
	evmAddressPattern    = regexp.MustCompile(`0x[a-fA-F0-9]{40}`)
	solanaAddressPattern = regexp.MustCompile(`\b[1-9A-HJ-NP-Za-km-z]{32,44}\b`)
	wordPattern          = regexp.MustCompile(`[A-Za-z][A-Za-z0-9]*`)
)

// Detector extracts mentions from message text using a configured ticker
// set and keyword list, loaded once at startup from configuration.
type Detector struct {
	tickers  map[string]bool
	keywords []string
	// Functional invariant is tracked for the "marks itself non-functional
	// but does not fail the pipeline" behavior.
	functional bool
}

// NewDetector builds a Detector from the flattened ticker set and the
// keyword list; logs-worthy emptiness is reported via Functional().
func NewDetector(tickers map[string]bool, keywords []string) *Detector {
	lowerKeywords := make([]string, len(keywords))
	for i, k := range keywords {
		lowerKeywords[i] = strings.ToLower(k)
	}
	return &Detector{
		tickers:    tickers,
		keywords:   lowerKeywords,
		functional: len(tickers) > 0 || len(lowerKeywords) > 0,
	}
}

// Functional reports whether the detector has a non-empty ticker set or
// keyword set; callers should log a warning once at startup if false,
// without aborting the pipeline.
func (d *Detector) Functional() bool {
	return d.functional
}

// Mention is one deduplicated extracted item: a ticker symbol or a
// shape-valid address.
type Mention struct {
	Ticker  *string
	Address *model.Address
}

// Detect returns the deduplicated, ordered list of mentions in text:
// uppercased tickers matched case-insensitive whole-word, followed by
// address-shaped substrings.
func (d *Detector) Detect(text string) []Mention {
	var mentions []Mention
	seenTickers := make(map[string]bool)
	seenAddrs := make(map[string]bool)

	for _, word := range wordPattern.FindAllString(text, -1) {
		upper := strings.ToUpper(word)
		if d.tickers[upper] && !seenTickers[upper] {
			seenTickers[upper] = true
			t := upper
			mentions = append(mentions, Mention{Ticker: &t})
		}
	}

	for _, raw := range evmAddressPattern.FindAllString(text, -1) {
		key := strings.ToLower(raw)
		if seenAddrs[key] {
			continue
		}
		seenAddrs[key] = true
		addr := model.Address{Raw: raw, Family: model.ChainEVM, Valid: true}
		mentions = append(mentions, Mention{Address: &addr})
	}

	for _, raw := range solanaAddressPattern.FindAllString(text, -1) {
		key := raw
		if seenAddrs[key] {
			continue
		}
		decoded := base58.Decode(raw)
		if len(decoded) != 32 {
			// Shape-matched the regex but not a valid 32-byte Solana
			// pubkey once decoded — rejected, not an error.
			continue
		}
		seenAddrs[key] = true
		addr := model.Address{Raw: raw, Family: model.ChainSolana, Valid: true}
		mentions = append(mentions, Mention{Address: &addr})
	}

	return mentions
}

// IsCryptoRelevant implements the lightweight classifier:
// true iff mentions is non-empty or any configured keyword matches.
func (d *Detector) IsCryptoRelevant(text string, mentions []Mention) bool {
	if len(mentions) > 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range d.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
