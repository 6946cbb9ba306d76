// Package filter applies the Token Filter: major-token canonical
// whitelisting, minimum price/market-cap thresholds, and market
// commentary suppression.
package filter

import (
	"regexp"
	"strings"

	"github.com/chainsignal/chainsignal/internal/config"
)

// Candidate is the input to a filter decision.
type Candidate struct {
	Symbol     string
	Address    string
	Chain      string // "evm" | "solana" | "unknown"
	Price      *float64
	MarketCap  *float64
	Supply     *float64
	MessageText string
}

// Verdict is the filter's decision plus a human-readable reason. A
// rejection is a filter verdict, not an error; it is logged at info.
type Verdict struct {
	Admitted bool
	Reason   string
}

// Filter evaluates candidates against the configured thresholds and
// major-token whitelist.
type Filter struct {
	cfg        config.FilterConfig
	majorBySym map[string]config.MajorToken
}

// New builds a Filter from the loaded configuration.
func New(cfg config.FilterConfig) *Filter {
	f := &Filter{cfg: cfg, majorBySym: make(map[string]config.MajorToken)}
	for _, mt := range cfg.MajorTokens {
		f.majorBySym[strings.ToUpper(mt.Symbol)] = mt
	}
	return f
}

var commentaryPattern = regexp.MustCompile(`(?i)\b(rally|mooning|pump(ing)?|dump(ing)?|breakout|ath soon|to the moon)\b`)

// Evaluate applies the filter rules in order and returns an admission verdict.
func (f *Filter) Evaluate(c Candidate) Verdict {
	sym := strings.ToUpper(c.Symbol)

	if major, ok := f.majorBySym[sym]; ok {
		if c.Address == "" {
			if commentaryPattern.MatchString(c.MessageText) {
				return Verdict{Admitted: false, Reason: "market-commentary suppression: " + sym + " mentioned without an address"}
			}
		}

		canonical, hasCanonical := major.CanonicalAddress[c.Chain]
		if hasCanonical && c.Address != "" && !strings.EqualFold(canonical, c.Address) {
			return Verdict{Admitted: false, Reason: "address not canonical for " + sym + " — possible scam"}
		}

		if c.Price != nil {
			if major.MinPrice > 0 && *c.Price < major.MinPrice {
				return Verdict{Admitted: false, Reason: "price too low for " + sym}
			}
			if major.MaxPrice > 0 && *c.Price > major.MaxPrice {
				return Verdict{Admitted: false, Reason: "price too high for " + sym}
			}
		}
		if c.MarketCap != nil && major.MinMarketCap > 0 && *c.MarketCap < major.MinMarketCap {
			return Verdict{Admitted: false, Reason: "market cap too low for " + sym}
		}

		return Verdict{Admitted: true, Reason: "canonical major token"}
	}

	minPrice := f.cfg.MinPrice
	if minPrice <= 0 {
		minPrice = 1e-6
	}
	if c.Price != nil && *c.Price < minPrice {
		return Verdict{Admitted: false, Reason: "price below minimum threshold"}
	}
	if c.MarketCap == nil {
		if !f.cfg.AllowMissingMarketCap {
			return Verdict{Admitted: false, Reason: "market cap unavailable"}
		}
	} else if *c.MarketCap < f.cfg.MinMarketCap {
		return Verdict{Admitted: false, Reason: "market cap below minimum threshold"}
	}
	if c.Supply != nil && *c.Supply == 0 {
		return Verdict{Admitted: false, Reason: "supply is explicitly zero"}
	}

	return Verdict{Admitted: true, Reason: "passed threshold checks"}
}
