// Package chain provides the lightweight chain-hint classifier: it
// inspects message text for DEX/platform names and address shapes to
// bias later resolver calls toward the right chain.
package chain

import "strings"

// Hint is the classifier's best guess at which chain a message concerns.
type Hint string

const (
	HintEVM     Hint = "evm"
	HintSolana  Hint = "solana"
	HintUnknown Hint = "unknown"
)

var evmPlatformKeywords = []string{
	"uniswap", "pancakeswap", "sushiswap", "etherscan", "bscscan",
	"arbiscan", "basescan", "polygonscan", "metamask", "erc-20", "erc20",
}

var solanaPlatformKeywords = []string{
	"raydium", "jupiter", "phantom", "solscan", "pump.fun", "orca",
	"spl-token", "spl token",
}

// Classify returns a chain hint from message text and any already-detected
// address families (the latter dominates when present).
func Classify(text string, detectedFamilies []string) Hint {
	for _, f := range detectedFamilies {
		switch f {
		case "evm":
			return HintEVM
		case "solana":
			return HintSolana
		}
	}

	lower := strings.ToLower(text)
	for _, kw := range evmPlatformKeywords {
		if strings.Contains(lower, kw) {
			return HintEVM
		}
	}
	for _, kw := range solanaPlatformKeywords {
		if strings.Contains(lower, kw) {
			return HintSolana
		}
	}
	return HintUnknown
}
