package detect

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDetector() *Detector {
	return NewDetector(map[string]bool{"BTC": true, "ETH": true, "SOL": true}, []string{"airdrop", "moon"})
}

func TestDetectTickersCaseInsensitiveWholeWord(t *testing.T) {
	d := testDetector()
	mentions := d.Detect("just bought some btc and ETH, not btcx though")
	var tickers []string
	for _, m := range mentions {
		if m.Ticker != nil {
			tickers = append(tickers, *m.Ticker)
		}
	}
	assert.ElementsMatch(t, []string{"BTC", "ETH"}, tickers)
}

func TestDetectDedupes(t *testing.T) {
	d := testDetector()
	mentions := d.Detect("BTC btc BTC")
	count := 0
	for _, m := range mentions {
		if m.Ticker != nil {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestDetectEVMAddress(t *testing.T) {
	d := testDetector()
	mentions := d.Detect("check out 0x1234567890123456789012345678901234567890 now")
	require.Len(t, mentions, 1)
	require.NotNil(t, mentions[0].Address)
	assert.Equal(t, "evm", string(mentions[0].Address.Family))
}

func TestDetectSolanaAddressOnlyKeepsValid32ByteDecodes(t *testing.T) {
	d := testDetector()
	mentions := d.Detect("DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB4")
	for _, m := range mentions {
		if m.Address != nil {
			assert.Equal(t, 32, len(base58.Decode(m.Address.Raw)))
		}
	}
}

func TestIsCryptoRelevant(t *testing.T) {
	d := testDetector()
	assert.True(t, d.IsCryptoRelevant("no mentions here but airdrop soon", nil))
	assert.False(t, d.IsCryptoRelevant("just a regular message", nil))
}
