package sink

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddressLowercases(t *testing.T) {
	assert.Equal(t, "0xabc123", NormalizeAddress(" 0xABC123 "))
}

func TestNormalizeSymbolUppercasesAndStripsLeadingQuote(t *testing.T) {
	assert.Equal(t, "FOO", NormalizeSymbol("'foo"))
}

func TestFormatPriceAvoidsScientificNotationByMagnitude(t *testing.T) {
	assert.Equal(t, "0.000000001234", FormatPrice(0.000000001234))
	assert.Equal(t, "0.00123400", FormatPrice(0.001234))
	assert.Equal(t, "1.234000", FormatPrice(1.234))
}

func TestCSVSinkWritesHeaderOnceAndDedupesWithinProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.csv")
	s, err := NewCSVSink(path)
	require.NoError(t, err)

	row := MessageRow{MessageID: "msg1", ChannelName: "channel-a", Address: "0xABC", Symbol: "foo", Timestamp: time.Now(), Confidence: 0.8, HDRBScore: 1.5}
	require.NoError(t, s.WriteMessage(row))
	require.NoError(t, s.WriteMessage(row))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
	}
	assert.Equal(t, 2, lines) // header + one data row, duplicate suppressed
}

func TestPerformanceKeyCombinesAddressAndFirstMessageID(t *testing.T) {
	assert.Equal(t, "0xabc+msg1", PerformanceKey("0xABC", "msg1"))
}
