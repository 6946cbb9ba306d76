package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsignal/chainsignal/internal/chatsource"
	"github.com/chainsignal/chainsignal/internal/config"
	"github.com/chainsignal/chainsignal/internal/detect"
	"github.com/chainsignal/chainsignal/internal/model"
)

func testConfig() *config.Config {
	return &config.Config{
		Tickers:   config.Tickers{Categories: map[string][]string{"major": {"ETH", "BTC"}}},
		Keywords:  config.Keywords{Keywords: []string{"moon", "gem"}},
		Filter:    config.DefaultFilterConfig(),
		Providers: config.ProvidersConfig{Providers: map[string]config.ProviderConfig{}},
		Pipeline:  config.DefaultPipelineConfig(),
	}
}

func testEvent(channel, messageID string) chatsource.MessageEvent {
	return chatsource.MessageEvent{ChannelName: channel, MessageID: messageID, Timestamp: time.Now()}
}

// New wires every provider adapter's HTTP client at construction time but
// never dials out until a price/resolve/explorer call is actually made, so
// it can be exercised without network access.
func TestNewBuildsPipelineWithoutNetworkCalls(t *testing.T) {
	dir := t.TempDir()
	p, err := New(context.Background(), testConfig(), Options{DataDir: dir})
	require.NoError(t, err)
	require.NotNil(t, p)
	defer p.Close()

	assert.Empty(t, p.ChannelReputations())
}

func TestCloseIsSafeWithoutPostgres(t *testing.T) {
	dir := t.TempDir()
	p, err := New(context.Background(), testConfig(), Options{DataDir: dir})
	require.NoError(t, err)

	assert.NoError(t, p.Close())
}

func TestEnqueueIncrementsQueueDepth(t *testing.T) {
	dir := t.TempDir()
	p, err := New(context.Background(), testConfig(), Options{DataDir: dir})
	require.NoError(t, err)
	defer p.Close()

	p.Enqueue(testEvent("channel-a", "msg1"))
	assert.Equal(t, 1, p.queue.Len())

	p.Enqueue(testEvent("channel-a", "msg2"))
	assert.Equal(t, 2, p.queue.Len())
}

func TestVerificationReportAccumulatesAndResetsWindow(t *testing.T) {
	dir := t.TempDir()
	p, err := New(context.Background(), testConfig(), Options{DataDir: dir})
	require.NoError(t, err)
	defer p.Close()

	start := p.windowStart
	p.statsMu.Lock()
	p.processed = 3
	p.sentiment["bullish"] = 2
	p.sentiment["bearish"] = 1
	p.latencies = []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}
	p.sinkErrors = 1
	p.queueDropped = 2
	p.statsMu.Unlock()

	now := start.Add(15 * time.Minute)
	report := p.verificationReport(now)

	assert.Equal(t, 3, report.MessagesProcessed)
	assert.Equal(t, 2, report.SentimentCounts["bullish"])
	assert.Equal(t, 1, report.SentimentCounts["bearish"])
	assert.Equal(t, 2, report.QueueDropped)
	assert.InDelta(t, 1.0/3.0, report.SinkErrorRate, 0.0001)
	assert.Equal(t, now, report.WindowEnd)

	// The window resets after a report is rendered.
	follow := p.verificationReport(now.Add(time.Minute))
	assert.Equal(t, 0, follow.MessagesProcessed)
	assert.Equal(t, 0, follow.QueueDropped)
	assert.Empty(t, follow.SentimentCounts)
}

func TestPercentileLatenciesEmpty(t *testing.T) {
	p50, p95, p99 := percentileLatencies(nil)
	assert.Zero(t, p50)
	assert.Zero(t, p95)
	assert.Zero(t, p99)
}

func TestPercentileLatenciesOrdersUnsortedInput(t *testing.T) {
	samples := []time.Duration{
		50 * time.Millisecond,
		10 * time.Millisecond,
		30 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
	}
	p50, p95, p99 := percentileLatencies(samples)
	assert.Equal(t, 30*time.Millisecond, p50)
	assert.Equal(t, 50*time.Millisecond, p95)
	assert.Equal(t, 50*time.Millisecond, p99)
}

func TestResolvedSymbolPrefersPriceDataSymbol(t *testing.T) {
	sym := "WETH"
	got := resolvedSymbol(detect.Mention{}, &model.PriceData{Symbol: &sym})
	assert.Equal(t, "WETH", got)
}

func TestResolvedSymbolFallsBackToTickerThenAddress(t *testing.T) {
	ticker := "ETH"
	got := resolvedSymbol(detect.Mention{Ticker: &ticker}, &model.PriceData{})
	assert.Equal(t, "ETH", got)

	underlying := "PEPE"
	addr := &model.Address{UnderlyingSym: &underlying}
	got = resolvedSymbol(detect.Mention{Address: addr}, &model.PriceData{})
	assert.Equal(t, "PEPE", got)

	assert.Equal(t, "", resolvedSymbol(detect.Mention{}, &model.PriceData{}))
}

func TestSumReactions(t *testing.T) {
	total := sumReactions([]chatsource.Reaction{{Emoji: "🚀", Count: 3}, {Emoji: "🔥", Count: 5}})
	assert.Equal(t, 8, total)
}

func TestValueOrZero(t *testing.T) {
	assert.Equal(t, 0.0, valueOrZero(nil))
	v := 1.5
	assert.Equal(t, 1.5, valueOrZero(&v))
}
