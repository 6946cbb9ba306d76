package historical

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsignal/chainsignal/internal/model"
	"github.com/chainsignal/chainsignal/internal/providers/priceproviders"
)

type fakeCandleProvider struct {
	name    string
	candles []model.Candle
	err     error
}

func (f *fakeCandleProvider) Name() string { return f.name }
func (f *fakeCandleProvider) DailyCandles(ctx context.Context, symbol, chain, address string, fromUnix, toUnix int64) ([]model.Candle, error) {
	return f.candles, f.err
}

func TestForwardOHLCWithATHComputesEntryAndATH(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := []model.Candle{
		{Timestamp: base, Open: 1.0, High: 1.2, Low: 0.9, Close: 1.1},
		{Timestamp: base.AddDate(0, 0, 1), Open: 1.1, High: 3.0, Low: 1.0, Close: 2.8},
		{Timestamp: base.AddDate(0, 0, 2), Open: 2.8, High: 2.9, Low: 2.0, Close: 2.2},
	}
	provider := &fakeCandleProvider{name: "coingecko", candles: candles}
	svc := New(provider, nil, nil, filepath.Join(t.TempDir(), "historical.json"))

	result, err := svc.ForwardOHLCWithATH(context.Background(), "FOO", "evm", "0xabc", base, 3)
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.PriceAtTimestamp)
	assert.Equal(t, 3.0, result.ATHInWindow)
	assert.Equal(t, 1.0, result.DaysToATH)
}

func TestForwardOHLCWithATHRejectsAllZeroCandlesAsUnlisted(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	provider := &fakeCandleProvider{name: "coingecko", candles: []model.Candle{{Timestamp: base}}}
	svc := New(provider, nil, nil, filepath.Join(t.TempDir(), "historical.json"))

	_, err := svc.ForwardOHLCWithATH(context.Background(), "FOO", "evm", "0xabc", base, 3)
	assert.Error(t, err)
}

func TestDailyCandlesFallsBackWhenPrimaryFails(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	primary := &fakeCandleProvider{name: "primary", err: errors.New("down")}
	fallback := &fakeCandleProvider{name: "fallback", candles: []model.Candle{
		{Timestamp: base, Open: 1, High: 1, Low: 1, Close: 1},
	}}
	svc := New(primary, []priceproviders.CandleProvider{fallback}, nil, filepath.Join(t.TempDir(), "historical.json"))

	result, err := svc.ForwardOHLCWithATH(context.Background(), "FOO", "evm", "0xabc", base, 1)
	require.NoError(t, err)
	assert.Equal(t, "fallback", result.Source)
}

func TestBackfillCheckpointsOnlyPopulatesIntervalsWithinDelta(t *testing.T) {
	entryTime := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := []model.Candle{
		{Timestamp: entryTime.Add(time.Hour), Close: 1.1},
		{Timestamp: entryTime.Add(4 * time.Hour), Close: 1.2},
	}
	checkpoints := model.NewCheckpointMap()
	BackfillCheckpoints(checkpoints, candles, 1.0, entryTime, 5*time.Hour)

	assert.True(t, checkpoints[model.Checkpoint1h].Reached)
	assert.True(t, checkpoints[model.Checkpoint4h].Reached)
	assert.False(t, checkpoints[model.Checkpoint24h].Reached)
}
