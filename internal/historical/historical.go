// Package historical implements the Historical Price Service:
// nearest-neighbor historical spot lookups and forward-OHLC-with-ATH
// fetches, both backed by a disk cache keyed on the atomic-write
// primitive in internal/store.
package historical

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chainsignal/chainsignal/internal/model"
	"github.com/chainsignal/chainsignal/internal/providers/priceproviders"
	"github.com/chainsignal/chainsignal/internal/store"
)

// Service fetches daily candles from a primary provider, falling back
// to a keyless spot provider for point-in-time lookups.
type Service struct {
	primary   priceproviders.CandleProvider
	fallbacks []priceproviders.CandleProvider
	spot      priceproviders.SpotProvider
	cachePath string
	cache     map[string]cachedEntry
}

type cachedEntry struct {
	Historical model.HistoricalPriceData `json:"historical"`
}

type diskCache struct {
	Entries map[string]cachedEntry `json:"entries"`
}

// New builds a Service with a disk cache rooted at cachePath.
func New(primary priceproviders.CandleProvider, fallbacks []priceproviders.CandleProvider, spot priceproviders.SpotProvider, cachePath string) *Service {
	s := &Service{primary: primary, fallbacks: fallbacks, spot: spot, cachePath: cachePath, cache: make(map[string]cachedEntry)}
	var dc diskCache
	if found, err := store.Load(cachePath, &dc); err != nil {
		log.Error().Err(err).Str("path", cachePath).Msg("historical price cache corrupt, starting empty")
	} else if found {
		s.cache = dc.Entries
	}
	return s
}

func (s *Service) persist() {
	if err := store.Commit(store.Write{Path: s.cachePath, Value: diskCache{Entries: s.cache}}); err != nil {
		log.Error().Err(err).Str("path", s.cachePath).Msg("failed to persist historical price cache")
	}
}

func spotKey(symbol string, day time.Time) string {
	return fmt.Sprintf("spot:%s:%s", symbol, day.UTC().Format("2006-01-02"))
}

func windowKey(symbol string, windowStart time.Time, windowDays int) string {
	return fmt.Sprintf("window:%s:%s:%d", symbol, windowStart.UTC().Format("2006-01-02"), windowDays)
}

// PriceAtTimestamp returns the nearest-neighbor historical spot,
// searched over a 24-hour lookback window of candidate timestamps
// against the daily-candle provider, falling back to the keyed
// chain+address historical spot endpoint.
func (s *Service) PriceAtTimestamp(ctx context.Context, symbol, chain, address string, t time.Time) (*model.HistoricalPriceData, error) {
	key := spotKey(symbol, t)
	if entry, ok := s.cache[key]; ok {
		cached := entry.Historical
		cached.Cached = true
		return &cached, nil
	}

	candidates := []time.Time{
		t,
		time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.UTC),
		time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
		t.Add(-12 * time.Hour),
		t.Add(-24 * time.Hour),
	}

	candles, source, err := s.dailyCandles(ctx, symbol, chain, address, candidates[len(candidates)-1].Unix(), t.Unix())
	if err == nil && len(candles) > 0 {
		price, found := nearestCandlePrice(candles, candidates)
		if found {
			result := &model.HistoricalPriceData{Symbol: symbol, PriceAtTimestamp: price, Source: source}
			s.cache[key] = cachedEntry{Historical: *result}
			s.persist()
			return result, nil
		}
	} else if err != nil {
		log.Debug().Err(err).Str("symbol", symbol).Msg("daily candle lookup failed for PriceAtTimestamp")
	}

	if s.spot != nil && chain != "" && address != "" {
		price, found, spotErr := s.spot.SpotAt(ctx, chain, address, t.Unix())
		if spotErr != nil {
			log.Debug().Err(spotErr).Str("symbol", symbol).Msg("spot historical fallback failed")
		} else if found {
			result := &model.HistoricalPriceData{Symbol: symbol, PriceAtTimestamp: price, Source: s.spot.Name()}
			s.cache[key] = cachedEntry{Historical: *result}
			s.persist()
			return result, nil
		}
	}

	return nil, fmt.Errorf("historical: no price available for %s at %s", symbol, t)
}

// nearestCandlePrice returns the close price of the candle whose
// timestamp is closest to the first candidate time. Any non-empty candle
// set yields a match on that first candidate, so the later candidates in
// the list do not change the result.
func nearestCandlePrice(candles []model.Candle, candidates []time.Time) (float64, bool) {
	var best *model.Candle
	var bestDelta time.Duration = time.Duration(math.MaxInt64)
	for _, candidate := range candidates {
		for i := range candles {
			delta := candles[i].Timestamp.Sub(candidate)
			if delta < 0 {
				delta = -delta
			}
			if delta < bestDelta {
				bestDelta = delta
				best = &candles[i]
			}
		}
		if best != nil {
			return best.Close, true
		}
	}
	return 0, false
}

// ForwardOHLCWithATH computes a forward OHLC window and its ATH.
func (s *Service) ForwardOHLCWithATH(ctx context.Context, symbol, chain, address string, t time.Time, windowDays int) (*model.HistoricalPriceData, error) {
	key := windowKey(symbol, t, windowDays)
	if entry, ok := s.cache[key]; ok {
		cached := entry.Historical
		cached.Cached = true
		return &cached, nil
	}

	from := t.Unix()
	to := t.Add(time.Duration(windowDays) * 24 * time.Hour).Unix()
	candles, source, err := s.dailyCandles(ctx, symbol, chain, address, from, to)
	if err != nil {
		return nil, fmt.Errorf("historical: forward OHLC fetch failed for %s: %w", symbol, err)
	}
	if len(candles) == 0 || allZero(candles) {
		return nil, fmt.Errorf("historical: %s is unlisted over the requested window", symbol)
	}

	entryPrice := candles[0].Open
	athCandle := candles[0]
	for _, c := range candles[1:] {
		if c.High > athCandle.High {
			athCandle = c
		}
	}
	daysToATH := athCandle.Timestamp.Sub(t).Hours() / 24

	result := &model.HistoricalPriceData{
		Symbol:           symbol,
		PriceAtTimestamp: entryPrice,
		ATHInWindow:      athCandle.High,
		ATHTimestamp:     athCandle.Timestamp,
		DaysToATH:        daysToATH,
		Candles:          candles,
		Source:           source,
	}
	s.cache[key] = cachedEntry{Historical: *result}
	s.persist()
	return result, nil
}

func allZero(candles []model.Candle) bool {
	for _, c := range candles {
		if c.Open != 0 || c.High != 0 || c.Low != 0 || c.Close != 0 {
			return false
		}
	}
	return true
}

func (s *Service) dailyCandles(ctx context.Context, symbol, chain, address string, from, to int64) ([]model.Candle, string, error) {
	if s.primary != nil {
		candles, err := s.primary.DailyCandles(ctx, symbol, chain, address, from, to)
		if err == nil && len(candles) > 0 {
			return candles, s.primary.Name(), nil
		}
		if err != nil {
			log.Debug().Err(err).Str("provider", s.primary.Name()).Msg("primary candle provider failed")
		}
	}
	for _, fb := range s.fallbacks {
		candles, err := fb.DailyCandles(ctx, symbol, chain, address, from, to)
		if err == nil && len(candles) > 0 {
			return candles, fb.Name(), nil
		}
		if err != nil {
			log.Debug().Err(err).Str("provider", fb.Name()).Msg("fallback candle provider failed")
		}
	}
	return nil, "", fmt.Errorf("historical: no candle provider returned data for %s", symbol)
}

// BackfillCheckpoints performs smart checkpoint backfilling:
// for a message aged delta, populate every canonical checkpoint whose
// interval is <= delta using the closest candle to entry+interval.
func BackfillCheckpoints(checkpoints map[model.CheckpointKey]model.Checkpoint, candles []model.Candle, entryPrice float64, entryTime time.Time, delta time.Duration) {
	for _, key := range model.CheckpointOrder {
		interval := model.CheckpointInterval(key)
		if interval > delta {
			continue
		}
		target := entryTime.Add(interval)
		var best *model.Candle
		var bestDelta time.Duration = time.Duration(math.MaxInt64)
		for i := range candles {
			d := candles[i].Timestamp.Sub(target)
			if d < 0 {
				d = -d
			}
			if d < bestDelta {
				bestDelta = d
				best = &candles[i]
			}
		}
		if best == nil {
			continue
		}
		cp := checkpoints[key]
		cp.Timestamp = &best.Timestamp
		cp.Price = best.Close
		if entryPrice != 0 {
			cp.ROIMult = best.Close / entryPrice
			cp.ROIPct = (cp.ROIMult - 1) * 100
		}
		cp.Reached = true
		checkpoints[key] = cp
	}
}
