package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/chainsignal/chainsignal/internal/model"
)

// PostgresUpsertSink writes prices, performance, reputation, and
// cross-channel rows via upsert-on-conflict, built on a pooled pgx/v5
// connection with ON CONFLICT (key) DO UPDATE semantics.
type PostgresUpsertSink struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPostgresUpsertSink dials a pooled pgx/v5 connection.
func NewPostgresUpsertSink(ctx context.Context, dsn string, timeout time.Duration) (*PostgresUpsertSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting postgres upsert sink: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PostgresUpsertSink{pool: pool, timeout: timeout}, nil
}

// Close releases the pool.
func (s *PostgresUpsertSink) Close() {
	s.pool.Close()
}

// UpsertPrice writes the latest known price for an address, keyed by
// the normalized address as the row's primary key.
func (s *PostgresUpsertSink) UpsertPrice(ctx context.Context, address string, pd *model.PriceData) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO token_prices (address, price_usd, market_cap, source, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (address) DO UPDATE SET
			price_usd = EXCLUDED.price_usd,
			market_cap = EXCLUDED.market_cap,
			source = EXCLUDED.source,
			updated_at = EXCLUDED.updated_at`,
		NormalizeAddress(address), pd.PriceUSD, pd.MarketCap, pd.Source)
	if err != nil {
		return fmt.Errorf("upserting token price: %w", err)
	}
	return nil
}

// UpsertPerformance writes a signal outcome's performance row, keyed
// by the (address, first_message_id) composite key required to avoid
// fresh-start collisions.
func (s *PostgresUpsertSink) UpsertPerformance(ctx context.Context, so *model.SignalOutcome) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	firstMessageID := ""
	if len(so.PreviousSignals) > 0 {
		firstMessageID = so.PreviousSignals[0]
	} else {
		firstMessageID = so.MessageID
	}
	key := PerformanceKey(so.Address, firstMessageID)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO signal_performance (performance_key, address, channel_name, ath_multiplier, is_winner, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (performance_key) DO UPDATE SET
			ath_multiplier = EXCLUDED.ath_multiplier,
			is_winner = EXCLUDED.is_winner,
			updated_at = EXCLUDED.updated_at`,
		key, NormalizeAddress(so.Address), so.ChannelName, so.ATHMultiplier, so.IsWinner)
	if err != nil {
		return fmt.Errorf("upserting signal performance: %w", err)
	}
	return nil
}

// PublishReputations upserts every channel's reputation row, the
// scheduler's sink contract.
func (s *PostgresUpsertSink) PublishReputations(ctx context.Context, channels map[string]*model.ChannelReputation) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	for name, rep := range channels {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO channel_reputation (channel_name, reputation_score, reputation_tier, win_rate, total_signals, updated_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (channel_name) DO UPDATE SET
				reputation_score = EXCLUDED.reputation_score,
				reputation_tier = EXCLUDED.reputation_tier,
				win_rate = EXCLUDED.win_rate,
				total_signals = EXCLUDED.total_signals,
				updated_at = EXCLUDED.updated_at`,
			name, rep.ReputationScore, rep.ReputationTier, rep.WinRate, rep.TotalSignals)
		if err != nil {
			return fmt.Errorf("upserting channel reputation for %s: %w", name, err)
		}
	}
	return nil
}

// UpsertCrossChannel writes a per-coin cross-channel aggregate.
func (s *PostgresUpsertSink) UpsertCrossChannel(ctx context.Context, cc *model.CoinCrossChannel) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO coin_cross_channel (address, symbol, mention_weighted_roi, consensus_strength, best_channel, worst_channel, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (address) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			mention_weighted_roi = EXCLUDED.mention_weighted_roi,
			consensus_strength = EXCLUDED.consensus_strength,
			best_channel = EXCLUDED.best_channel,
			worst_channel = EXCLUDED.worst_channel,
			updated_at = EXCLUDED.updated_at`,
		NormalizeAddress(cc.Address), NormalizeSymbol(cc.Symbol), cc.MentionWeightedROI, cc.ConsensusStrength, cc.BestChannel, cc.WorstChannel)
	if err != nil {
		return fmt.Errorf("upserting cross-channel aggregate: %w", err)
	}
	return nil
}

// SQLXMessageSink is the parallel append-only implementation of the
// messages table built on sqlx + lib/pq rather than pgx.
type SQLXMessageSink struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSQLXMessageSink wraps an already-open *sqlx.DB (driver "postgres",
// registered by lib/pq's side-effect import in the caller).
func NewSQLXMessageSink(db *sqlx.DB, timeout time.Duration) *SQLXMessageSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SQLXMessageSink{db: db, timeout: timeout}
}

// Close releases the underlying *sqlx.DB connection pool.
func (s *SQLXMessageSink) Close() error {
	return s.db.Close()
}

// WriteMessage appends a row to the messages table; a duplicate
// message_id (primary key) violation is swallowed as idempotent retry.
func (s *SQLXMessageSink) WriteMessage(ctx context.Context, row MessageRow) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (message_id, channel_name, address, symbol, ts, confidence, hdrb_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		row.MessageID, row.ChannelName, NormalizeAddress(row.Address), NormalizeSymbol(row.Symbol),
		row.Timestamp, row.Confidence, row.HDRBScore)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			log.Debug().Str("message_id", row.MessageID).Msg("duplicate message id, ignoring")
			return nil
		}
		return fmt.Errorf("inserting message row: %w", err)
	}
	return nil
}
