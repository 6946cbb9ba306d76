package model

import "time"

// CheckpointKey identifies one of the six fixed post-entry checkpoints.
type CheckpointKey string

const (
	Checkpoint1h  CheckpointKey = "1h"
	Checkpoint4h  CheckpointKey = "4h"
	Checkpoint24h CheckpointKey = "24h"
	Checkpoint3d  CheckpointKey = "3d"
	Checkpoint7d  CheckpointKey = "7d"
	Checkpoint30d CheckpointKey = "30d"
)

// CheckpointOrder is the canonical, fixed checkpoint set in elapsed-time
// order.
var CheckpointOrder = []CheckpointKey{
	Checkpoint1h, Checkpoint4h, Checkpoint24h, Checkpoint3d, Checkpoint7d, Checkpoint30d,
}

// CheckpointInterval returns the elapsed-time interval a checkpoint key
// represents.
func CheckpointInterval(k CheckpointKey) time.Duration {
	switch k {
	case Checkpoint1h:
		return time.Hour
	case Checkpoint4h:
		return 4 * time.Hour
	case Checkpoint24h:
		return 24 * time.Hour
	case Checkpoint3d:
		return 3 * 24 * time.Hour
	case Checkpoint7d:
		return 7 * 24 * time.Hour
	case Checkpoint30d:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// Checkpoint is one realized ROI observation at a fixed elapsed time.
type Checkpoint struct {
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Price     float64    `json:"price"`
	ROIPct    float64    `json:"roi_pct"`
	ROIMult   float64    `json:"roi_mult"`
	Reached   bool       `json:"reached"`
}

// EntrySource records how the entry price was resolved.
type EntrySource string

const (
	EntrySourceMessageText EntrySource = "message_text"
	EntrySourceCryptoCompare EntrySource = "cryptocompare"
	EntrySourceDefiLlama   EntrySource = "defillama"
	EntrySourceDexscreener EntrySource = "dexscreener"
	EntrySourceCurrentPrice EntrySource = "current_price"
	EntrySourceFallback    EntrySource = "fallback"
	EntrySourceTimeout     EntrySource = "timeout"
)

// Sentiment is the label produced by the pluggable sentiment capability.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Trajectory classifies how price evolved after ATH.
type Trajectory string

const (
	TrajectoryImproved Trajectory = "improved"
	TrajectoryCrashed  Trajectory = "crashed"
)

// PeakTiming classifies how quickly ATH was reached.
type PeakTiming string

const (
	PeakEarly PeakTiming = "early_peaker"
	PeakLate  PeakTiming = "late_peaker"
)

// Status is the SignalOutcome lifecycle state.
type Status string

const (
	StatusInProgress     Status = "in_progress"
	StatusCompleted      Status = "completed"
	StatusDataUnavailable Status = "data_unavailable"
)

// CompletionReason records why a signal stopped tracking.
type CompletionReason string

const (
	Completion30dElapsed CompletionReason = "30d_elapsed"
	Completion90PctLoss  CompletionReason = "90%_loss"
	CompletionHistorical CompletionReason = "historical"
)

// OutcomeCategory is the global ROI ladder used for reporting.
type OutcomeCategory string

const (
	CategoryMoon      OutcomeCategory = "moon"
	CategoryGreat     OutcomeCategory = "great"
	CategoryGood      OutcomeCategory = "good"
	CategoryModerate  OutcomeCategory = "moderate"
	CategoryBreakEven OutcomeCategory = "break_even"
	CategoryLoss      OutcomeCategory = "loss"
)

// ClassifyOutcomeCategory applies the ladder {moon>=5, great>=3, good>=2,
// moderate>=1.5, break_even>=1, loss<1}.
func ClassifyOutcomeCategory(athMultiplier float64) OutcomeCategory {
	switch {
	case athMultiplier >= 5:
		return CategoryMoon
	case athMultiplier >= 3:
		return CategoryGreat
	case athMultiplier >= 2:
		return CategoryGood
	case athMultiplier >= 1.5:
		return CategoryModerate
	case athMultiplier >= 1:
		return CategoryBreakEven
	default:
		return CategoryLoss
	}
}

// SignalOutcome is the per-(channel,address) tracked record.
type SignalOutcome struct {
	// Identity
	MessageID   string  `json:"message_id"`
	ChannelName string  `json:"channel_name"`
	Address     string  `json:"address"`
	Chain       string  `json:"chain"`
	Symbol      *string `json:"symbol,omitempty"`

	// Re-monitoring
	SignalNumber     int      `json:"signal_number"`
	PreviousSignals  []string `json:"previous_signals"`

	// Entry
	EntryPrice       float64     `json:"entry_price"`
	EntryTimestamp   time.Time   `json:"entry_timestamp"`
	EntryConfidence  float64     `json:"entry_confidence"`
	EntrySource      EntrySource `json:"entry_source"`

	// Signal quality
	SentimentLabel Sentiment `json:"sentiment"`
	SentimentScore float64   `json:"sentiment_score"`
	HDRBScore      float64   `json:"hdrb_score"`
	Confidence     float64   `json:"confidence"`

	// Trajectory
	Checkpoints map[CheckpointKey]Checkpoint `json:"checkpoints"`

	// Outcome
	ATHPrice          float64    `json:"ath_price"`
	ATHMultiplier     float64    `json:"ath_multiplier"`
	ATHTimestamp      *time.Time `json:"ath_timestamp,omitempty"`
	DaysToATH         float64    `json:"days_to_ath"`
	CurrentPrice      float64    `json:"current_price"`
	CurrentMultiplier float64    `json:"current_multiplier"`
	Day7Price         *float64   `json:"day_7_price,omitempty"`
	Day7Multiplier    *float64   `json:"day_7_multiplier,omitempty"`
	Day30Price        *float64   `json:"day_30_price,omitempty"`
	Day30Multiplier   *float64   `json:"day_30_multiplier,omitempty"`
	Trajectory        *Trajectory `json:"trajectory,omitempty"`
	PeakTiming        *PeakTiming `json:"peak_timing,omitempty"`

	// Context
	MarketTier MarketTier `json:"market_tier"`
	RiskLevel  string     `json:"risk_level,omitempty"`
	RiskScore  float64    `json:"risk_score,omitempty"`

	// Status
	StatusValue      Status            `json:"status"`
	IsComplete       bool              `json:"is_complete"`
	CompletionReason *CompletionReason `json:"completion_reason,omitempty"`
	IsWinner         bool              `json:"is_winner"`
	OutcomeCategory  OutcomeCategory   `json:"outcome_category"`

	Error string `json:"error,omitempty"`
}

// NewCheckpointMap returns an empty, fully-keyed checkpoint map so callers
// never have to nil-check a missing key.
func NewCheckpointMap() map[CheckpointKey]Checkpoint {
	m := make(map[CheckpointKey]Checkpoint, len(CheckpointOrder))
	for _, k := range CheckpointOrder {
		m[k] = Checkpoint{}
	}
	return m
}
