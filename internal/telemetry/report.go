package telemetry

import (
	"fmt"
	"strings"
	"time"
)

// MessageBlock is the per-message human-structured console block:
// HDRB, mentions, addresses, sentiment, confidence badge, processing time.
type MessageBlock struct {
	ChannelName    string
	MessageID      string
	HDRBScore      float64
	Mentions       []string
	Addresses      []string
	SentimentLabel string
	SentimentScore float64
	Confidence     float64
	ConfidenceHigh bool
	ProcessingTime time.Duration
}

// Render formats the block as a human-readable console report.
func (b MessageBlock) Render() string {
	badge := "LOW"
	if b.ConfidenceHigh {
		badge = "HIGH"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] msg=%s hdrb=%.1f mentions=%s addresses=%s sentiment=%s(%.2f) confidence=%.2f[%s] took=%s\n",
		b.ChannelName, b.MessageID, b.HDRBScore,
		strings.Join(b.Mentions, ","), strings.Join(b.Addresses, ","),
		b.SentimentLabel, b.SentimentScore, b.Confidence, badge, b.ProcessingTime)
	return sb.String()
}

// VerificationReport periodically summarizes pipeline health.
type VerificationReport struct {
	WindowStart        time.Time
	WindowEnd          time.Time
	MessagesProcessed  int
	SentimentCounts    map[string]int
	LatencyP50         time.Duration
	LatencyP95         time.Duration
	LatencyP99         time.Duration
	SinkErrorRate      float64
	QueueDropped       int
}

// Render formats the report for console output.
func (r VerificationReport) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== verification report %s -> %s ===\n", r.WindowStart.Format(time.RFC3339), r.WindowEnd.Format(time.RFC3339))
	fmt.Fprintf(&sb, "messages=%d dropped=%d sink_error_rate=%.3f\n", r.MessagesProcessed, r.QueueDropped, r.SinkErrorRate)
	fmt.Fprintf(&sb, "latency p50=%s p95=%s p99=%s\n", r.LatencyP50, r.LatencyP95, r.LatencyP99)
	for label, count := range r.SentimentCounts {
		fmt.Fprintf(&sb, "  sentiment[%s]=%d\n", label, count)
	}
	return sb.String()
}
