package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// MessageRow is one append-only row of the messages table: a row is
// written for every admitted
// message").
type MessageRow struct {
	MessageID   string
	ChannelName string
	Address     string
	Symbol      string
	Timestamp   time.Time
	Confidence  float64
	HDRBScore   float64
}

var csvHeader = []string{"message_id", "channel_name", "address", "symbol", "timestamp", "confidence", "hdrb_score"}

// CSVSink appends message rows to a CSV file, re-opening in append
// mode on every call so the sink survives process restarts, and
// keeps a run-scoped dedupe set so a message admitted twice within
// one process lifetime is written once.
type CSVSink struct {
	mu      sync.Mutex
	path    string
	seen    map[string]struct{}
}

// NewCSVSink prepares a CSV sink at path, writing the header if the
// file doesn't already exist.
func NewCSVSink(path string) (*CSVSink, error) {
	s := &CSVSink{path: path, seen: make(map[string]struct{})}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("creating csv sink file: %w", err)
		}
		defer f.Close()
		w := csv.NewWriter(f)
		if err := w.Write(csvHeader); err != nil {
			return nil, fmt.Errorf("writing csv header: %w", err)
		}
		w.Flush()
	}
	return s, nil
}

// WriteMessage appends a row, skipping message IDs already written
// in this process (idempotent-by-reopen).
func (s *CSVSink) WriteMessage(row MessageRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen[row.MessageID]; dup {
		return nil
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening csv sink file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	record := []string{
		row.MessageID,
		row.ChannelName,
		NormalizeAddress(row.Address),
		NormalizeSymbol(row.Symbol),
		row.Timestamp.UTC().Format(time.RFC3339),
		FormatPrice(row.Confidence),
		FormatPrice(row.HDRBScore),
	}
	if err := w.Write(record); err != nil {
		return fmt.Errorf("writing csv row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	s.seen[row.MessageID] = struct{}{}
	log.Debug().Str("message_id", row.MessageID).Msg("message row appended to csv sink")
	return nil
}
