// Package deadtoken implements the dead-token blacklist detector:
// flags tokens with abnormal on-chain state and persists an
// advisory, single-writer blacklist.
package deadtoken

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chainsignal/chainsignal/internal/store"
)

// Entry is one blacklisted token's recorded reason and on-chain
// snapshot at detection time, persisted to
// data/dead_tokens_blacklist.json.
type Entry struct {
	Chain       string    `json:"chain"`
	Reason      string    `json:"reason"`
	DetectedAt  time.Time `json:"detected_at"`
	TotalSupply float64   `json:"total_supply"`
	Holders     int       `json:"holders"`
	Transfers   int       `json:"transfers"`
}

// Signal is the on-chain snapshot a caller evaluates against the
// abnormality rules.
type Signal struct {
	Price          *float64
	TotalSupplyWei float64
	Transfers      int
	IsUniswapV2Pool bool
	ContractAgeDays float64
}

// Evaluate applies the abnormality rules and returns a reason
// string when the token should be blacklisted, or "" when it's clean.
func Evaluate(s Signal) string {
	if s.Price == nil {
		return "price_null"
	}
	if s.TotalSupplyWei < 1000 {
		return "supply_below_1000_wei"
	}
	if s.Transfers == 0 && s.ContractAgeDays > 7 {
		return "zero_transfers_aged_over_7_days"
	}
	if s.IsUniswapV2Pool && s.TotalSupplyWei < 10000 {
		return "uniswap_v2_pool_supply_below_10000_wei"
	}
	return ""
}

// Blacklist is the single-writer, atomically-persisted store keyed by
// address. A blacklisted token is never automatically removed — the
// blacklist only suppresses repeated price fetches; it is advisory.
type Blacklist struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
}

// New loads the blacklist from disk, treating a missing or corrupt
// file as empty.
func New(path string) *Blacklist {
	b := &Blacklist{path: path, entries: make(map[string]Entry)}
	var onDisk map[string]Entry
	if found, err := store.Load(path, &onDisk); err != nil {
		log.Error().Err(err).Str("path", path).Msg("dead-token blacklist corrupt, starting empty")
	} else if found {
		b.entries = onDisk
	}
	return b
}

// IsBlacklisted reports whether an address has already been flagged.
func (b *Blacklist) IsBlacklisted(address string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.entries[address]
	return ok
}

// Add records a new blacklist entry, a no-op if the address is already
// present (it is never un-blacklisted by a later observation).
func (b *Blacklist) Add(address, chain, reason string, totalSupply float64, holders, transfers int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.entries[address]; ok {
		return
	}
	b.entries[address] = Entry{
		Chain:       chain,
		Reason:      reason,
		DetectedAt:  time.Now(),
		TotalSupply: totalSupply,
		Holders:     holders,
		Transfers:   transfers,
	}
	if err := store.Commit(store.Write{Path: b.path, Value: b.entries}); err != nil {
		log.Error().Err(err).Str("path", b.path).Msg("failed to persist dead-token blacklist")
	}
}

// Get returns the recorded entry for an address, if any.
func (b *Blacklist) Get(address string) (Entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[address]
	return e, ok
}
