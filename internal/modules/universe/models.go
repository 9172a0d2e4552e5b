package universe

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sync run kinds, used for logging and metrics.
const (
	SyncKindAll      = "all"
	SyncKindBatch    = "batch"
	SyncKindBackfill = "backfill"
)

// RefreshOutcome describes one instrument refresh.
type RefreshOutcome struct {
	UpdatedAt       time.Time       `json:"updated_at"`
	Symbol          string          `json:"symbol"`
	Price           decimal.Decimal `json:"price"`
	InstrumentID    int64           `json:"instrument_id"`
	HoldingsUpdated int             `json:"holdings_updated"`
	SyntheticPrice  bool            `json:"synthetic_price"`
	SyntheticBar    bool            `json:"synthetic_bar"`
}

// SyncReport summarizes a bulk, batch or backfill run.
// Per-instrument failures are listed, never returned as errors.
type SyncReport struct {
	RunID       string        `json:"run_id"`
	Kind        string        `json:"kind"`
	Failed      []string      `json:"failed"`
	Updated     int           `json:"updated"`
	Total       int           `json:"total"`
	BarsWritten int           `json:"bars_written,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
	Cancelled   bool          `json:"cancelled,omitempty"`
}

// Success reports whether the run updated anything.
func (r SyncReport) Success() bool {
	return r.Updated > 0
}
