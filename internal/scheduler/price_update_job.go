package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/modules/universe"
)

// PriceRefresher refreshes every active instrument.
type PriceRefresher interface {
	RefreshAll(ctx context.Context) universe.SyncReport
}

// PriceUpdateJob refreshes current prices for the whole universe.
type PriceUpdateJob struct {
	sync PriceRefresher
	log  zerolog.Logger
}

// NewPriceUpdateJob creates a new PriceUpdateJob
func NewPriceUpdateJob(sync PriceRefresher, log zerolog.Logger) *PriceUpdateJob {
	return &PriceUpdateJob{
		sync: sync,
		log:  log.With().Str("job", "price_update").Logger(),
	}
}

// Name returns the job name
func (j *PriceUpdateJob) Name() string {
	return "price_update"
}

// Run refreshes all active instruments. Per-instrument failures are logged
// by the sync service; the job fails only when nothing could be updated.
func (j *PriceUpdateJob) Run(ctx context.Context) error {
	report := j.sync.RefreshAll(ctx)

	if report.Total > 0 && !report.Success() && !report.Cancelled {
		return fmt.Errorf("price update %s: none of %d instruments refreshed", report.RunID, report.Total)
	}

	j.log.Info().
		Str("run_id", report.RunID).
		Int("updated", report.Updated).
		Int("total", report.Total).
		Strs("failed", report.Failed).
		Msg("Price update finished")

	return nil
}
