package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/clientdata"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/config"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/scheduler"
)

const databaseCheckSchedule = "@hourly"

// RegisterJobs creates the background jobs and schedules them.
// Returns JobInstances for manual triggering via API.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.Scheduler == nil {
		return nil, fmt.Errorf("services must be initialized before jobs")
	}

	instances := &JobInstances{
		PriceUpdate:   scheduler.NewPriceUpdateJob(container.SyncService, log),
		CacheCleanup:  clientdata.NewCleanupJob(container.ClientDataRepo, log),
		DatabaseCheck: scheduler.NewDatabaseCheckJob(log, container.MarketDB, container.ClientDataDB),
	}

	if err := container.Scheduler.AddInterval(cfg.PriceUpdateInterval, instances.PriceUpdate); err != nil {
		return nil, err
	}
	// Prices are refreshed once at startup rather than after the first interval.
	if err := container.Scheduler.RunAtStart(instances.PriceUpdate.Name()); err != nil {
		return nil, err
	}
	if err := container.Scheduler.AddJob(cfg.CacheCleanupSchedule, instances.CacheCleanup); err != nil {
		return nil, err
	}
	if err := container.Scheduler.AddJob(databaseCheckSchedule, instances.DatabaseCheck); err != nil {
		return nil, err
	}

	return instances, nil
}
