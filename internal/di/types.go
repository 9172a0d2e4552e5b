// Package di provides dependency injection type definitions.
//
// Container holds every long-lived dependency. It is built once by Wire and
// handed to the server and scheduler.
package di

import (
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/clientdata"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/clients/fmp"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/database"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/metrics"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/modules/portfolio"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/modules/universe"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	// Databases
	MarketDB     *database.DB // instruments, price_bars, holdings
	ClientDataDB *database.DB // provider response cache

	// Repositories
	InstrumentRepo *universe.InstrumentRepository
	HistoryDB      *universe.HistoryDB
	HoldingRepo    *portfolio.HoldingRepository
	ClientDataRepo *clientdata.Repository

	// Clients
	FMPClient *fmp.Client

	// Services
	Metrics             *metrics.Metrics
	SyncService         *universe.SyncService
	RegistrationService *universe.RegistrationService
	PortfolioService    *portfolio.Service

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered scheduler jobs for manual triggering.
type JobInstances struct {
	PriceUpdate   *scheduler.PriceUpdateJob
	CacheCleanup  *clientdata.CleanupJob
	DatabaseCheck *scheduler.DatabaseCheckJob
}

// All returns the jobs keyed by name.
func (j *JobInstances) All() map[string]scheduler.Job {
	return map[string]scheduler.Job{
		j.PriceUpdate.Name():   j.PriceUpdate,
		j.CacheCleanup.Name():  j.CacheCleanup,
		j.DatabaseCheck.Name(): j.DatabaseCheck,
	}
}

// Close closes every open database.
func (c *Container) Close() error {
	var firstErr error
	for _, db := range []*database.DB{c.MarketDB, c.ClientDataDB} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
