package di

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/clients/fmp"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/config"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/metrics"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/modules/portfolio"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/modules/universe"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/scheduler"
)

// InitializeServices creates the provider client and services.
// reg receives the Prometheus collectors; nil uses a private registry.
func InitializeServices(container *Container, cfg *config.Config, reg *prometheus.Registry, log zerolog.Logger) error {
	if container == nil || container.InstrumentRepo == nil {
		return fmt.Errorf("repositories must be initialized before services")
	}

	container.Metrics = metrics.New(reg)

	client, err := fmp.New(fmp.Config{
		APIKey:     cfg.FMPAPIKey,
		BaseURL:    cfg.FMPBaseURL,
		Timeout:    cfg.FMPTimeout,
		BatchPause: cfg.BatchPause,
	}, container.ClientDataRepo, log)
	if err != nil {
		return fmt.Errorf("failed to create FMP client: %w", err)
	}
	client.SetRecorder(container.Metrics)
	container.FMPClient = client

	// The sync service is the single writer of instrument prices and holding price copies.
	container.SyncService = universe.NewSyncService(
		client,
		container.InstrumentRepo,
		container.HistoryDB,
		container.HoldingRepo,
		universe.SyncConfig{
			InstrumentDelay:    cfg.InstrumentDelay,
			StalenessThreshold: cfg.StalenessThreshold,
		},
		log,
	)
	container.SyncService.SetRecorder(container.Metrics)

	container.RegistrationService = universe.NewRegistrationService(
		client,
		container.InstrumentRepo,
		cfg.InstrumentDelay,
		log,
	)

	container.PortfolioService = portfolio.NewService(
		container.HoldingRepo,
		container.InstrumentRepo,
		container.SyncService,
		log,
	)

	container.Scheduler = scheduler.New(log)

	log.Debug().Msg("Services initialized")
	return nil
}
