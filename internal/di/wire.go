package di

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/config"
)

// Wire initializes all dependencies and returns a fully configured container
// Order of operations:
// 1. Initialize databases
// 2. Initialize repositories
// 3. Initialize services
// 4. Register jobs
func Wire(cfg *config.Config, reg *prometheus.Registry, log zerolog.Logger) (*Container, *JobInstances, error) {
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := InitializeRepositories(container, log); err != nil {
		_ = container.Close()
		return nil, nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	if err := InitializeServices(container, cfg, reg, log); err != nil {
		_ = container.Close()
		return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	jobs, err := RegisterJobs(container, cfg, log)
	if err != nil {
		_ = container.Close()
		return nil, nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")

	return container, jobs, nil
}
