// Package main is the entry point for the portfolio tracker API.
//
// Startup order:
//  1. Load configuration from environment variables (.env supported)
//  2. Initialize logging
//  3. Wire dependencies (databases, repositories, provider client, services, jobs)
//  4. Start the HTTP server and the background price scheduler
//  5. Wait for a shutdown signal and stop both gracefully
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/config"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/di"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/server"
	"github.com/phanhuy16/Portfolio-Tracker-Api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Dur("price_update_interval", cfg.PriceUpdateInterval).
		Dur("staleness_threshold", cfg.StalenessThreshold).
		Msg("Starting portfolio tracker")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	container, jobs, err := di.Wire(cfg, reg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close databases")
		}
	}()

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Container: container,
		Jobs:      jobs.All(),
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	schedulerDone := make(chan struct{})
	go func() {
		container.Scheduler.Run(ctx)
		close(schedulerDone)
	}()

	log.Info().Int("port", cfg.Port).Msg("Portfolio tracker started")

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	select {
	case <-schedulerDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("Scheduler did not stop in time")
	}

	log.Info().Msg("Shutdown complete")
}
