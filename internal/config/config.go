// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned when no market-data provider credential is configured.
var ErrMissingAPIKey = errors.New("FMP_API_KEY is required")

const defaultFMPBaseURL = "https://financialmodelingprep.com/api/v3/"

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	// Market-data provider (Financial Modeling Prep)
	FMPAPIKey  string
	FMPBaseURL string
	FMPTimeout time.Duration

	// Price synchronization
	PriceUpdateInterval time.Duration // Background refresh interval
	StalenessThreshold  time.Duration // Max age of a holding price before a read refreshes it
	InstrumentDelay     time.Duration // Pause between instruments in sequential refreshes
	BatchPause          time.Duration // Pause between batched quote requests

	CacheCleanupSchedule string // cron spec for client data cleanup
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:              absDataDir,
		Port:                 getEnvAsInt("PORT", 8080),
		DevMode:              getEnvAsBool("DEV_MODE", false),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		FMPAPIKey:            getEnv("FMP_API_KEY", ""),
		FMPBaseURL:           getEnv("FMP_BASE_URL", defaultFMPBaseURL),
		FMPTimeout:           time.Duration(getEnvAsInt("FMP_TIMEOUT_SECONDS", 30)) * time.Second,
		PriceUpdateInterval:  time.Duration(getEnvAsInt("PRICE_UPDATE_INTERVAL_MINUTES", 15)) * time.Minute,
		StalenessThreshold:   time.Duration(getEnvAsInt("STALENESS_THRESHOLD_MINUTES", 15)) * time.Minute,
		InstrumentDelay:      time.Duration(getEnvAsInt("INSTRUMENT_DELAY_MS", 300)) * time.Millisecond,
		BatchPause:           time.Duration(getEnvAsInt("BATCH_PAUSE_MS", 500)) * time.Millisecond,
		CacheCleanupSchedule: getEnv("CACHE_CLEANUP_SCHEDULE", "@daily"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.FMPAPIKey == "" {
		return ErrMissingAPIKey
	}
	if c.PriceUpdateInterval <= 0 {
		return fmt.Errorf("PRICE_UPDATE_INTERVAL_MINUTES must be positive")
	}
	if c.StalenessThreshold <= 0 {
		return fmt.Errorf("STALENESS_THRESHOLD_MINUTES must be positive")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	return nil
}

// MarketDBPath is the instruments/price history/holdings database.
func (c *Config) MarketDBPath() string {
	return filepath.Join(c.DataDir, "market.db")
}

// ClientDataDBPath is the provider response cache database.
func (c *Config) ClientDataDBPath() string {
	return filepath.Join(c.DataDir, "client_data.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
