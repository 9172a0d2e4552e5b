package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/config"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/database"
)

// InitializeDatabases opens both databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. market.db - instruments, price history, holdings
	marketDB, err := database.New(database.Config{
		Path:    cfg.MarketDBPath(),
		Profile: database.ProfileStandard,
		Name:    database.NameMarket,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize market database: %w", err)
	}
	container.MarketDB = marketDB

	// 2. client_data.db - provider response cache (safe to delete)
	clientDataDB, err := database.New(database.Config{
		Path:    cfg.ClientDataDBPath(),
		Profile: database.ProfileCache,
		Name:    database.NameClientData,
	})
	if err != nil {
		marketDB.Close()
		return nil, fmt.Errorf("failed to initialize client data database: %w", err)
	}
	container.ClientDataDB = clientDataDB

	for _, db := range []*database.DB{marketDB, clientDataDB} {
		if err := db.Migrate(); err != nil {
			_ = container.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", db.Name(), err)
		}
	}

	log.Info().
		Str("market", marketDB.Path()).
		Str("client_data", clientDataDB.Path()).
		Msg("Databases initialized")

	return container, nil
}
