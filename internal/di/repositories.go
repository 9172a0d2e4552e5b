package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/clientdata"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/modules/portfolio"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/modules/universe"
)

// InitializeRepositories creates all repositories over the open databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.MarketDB == nil || container.ClientDataDB == nil {
		return fmt.Errorf("databases must be initialized before repositories")
	}

	container.InstrumentRepo = universe.NewInstrumentRepository(container.MarketDB.Conn(), log)
	container.HistoryDB = universe.NewHistoryDB(container.MarketDB.Conn(), log)
	container.HoldingRepo = portfolio.NewHoldingRepository(container.MarketDB.Conn(), log)
	container.ClientDataRepo = clientdata.NewRepository(container.ClientDataDB.Conn())

	log.Debug().Msg("Repositories initialized")
	return nil
}
