package universe

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/clients/fmp"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/domain"
)

// QuoteClient is the market-data provider as seen by price sync.
// Implemented by fmp.Client.
type QuoteClient interface {
	GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	GetCurrentPrices(ctx context.Context, symbols []string) map[string]decimal.Decimal
	GetLatestBar(ctx context.Context, symbol string, asOf time.Time) (domain.PriceBar, error)
	GetHistoricalBars(ctx context.Context, symbol string, from, to time.Time) ([]domain.PriceBar, error)
}

// ProfileClient supplies company details at registration.
type ProfileClient interface {
	GetProfile(ctx context.Context, symbol string) (fmp.Profile, error)
	GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// InstrumentStore defines the contract for instrument directory operations.
// Implemented by InstrumentRepository.
type InstrumentStore interface {
	Create(ctx context.Context, inst *domain.Instrument) (int64, error)
	GetBySymbol(ctx context.Context, symbol string) (*domain.Instrument, error)
	GetByID(ctx context.Context, id int64) (*domain.Instrument, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Instrument, error)
	UpdatePrice(ctx context.Context, id int64, price decimal.Decimal, at time.Time) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// BarStore defines the contract for price history operations.
// Implemented by HistoryDB.
type BarStore interface {
	Upsert(ctx context.Context, bar domain.PriceBar) error
	UpsertMany(ctx context.Context, bars []domain.PriceBar) error
	Range(ctx context.Context, instrumentID int64, from, to time.Time) ([]domain.PriceBar, error)
	Latest(ctx context.Context, instrumentID int64) (*domain.PriceBar, error)
}

// HoldingPriceWriter receives propagated prices.
// Implemented by portfolio.HoldingRepository.
type HoldingPriceWriter interface {
	UpdatePriceForInstrument(ctx context.Context, instrumentID int64, price decimal.Decimal, at time.Time) (int, error)
}

// SyncRecorder receives sync instrumentation. Implemented by metrics.Metrics.
type SyncRecorder interface {
	ObserveSync(kind string, d time.Duration)
	InstrumentRefreshed(source string)
	RefreshFailed()
	BarsWritten(n int)
	HoldingsPropagated(n int)
}
