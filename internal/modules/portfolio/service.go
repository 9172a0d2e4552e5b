// Package portfolio provides holdings and portfolio valuation.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/domain"
)

// ErrInvalidHolding is returned for non-positive quantities or purchase prices.
var ErrInvalidHolding = errors.New("invalid holding")

// StaleRefresher refreshes the instruments behind stale holding prices.
// Implemented by universe.SyncService; defined here to avoid an import cycle.
type StaleRefresher interface {
	RefreshIfStale(ctx context.Context, holdings []domain.Holding) int
}

// InstrumentLookup resolves symbols to directory instruments.
type InstrumentLookup interface {
	GetBySymbol(ctx context.Context, symbol string) (*domain.Instrument, error)
}

// Dashboard is the condensed summary view.
type Dashboard struct {
	TotalInvestment      decimal.Decimal     `json:"total_investment"`
	CurrentValue         decimal.NullDecimal `json:"current_value"`
	ProfitLoss           decimal.NullDecimal `json:"profit_loss"`
	ProfitLossPercentage decimal.NullDecimal `json:"profit_loss_percentage"`
	TopPerformers        []Performer         `json:"top_performers"`
	WorstPerformers      []Performer         `json:"worst_performers"`
	TotalHoldings        int                 `json:"total_holdings"`
}

// Service serves an owner's holdings and valuations.
//
// Every read refreshes stale holding prices first, synchronously, so the
// response carries prices no older than the staleness threshold whenever the
// provider (or the synthetic fallback) can supply one.
type Service struct {
	holdings    *HoldingRepository
	instruments InstrumentLookup
	refresher   StaleRefresher
	log         zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(
	holdings *HoldingRepository,
	instruments InstrumentLookup,
	refresher StaleRefresher,
	log zerolog.Logger,
) *Service {
	return &Service{
		holdings:    holdings,
		instruments: instruments,
		refresher:   refresher,
		log:         log.With().Str("service", "portfolio").Logger(),
	}
}

// GetHoldings returns the owner's valued holdings ordered by id.
func (s *Service) GetHoldings(ctx context.Context, ownerID string) ([]HoldingValuation, error) {
	holdings, err := s.freshHoldings(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return ValuateAll(holdings), nil
}

// GetSummary returns totals with the five best and worst performers.
func (s *Service) GetSummary(ctx context.Context, ownerID string) (PortfolioSummary, error) {
	holdings, err := s.freshHoldings(ctx, ownerID)
	if err != nil {
		return PortfolioSummary{}, err
	}
	return Summarize(holdings, SummaryPerformers), nil
}

// GetDashboard returns totals with the three best and worst performers.
func (s *Service) GetDashboard(ctx context.Context, ownerID string) (Dashboard, error) {
	holdings, err := s.freshHoldings(ctx, ownerID)
	if err != nil {
		return Dashboard{}, err
	}

	summary := Summarize(holdings, DashboardPerformers)
	return Dashboard{
		TotalHoldings:        summary.TotalHoldings,
		TotalInvestment:      summary.TotalInvestment,
		CurrentValue:         summary.TotalCurrentValue,
		ProfitLoss:           summary.TotalProfitLoss,
		ProfitLossPercentage: summary.TotalProfitLossPercentage,
		TopPerformers:        summary.TopPerformers,
		WorstPerformers:      summary.WorstPerformers,
	}, nil
}

// GetAllocation returns the owner's priced value by industry.
func (s *Service) GetAllocation(ctx context.Context, ownerID string) ([]IndustryAllocation, error) {
	holdings, err := s.freshHoldings(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return Allocate(ValuateAll(holdings)), nil
}

// GetMovers returns the owner's biggest gainers and losers.
func (s *Service) GetMovers(ctx context.Context, ownerID string) (Movers, error) {
	holdings, err := s.freshHoldings(ctx, ownerID)
	if err != nil {
		return Movers{}, err
	}
	return RankMovers(ValuateAll(holdings)), nil
}

// AddHolding records a position in symbol for the owner.
// The symbol must already be registered in the directory.
func (s *Service) AddHolding(
	ctx context.Context,
	ownerID, symbol string,
	quantity, purchasePrice decimal.Decimal,
	purchaseDate time.Time,
) (*domain.Holding, error) {
	if err := validateHolding(ownerID, quantity, purchasePrice); err != nil {
		return nil, err
	}

	inst, err := s.instruments.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if purchaseDate.IsZero() {
		purchaseDate = time.Now().UTC()
	}

	h := &domain.Holding{
		OwnerID:       ownerID,
		InstrumentID:  inst.ID,
		Quantity:      quantity,
		PurchasePrice: purchasePrice,
		PurchaseDate:  purchaseDate,
	}
	if _, err := s.holdings.Create(ctx, h); err != nil {
		return nil, err
	}

	return s.holdings.GetByOwnerAndInstrument(ctx, ownerID, inst.ID)
}

// UpdateHolding changes quantity and purchase price.
func (s *Service) UpdateHolding(ctx context.Context, ownerID string, instrumentID int64, quantity, purchasePrice decimal.Decimal) error {
	if err := validateHolding(ownerID, quantity, purchasePrice); err != nil {
		return err
	}
	return s.holdings.Update(ctx, ownerID, instrumentID, quantity, purchasePrice)
}

// RemoveHolding deletes the owner's holding of an instrument.
func (s *Service) RemoveHolding(ctx context.Context, ownerID string, instrumentID int64) error {
	return s.holdings.Delete(ctx, ownerID, instrumentID)
}

// freshHoldings reads the owner's holdings, refreshes stale prices and re-reads
// if anything changed.
func (s *Service) freshHoldings(ctx context.Context, ownerID string) ([]domain.Holding, error) {
	holdings, err := s.holdings.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(holdings) == 0 || s.refresher == nil {
		return holdings, nil
	}

	if refreshed := s.refresher.RefreshIfStale(ctx, holdings); refreshed > 0 {
		s.log.Debug().Str("owner_id", ownerID).Int("refreshed", refreshed).Msg("Refreshed stale prices before read")
		return s.holdings.GetByOwner(ctx, ownerID)
	}
	return holdings, nil
}

func validateHolding(ownerID string, quantity, purchasePrice decimal.Decimal) error {
	switch {
	case ownerID == "":
		return fmt.Errorf("owner is required: %w", ErrInvalidHolding)
	case !quantity.IsPositive():
		return fmt.Errorf("quantity must be positive: %w", ErrInvalidHolding)
	case !purchasePrice.IsPositive():
		return fmt.Errorf("purchase price must be positive: %w", ErrInvalidHolding)
	}
	return nil
}
