package universe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/domain"
)

// RegistrationService adds instruments to the directory.
type RegistrationService struct {
	profiles    ProfileClient
	instruments InstrumentStore
	delay       time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

// NewRegistrationService creates a new registration service.
// delay is the pause between symbols in RegisterMany.
func NewRegistrationService(profiles ProfileClient, instruments InstrumentStore, delay time.Duration, log zerolog.Logger) *RegistrationService {
	return &RegistrationService{
		profiles:    profiles,
		instruments: instruments,
		delay:       delay,
		log:         log.With().Str("service", "instrument_registration").Logger(),
		now:         time.Now,
	}
}

// Register returns the instrument for symbol, creating it if needed.
// An existing inactive instrument is reactivated. A new instrument takes its
// company details from the provider profile and needs a positive provider price,
// which becomes both its reference and current price.
func (s *RegistrationService) Register(ctx context.Context, symbol string) (*domain.Instrument, bool, error) {
	sym := domain.NormalizeSymbol(symbol)
	if sym == "" {
		return nil, false, fmt.Errorf("symbol is required")
	}

	existing, err := s.instruments.GetBySymbol(ctx, sym)
	if err == nil {
		if !existing.IsActive {
			if err := s.instruments.SetActive(ctx, existing.ID, true); err != nil {
				return nil, false, err
			}
			existing.IsActive = true
			s.log.Info().Str("symbol", sym).Msg("Instrument reactivated")
		}
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	profile, err := s.profiles.GetProfile(ctx, sym)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", sym).Msg("Profile unavailable, registering with symbol as name")
		profile.CompanyName = sym
	}

	price, err := s.profiles.GetCurrentPrice(ctx, sym)
	if err != nil || !price.IsPositive() {
		if !profile.Price.IsPositive() {
			return nil, false, fmt.Errorf("register %s: %w", sym, domain.ErrNoPrice)
		}
		price = profile.Price
	}

	now := s.now().UTC()
	inst := &domain.Instrument{
		Symbol:         sym,
		CompanyName:    profile.CompanyName,
		Industry:       profile.Industry,
		ReferencePrice: price,
		CurrentPrice:   decimal.NewNullDecimal(price),
		LastUpdated:    &now,
		IsActive:       true,
	}

	if _, err := s.instruments.Create(ctx, inst); err != nil {
		// Lost a race with a concurrent registration
		if errors.Is(err, domain.ErrAlreadyExists) {
			existing, getErr := s.instruments.GetBySymbol(ctx, sym)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	s.log.Info().
		Str("symbol", sym).
		Str("company", inst.CompanyName).
		Str("price", price.String()).
		Msg("Instrument registered")

	return inst, true, nil
}

// RegisterMany registers symbols sequentially and returns how many are now in the directory.
func (s *RegistrationService) RegisterMany(ctx context.Context, symbols []string) int {
	registered := 0
	for i, sym := range uniqueSymbols(symbols) {
		if i > 0 && !sleepCtx(ctx, s.delay) {
			break
		}
		if _, _, err := s.Register(ctx, sym); err != nil {
			s.log.Warn().Err(err).Str("symbol", sym).Msg("Failed to register instrument")
			continue
		}
		registered++
	}
	return registered
}

// Deactivate soft-deletes the instrument so scheduled syncs skip it.
func (s *RegistrationService) Deactivate(ctx context.Context, symbol string) error {
	inst, err := s.instruments.GetBySymbol(ctx, symbol)
	if err != nil {
		return err
	}
	if err := s.instruments.SetActive(ctx, inst.ID, false); err != nil {
		return err
	}
	s.log.Info().Str("symbol", inst.Symbol).Msg("Instrument deactivated")
	return nil
}
