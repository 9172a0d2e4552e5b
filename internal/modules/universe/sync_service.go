package universe

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/domain"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/metrics"
)

// Synthetic fallback parameters.
var (
	syntheticJitter = decimal.RequireFromString("0.02") // price = reference * (1 + U[-j, +j])
	syntheticOpen   = decimal.RequireFromString("0.995")
	syntheticHigh   = decimal.RequireFromString("1.02")
	syntheticLow    = decimal.RequireFromString("0.98")
)

const (
	syntheticVolume  = int64(1_000_000)
	syntheticPriceDP = int32(2)
)

// SyncConfig holds price sync tuning.
type SyncConfig struct {
	InstrumentDelay    time.Duration // Pause between instruments in sequential runs
	StalenessThreshold time.Duration
}

// SyncService keeps instrument prices, price history and holding price copies current.
// Each refresh runs Fetch, Validate, Persist, Propagate. It is the only writer of
// instrument price fields and holding price copies.
type SyncService struct {
	quotes      QuoteClient
	instruments InstrumentStore
	history     BarStore
	holdings    HoldingPriceWriter
	validator   *PriceValidator
	recorder    SyncRecorder
	cfg         SyncConfig
	log         zerolog.Logger

	now    func() time.Time
	jitter func() float64 // uniform in [0, 1)
}

// NewSyncService creates a new price sync service
func NewSyncService(
	quotes QuoteClient,
	instruments InstrumentStore,
	history BarStore,
	holdings HoldingPriceWriter,
	cfg SyncConfig,
	log zerolog.Logger,
) *SyncService {
	if cfg.StalenessThreshold <= 0 {
		cfg.StalenessThreshold = DefaultStalenessThreshold
	}
	if cfg.InstrumentDelay < 0 {
		cfg.InstrumentDelay = 0
	}

	return &SyncService{
		quotes:      quotes,
		instruments: instruments,
		history:     history,
		holdings:    holdings,
		validator:   NewPriceValidator(log),
		cfg:         cfg,
		log:         log.With().Str("service", "price_sync").Logger(),
		now:         time.Now,
		jitter:      rand.Float64,
	}
}

// SetRecorder installs sync instrumentation.
func (s *SyncService) SetRecorder(r SyncRecorder) {
	s.recorder = r
}

// RefreshOne refreshes a single instrument by symbol.
// Unknown symbols return domain.ErrNotFound; an instrument with no provider price
// and no reference price returns domain.ErrNoPrice.
func (s *SyncService) RefreshOne(ctx context.Context, symbol string) (RefreshOutcome, error) {
	inst, err := s.instruments.GetBySymbol(ctx, symbol)
	if err != nil {
		return RefreshOutcome{}, err
	}
	return s.refreshInstrument(ctx, inst)
}

func (s *SyncService) refreshInstrument(ctx context.Context, inst *domain.Instrument) (RefreshOutcome, error) {
	now := s.now()
	out := RefreshOutcome{Symbol: inst.Symbol, InstrumentID: inst.ID}
	log := s.log.With().Str("symbol", inst.Symbol).Int64("instrument_id", inst.ID).Logger()

	// Fetch + validate price
	price, err := s.quotes.GetCurrentPrice(ctx, inst.Symbol)
	if err == nil {
		if reason := s.validator.ValidatePrice(price); reason != "" {
			err = fmt.Errorf("invalid quote: %s", reason)
		}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}
		reference, ok := referencePrice(inst)
		if !ok {
			s.recordFailure()
			return out, fmt.Errorf("%s: %w", inst.Symbol, domain.ErrNoPrice)
		}
		price = s.synthesizePrice(reference)
		out.SyntheticPrice = true
		log.Warn().
			Err(err).
			Str("reference", reference.String()).
			Str("price", price.String()).
			Msg("Provider price unavailable, using synthetic price")
	}

	// Fetch + validate bar
	bar, err := s.quotes.GetLatestBar(ctx, inst.Symbol, now)
	if err == nil {
		if reason := s.validator.ValidateBar(bar); reason != "" {
			err = fmt.Errorf("invalid bar: %s", reason)
		}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}
		bar = syntheticBar(price, now)
		out.SyntheticBar = true
		log.Debug().Err(err).Msg("Latest bar unavailable, using synthetic bar")
	}
	bar.InstrumentID = inst.ID

	// Persist
	if err := s.history.Upsert(ctx, bar); err != nil {
		log.Error().Err(err).Msg("Failed to store price bar")
		s.recordFailure()
		return out, err
	}
	if err := s.instruments.UpdatePrice(ctx, inst.ID, price, now); err != nil {
		log.Error().Err(err).Msg("Failed to update instrument price")
		s.recordFailure()
		return out, err
	}

	// Propagate
	updated, err := s.holdings.UpdatePriceForInstrument(ctx, inst.ID, price, now)
	if err != nil {
		log.Error().Err(err).Msg("Failed to propagate price to holdings")
		s.recordFailure()
		return out, fmt.Errorf("failed to propagate price for %s: %w", inst.Symbol, err)
	}

	out.Price = price
	out.UpdatedAt = now
	out.HoldingsUpdated = updated

	s.recordRefresh(out.SyntheticPrice, 1, updated)

	log.Debug().
		Str("price", price.String()).
		Bool("synthetic_price", out.SyntheticPrice).
		Bool("synthetic_bar", out.SyntheticBar).
		Int("holdings_updated", updated).
		Msg("Instrument refreshed")

	return out, nil
}

// ForceRealRefresh refreshes symbol from a real provider bar only. Nothing is
// synthesized: if the provider has no usable bar, nothing is written.
func (s *SyncService) ForceRealRefresh(ctx context.Context, symbol string) (RefreshOutcome, error) {
	inst, err := s.instruments.GetBySymbol(ctx, symbol)
	if err != nil {
		return RefreshOutcome{}, err
	}

	now := s.now()
	out := RefreshOutcome{Symbol: inst.Symbol, InstrumentID: inst.ID}

	bar, err := s.quotes.GetLatestBar(ctx, inst.Symbol, now)
	if err != nil {
		return out, fmt.Errorf("no real data for %s: %w", inst.Symbol, errors.Join(domain.ErrNoPrice, err))
	}
	if reason := s.validator.ValidateBar(bar); reason != "" {
		return out, fmt.Errorf("no real data for %s (%s): %w", inst.Symbol, reason, domain.ErrNoPrice)
	}
	bar.InstrumentID = inst.ID
	price := bar.Close

	if err := s.history.Upsert(ctx, bar); err != nil {
		return out, err
	}
	if err := s.instruments.UpdatePrice(ctx, inst.ID, price, now); err != nil {
		return out, err
	}
	updated, err := s.holdings.UpdatePriceForInstrument(ctx, inst.ID, price, now)
	if err != nil {
		return out, fmt.Errorf("failed to propagate price for %s: %w", inst.Symbol, err)
	}

	out.Price = price
	out.UpdatedAt = now
	out.HoldingsUpdated = updated
	s.recordRefresh(false, 1, updated)

	s.log.Info().
		Str("symbol", inst.Symbol).
		Str("price", price.String()).
		Str("bar_date", bar.Date.Format("2006-01-02")).
		Msg("Forced refresh from real provider data")

	return out, nil
}

// RefreshAll refreshes every active instrument sequentially in id order,
// pausing InstrumentDelay between instruments. Failures are logged and skipped.
func (s *SyncService) RefreshAll(ctx context.Context) SyncReport {
	start := time.Now()
	report := s.newReport(SyncKindAll)
	log := s.log.With().Str("run_id", report.RunID).Logger()

	instruments, err := s.instruments.List(ctx, true)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list active instruments")
		return s.finishReport(report, start)
	}
	report.Total = len(instruments)

	log.Info().Int("instruments", report.Total).Msg("Starting price refresh")

	for i := range instruments {
		if i > 0 && !sleepCtx(ctx, s.cfg.InstrumentDelay) {
			report.Cancelled = true
			break
		}
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}

		inst := &instruments[i]
		if _, err := s.refreshInstrument(ctx, inst); err != nil {
			report.Failed = append(report.Failed, inst.Symbol)
			log.Warn().Err(err).Str("symbol", inst.Symbol).Msg("Failed to refresh instrument")
			continue
		}
		report.Updated++
	}

	report = s.finishReport(report, start)
	log.Info().
		Int("updated", report.Updated).
		Int("total", report.Total).
		Int("failed", len(report.Failed)).
		Bool("cancelled", report.Cancelled).
		Dur("duration", report.Duration).
		Msg("Price refresh completed")

	return report
}

// BatchRefresh fetches current prices for symbols with batched provider requests
// and updates the instruments (and their holdings) the provider returned a price for.
// No bars are written.
func (s *SyncService) BatchRefresh(ctx context.Context, symbols []string) SyncReport {
	start := time.Now()
	report := s.newReport(SyncKindBatch)
	log := s.log.With().Str("run_id", report.RunID).Logger()

	unique := uniqueSymbols(symbols)
	report.Total = len(unique)
	if len(unique) == 0 {
		return s.finishReport(report, start)
	}

	prices := s.quotes.GetCurrentPrices(ctx, unique)
	now := s.now()

	for _, sym := range unique {
		price, ok := prices[sym]
		if !ok || s.validator.ValidatePrice(price) != "" {
			report.Failed = append(report.Failed, sym)
			continue
		}

		inst, err := s.instruments.GetBySymbol(ctx, sym)
		if err != nil {
			report.Failed = append(report.Failed, sym)
			log.Warn().Err(err).Str("symbol", sym).Msg("Batch price for unknown instrument")
			continue
		}

		if err := s.instruments.UpdatePrice(ctx, inst.ID, price, now); err != nil {
			report.Failed = append(report.Failed, sym)
			log.Error().Err(err).Str("symbol", sym).Msg("Failed to update instrument price")
			continue
		}
		updated, err := s.holdings.UpdatePriceForInstrument(ctx, inst.ID, price, now)
		if err != nil {
			report.Failed = append(report.Failed, sym)
			log.Error().Err(err).Str("symbol", sym).Msg("Failed to propagate price to holdings")
			continue
		}

		s.recordRefresh(false, 0, updated)
		report.Updated++
	}

	report = s.finishReport(report, start)
	log.Info().
		Int("updated", report.Updated).
		Int("total", report.Total).
		Dur("duration", report.Duration).
		Msg("Batch price refresh completed")

	return report
}

// BackfillRange fetches and upserts daily bars in [from, to] for each symbol.
// Unknown symbols and provider failures are skipped and listed in the report.
func (s *SyncService) BackfillRange(ctx context.Context, symbols []string, from, to time.Time) (SyncReport, error) {
	from, to = domain.TruncateToDay(from), domain.TruncateToDay(to)
	if from.After(to) {
		return SyncReport{}, fmt.Errorf("backfill %s..%s: %w", from.Format("2006-01-02"), to.Format("2006-01-02"), domain.ErrInvalidRange)
	}

	start := time.Now()
	report := s.newReport(SyncKindBackfill)
	log := s.log.With().Str("run_id", report.RunID).Logger()

	unique := uniqueSymbols(symbols)
	report.Total = len(unique)

	for i, sym := range unique {
		if i > 0 && !sleepCtx(ctx, s.cfg.InstrumentDelay) {
			report.Cancelled = true
			break
		}

		inst, err := s.instruments.GetBySymbol(ctx, sym)
		if err != nil {
			report.Failed = append(report.Failed, sym)
			log.Warn().Err(err).Str("symbol", sym).Msg("Skipping backfill for unknown instrument")
			continue
		}

		bars, err := s.quotes.GetHistoricalBars(ctx, sym, from, to)
		if err != nil {
			report.Failed = append(report.Failed, sym)
			log.Warn().Err(err).Str("symbol", sym).Msg("Failed to fetch historical bars")
			continue
		}

		bars = s.validator.FilterBars(sym, bars)
		for j := range bars {
			bars[j].InstrumentID = inst.ID
		}

		if err := s.history.UpsertMany(ctx, bars); err != nil {
			report.Failed = append(report.Failed, sym)
			log.Error().Err(err).Str("symbol", sym).Msg("Failed to store historical bars")
			continue
		}

		if s.recorder != nil {
			s.recorder.BarsWritten(len(bars))
		}
		report.BarsWritten += len(bars)
		report.Updated++

		log.Debug().Str("symbol", sym).Int("bars", len(bars)).Msg("Backfilled price history")
	}

	report = s.finishReport(report, start)
	log.Info().
		Int("updated", report.Updated).
		Int("total", report.Total).
		Int("bars", report.BarsWritten).
		Str("from", from.Format("2006-01-02")).
		Str("to", to.Format("2006-01-02")).
		Msg("Backfill completed")

	return report, nil
}

// RefreshIfStale refreshes, sequentially, each distinct instrument whose holding
// price copy is stale. Returns how many instruments were refreshed.
func (s *SyncService) RefreshIfStale(ctx context.Context, holdings []domain.Holding) int {
	now := s.now()
	seen := make(map[int64]bool, len(holdings))
	refreshed := 0

	for _, h := range holdings {
		if seen[h.InstrumentID] {
			continue
		}
		seen[h.InstrumentID] = true

		if !NeedsRefresh(h.LastUpdated, now, s.cfg.StalenessThreshold) {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		symbol := h.Symbol
		if symbol == "" {
			inst, err := s.instruments.GetByID(ctx, h.InstrumentID)
			if err != nil {
				s.log.Warn().Err(err).Int64("instrument_id", h.InstrumentID).Msg("Stale holding references unknown instrument")
				continue
			}
			symbol = inst.Symbol
		}

		if _, err := s.RefreshOne(ctx, symbol); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to refresh stale holding price")
			continue
		}
		refreshed++
	}

	if refreshed > 0 {
		s.log.Debug().Int("refreshed", refreshed).Msg("Refreshed stale holding prices")
	}

	return refreshed
}

// referencePrice picks the synthetic fallback base: the registration reference
// price, else the last known current price.
func referencePrice(inst *domain.Instrument) (decimal.Decimal, bool) {
	if inst.ReferencePrice.IsPositive() {
		return inst.ReferencePrice, true
	}
	if inst.CurrentPrice.Valid && inst.CurrentPrice.Decimal.IsPositive() {
		return inst.CurrentPrice.Decimal, true
	}
	return decimal.Zero, false
}

func (s *SyncService) synthesizePrice(reference decimal.Decimal) decimal.Decimal {
	// u in [-1, 1)
	u := decimal.NewFromFloat(s.jitter()*2 - 1)
	factor := decimal.NewFromInt(1).Add(u.Mul(syntheticJitter))
	price := reference.Mul(factor).Round(syntheticPriceDP)
	if !price.IsPositive() {
		return reference
	}
	return price
}

func syntheticBar(price decimal.Decimal, now time.Time) domain.PriceBar {
	return domain.PriceBar{
		Date:   domain.TruncateToDay(now),
		Open:   price.Mul(syntheticOpen),
		High:   price.Mul(syntheticHigh),
		Low:    price.Mul(syntheticLow),
		Close:  price,
		Volume: syntheticVolume,
	}
}

func (s *SyncService) newReport(kind string) SyncReport {
	return SyncReport{RunID: uuid.NewString(), Kind: kind, Failed: []string{}}
}

func (s *SyncService) finishReport(report SyncReport, start time.Time) SyncReport {
	report.Duration = time.Since(start)
	if s.recorder != nil {
		s.recorder.ObserveSync(report.Kind, report.Duration)
	}
	return report
}

func (s *SyncService) recordRefresh(synthetic bool, bars, holdings int) {
	if s.recorder == nil {
		return
	}
	source := metrics.SourceProvider
	if synthetic {
		source = metrics.SourceSynthetic
	}
	s.recorder.InstrumentRefreshed(source)
	s.recorder.BarsWritten(bars)
	s.recorder.HoldingsPropagated(holdings)
}

func (s *SyncService) recordFailure() {
	if s.recorder != nil {
		s.recorder.RefreshFailed()
	}
}

func uniqueSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	unique := make([]string, 0, len(symbols))
	for _, raw := range symbols {
		sym := domain.NormalizeSymbol(raw)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		unique = append(unique, sym)
	}
	return unique
}

// sleepCtx waits for d, returning false if ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
