package testing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/clients/fmp"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/domain"
)

// MockQuoteClient is an in-memory market-data provider for testing.
// Symbols without a configured price or bars fail with fmp.ErrNoData.
type MockQuoteClient struct {
	mu         sync.RWMutex
	prices     map[string]decimal.Decimal
	bars       map[string][]domain.PriceBar
	profiles   map[string]fmp.Profile
	failing    map[string]bool
	calls      map[string]int
	batchCalls [][]string
}

// NewMockQuoteClient creates a new mock quote client
func NewMockQuoteClient() *MockQuoteClient {
	return &MockQuoteClient{
		prices:   make(map[string]decimal.Decimal),
		bars:     make(map[string][]domain.PriceBar),
		profiles: make(map[string]fmp.Profile),
		failing:  make(map[string]bool),
		calls:    make(map[string]int),
	}
}

// SetPrice sets the current price returned for symbol
func (m *MockQuoteClient) SetPrice(symbol string, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = price
}

// SetBars sets the bars returned for symbol, ascending by date
func (m *MockQuoteClient) SetBars(symbol string, bars []domain.PriceBar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bars[symbol] = bars
}

// SetProfile sets the profile returned for symbol
func (m *MockQuoteClient) SetProfile(symbol string, profile fmp.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[symbol] = profile
}

// SetFailing makes every call for symbol fail
func (m *MockQuoteClient) SetFailing(symbol string, failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing[symbol] = failing
}

// Calls returns how many calls were made for symbol, batched calls included
func (m *MockQuoteClient) Calls(symbol string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[symbol]
}

// BatchCalls returns the symbol lists passed to GetCurrentPrices
func (m *MockQuoteClient) BatchCalls() [][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([][]string(nil), m.batchCalls...)
}

// GetCurrentPrice returns the configured price
func (m *MockQuoteClient) GetCurrentPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[symbol]++
	if m.failing[symbol] {
		return decimal.Zero, fmt.Errorf("%w: mock failure for %s", fmp.ErrNoData, symbol)
	}
	price, ok := m.prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no price for %s", fmp.ErrNoData, symbol)
	}
	return price, nil
}

// GetCurrentPrices returns configured prices for the non-failing symbols
func (m *MockQuoteClient) GetCurrentPrices(_ context.Context, symbols []string) map[string]decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls = append(m.batchCalls, append([]string(nil), symbols...))

	result := make(map[string]decimal.Decimal)
	for _, sym := range symbols {
		m.calls[sym]++
		if price, ok := m.prices[sym]; ok && !m.failing[sym] && price.IsPositive() {
			result[sym] = price
		}
	}
	return result
}

// GetLatestBar returns the last configured bar with positive volume on or before asOf
func (m *MockQuoteClient) GetLatestBar(_ context.Context, symbol string, asOf time.Time) (domain.PriceBar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failing[symbol] {
		return domain.PriceBar{}, fmt.Errorf("%w: mock failure for %s", fmp.ErrNoData, symbol)
	}
	bars := m.bars[symbol]
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].Volume > 0 && !bars[i].Date.After(asOf) {
			return bars[i], nil
		}
	}
	return domain.PriceBar{}, fmt.Errorf("%w: no bars for %s", fmp.ErrNoData, symbol)
}

// GetHistoricalBars returns configured bars within [from, to]
func (m *MockQuoteClient) GetHistoricalBars(_ context.Context, symbol string, from, to time.Time) ([]domain.PriceBar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failing[symbol] {
		return nil, fmt.Errorf("%w: mock failure for %s", fmp.ErrNoData, symbol)
	}
	bars, ok := m.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: no series for %s", fmp.ErrNoData, symbol)
	}
	var out []domain.PriceBar
	for _, bar := range bars {
		if !bar.Date.Before(from) && !bar.Date.After(to) {
			out = append(out, bar)
		}
	}
	return out, nil
}

// GetProfile returns the configured profile
func (m *MockQuoteClient) GetProfile(_ context.Context, symbol string) (fmp.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failing[symbol] {
		return fmp.Profile{}, fmt.Errorf("%w: mock failure for %s", fmp.ErrNoData, symbol)
	}
	profile, ok := m.profiles[symbol]
	if !ok {
		return fmp.Profile{}, fmt.Errorf("%w: no profile for %s", fmp.ErrNoData, symbol)
	}
	return profile, nil
}

// PriceUpdate records one propagated holding price.
type PriceUpdate struct {
	At           time.Time
	Price        decimal.Decimal
	InstrumentID int64
}

// MockHoldingPriceWriter records price propagation for testing
type MockHoldingPriceWriter struct {
	mu       sync.Mutex
	updates  []PriceUpdate
	affected map[int64]int
	err      error
}

// NewMockHoldingPriceWriter creates a new mock holding price writer
func NewMockHoldingPriceWriter() *MockHoldingPriceWriter {
	return &MockHoldingPriceWriter{affected: make(map[int64]int)}
}

// SetAffected sets how many holdings an instrument update reports
func (m *MockHoldingPriceWriter) SetAffected(instrumentID int64, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.affected[instrumentID] = n
}

// SetError sets the error to return
func (m *MockHoldingPriceWriter) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Updates returns the recorded updates
func (m *MockHoldingPriceWriter) Updates() []PriceUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PriceUpdate(nil), m.updates...)
}

// UpdatePriceForInstrument records the update
func (m *MockHoldingPriceWriter) UpdatePriceForInstrument(_ context.Context, instrumentID int64, price decimal.Decimal, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.updates = append(m.updates, PriceUpdate{At: at, Price: price, InstrumentID: instrumentID})
	return m.affected[instrumentID], nil
}
