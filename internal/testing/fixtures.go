package testing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/domain"
)

// NewInstrumentFixtures returns a set of unsaved test instruments
func NewInstrumentFixtures() []*domain.Instrument {
	return []*domain.Instrument{
		{
			Symbol:         "AAPL",
			CompanyName:    "Apple Inc.",
			Industry:       "Consumer Electronics",
			ReferencePrice: decimal.RequireFromString("150.00"),
			IsActive:       true,
		},
		{
			Symbol:         "MSFT",
			CompanyName:    "Microsoft Corporation",
			Industry:       "Software",
			ReferencePrice: decimal.RequireFromString("300.00"),
			IsActive:       true,
		},
		{
			Symbol:         "JPM",
			CompanyName:    "JPMorgan Chase & Co.",
			Industry:       "Banks",
			ReferencePrice: decimal.RequireFromString("140.00"),
			IsActive:       true,
		},
	}
}

// NewBarFixtures returns consecutive daily bars ending at end, one per close.
func NewBarFixtures(instrumentID int64, end time.Time, closes ...string) []domain.PriceBar {
	end = domain.TruncateToDay(end)
	bars := make([]domain.PriceBar, len(closes))
	for i, c := range closes {
		p := decimal.RequireFromString(c)
		bars[i] = domain.PriceBar{
			InstrumentID: instrumentID,
			Date:         end.AddDate(0, 0, i-len(closes)+1),
			Open:         p,
			High:         p.Add(decimal.NewFromInt(1)),
			Low:          p.Sub(decimal.NewFromInt(1)),
			Close:        p,
			Volume:       1000,
		}
	}
	return bars
}

// Dec parses a decimal literal, panicking on bad input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// NullDec returns a valid NullDecimal for s.
func NullDec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time {
	return &t
}
