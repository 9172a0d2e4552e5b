// Package domain provides core domain models and types.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Instrument is a tradable symbol tracked by the directory.
// Price fields are written only by price synchronization.
type Instrument struct {
	LastUpdated    *time.Time          `json:"last_updated"`
	Symbol         string              `json:"symbol"`
	CompanyName    string              `json:"company_name"`
	Industry       string              `json:"industry"`
	ReferencePrice decimal.Decimal     `json:"reference_price"`
	CurrentPrice   decimal.NullDecimal `json:"current_price"`
	ID             int64               `json:"id"`
	IsActive       bool                `json:"is_active"`
}

// PriceBar is one daily OHLCV observation. Date is always UTC midnight.
type PriceBar struct {
	Date         time.Time       `json:"date"`
	Open         decimal.Decimal `json:"open"`
	High         decimal.Decimal `json:"high"`
	Low          decimal.Decimal `json:"low"`
	Close        decimal.Decimal `json:"close"`
	InstrumentID int64           `json:"instrument_id"`
	Volume       int64           `json:"volume"`
}

// Holding is an owner's position in one instrument.
// CurrentPrice and LastUpdated are a denormalized copy of the instrument's price.
type Holding struct {
	PurchaseDate  time.Time           `json:"purchase_date"`
	LastUpdated   *time.Time          `json:"last_updated"`
	OwnerID       string              `json:"owner_id"`
	Symbol        string              `json:"symbol"`
	CompanyName   string              `json:"company_name"`
	Industry      string              `json:"industry"`
	Quantity      decimal.Decimal     `json:"quantity"`
	PurchasePrice decimal.Decimal     `json:"purchase_price"`
	CurrentPrice  decimal.NullDecimal `json:"current_price"`
	ID            int64               `json:"id"`
	InstrumentID  int64               `json:"instrument_id"`
}

// NormalizeSymbol trims and uppercases a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// TruncateToDay strips the time of day, returning midnight UTC of t's UTC date.
func TruncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
