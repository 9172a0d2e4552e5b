package universe

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/domain"
)

// PriceValidator rejects provider bars that cannot be real daily observations.
type PriceValidator struct {
	log zerolog.Logger
}

// NewPriceValidator creates a new price validator
func NewPriceValidator(log zerolog.Logger) *PriceValidator {
	return &PriceValidator{
		log: log.With().Str("component", "price_validator").Logger(),
	}
}

// ValidatePrice checks a quote price. Returns "" when valid, otherwise the reason.
func (v *PriceValidator) ValidatePrice(price decimal.Decimal) string {
	if !price.IsPositive() {
		return "non_positive_price"
	}
	return ""
}

// ValidateBar checks OHLC consistency. Returns "" when valid, otherwise the reason.
func (v *PriceValidator) ValidateBar(bar domain.PriceBar) string {
	if !bar.Close.IsPositive() || !bar.Open.IsPositive() || !bar.Low.IsPositive() {
		return "non_positive_price"
	}
	if bar.High.LessThan(bar.Low) {
		return "high_below_low"
	}
	if bar.High.LessThan(bar.Open) {
		return "high_below_open"
	}
	if bar.High.LessThan(bar.Close) {
		return "high_below_close"
	}
	if bar.Low.GreaterThan(bar.Open) {
		return "low_above_open"
	}
	if bar.Low.GreaterThan(bar.Close) {
		return "low_above_close"
	}
	if bar.Volume < 0 {
		return "negative_volume"
	}
	return ""
}

// FilterBars drops invalid bars, logging each rejection.
func (v *PriceValidator) FilterBars(symbol string, bars []domain.PriceBar) []domain.PriceBar {
	valid := make([]domain.PriceBar, 0, len(bars))
	for _, bar := range bars {
		if reason := v.ValidateBar(bar); reason != "" {
			v.log.Warn().
				Str("symbol", symbol).
				Str("date", bar.Date.Format("2006-01-02")).
				Str("reason", reason).
				Msg("Rejected abnormal price bar")
			continue
		}
		valid = append(valid, bar)
	}
	return valid
}
