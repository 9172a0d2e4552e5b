package universe

import (
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/domain"
)

// RangeStats summarizes a run of daily bars.
type RangeStats struct {
	FirstClose    decimal.Decimal `json:"first_close"`
	LastClose     decimal.Decimal `json:"last_close"`
	MinLow        decimal.Decimal `json:"min_low"`
	MaxHigh       decimal.Decimal `json:"max_high"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent float64         `json:"change_percent"`
	MeanClose     float64         `json:"mean_close"`
	StdDevClose   float64         `json:"stddev_close"`
	Volatility    float64         `json:"volatility"` // stddev of daily close-to-close returns
	Count         int             `json:"count"`
}

// ComputeRangeStats computes summary statistics over bars sorted ascending by date.
// Dispersion figures need at least two observations and are zero otherwise.
func ComputeRangeStats(bars []domain.PriceBar) RangeStats {
	var rs RangeStats
	rs.Count = len(bars)
	if len(bars) == 0 {
		return rs
	}

	rs.FirstClose = bars[0].Close
	rs.LastClose = bars[len(bars)-1].Close
	rs.MinLow = bars[0].Low
	rs.MaxHigh = bars[0].High
	rs.Change = rs.LastClose.Sub(rs.FirstClose)
	if rs.FirstClose.IsPositive() {
		rs.ChangePercent, _ = rs.Change.Div(rs.FirstClose).Mul(decimal.NewFromInt(100)).Round(4).Float64()
	}

	closes := make([]float64, len(bars))
	returns := make([]float64, 0, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close.InexactFloat64()
		if bar.Low.LessThan(rs.MinLow) {
			rs.MinLow = bar.Low
		}
		if bar.High.GreaterThan(rs.MaxHigh) {
			rs.MaxHigh = bar.High
		}
		if i > 0 && closes[i-1] > 0 {
			returns = append(returns, closes[i]/closes[i-1]-1)
		}
	}

	if len(closes) >= 2 {
		rs.MeanClose, rs.StdDevClose = stat.MeanStdDev(closes, nil)
	} else {
		rs.MeanClose = closes[0]
	}
	if len(returns) >= 2 {
		rs.Volatility = stat.StdDev(returns, nil)
	}

	return rs
}
