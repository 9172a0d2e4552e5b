package portfolio

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/domain"
)

// Ranking sizes.
const (
	SummaryPerformers   = 5
	DashboardPerformers = 3
	moverCandidates     = 10
	moversPerSide       = 5
)

var hundred = decimal.NewFromInt(100)

// HoldingValuation is a holding with its derived values. Nothing here is stored.
type HoldingValuation struct {
	domain.Holding
	TotalCost            decimal.Decimal     `json:"total_cost"`
	CurrentValue         decimal.NullDecimal `json:"current_value"`
	ProfitLoss           decimal.NullDecimal `json:"profit_loss"`
	ProfitLossPercentage decimal.NullDecimal `json:"profit_loss_percentage"`
}

// Performer is a ranked holding as shown in summaries.
type Performer struct {
	Symbol               string              `json:"symbol"`
	CompanyName          string              `json:"company_name"`
	ProfitLoss           decimal.NullDecimal `json:"profit_loss"`
	ProfitLossPercentage decimal.NullDecimal `json:"profit_loss_percentage"`
}

// PortfolioSummary aggregates one owner's holdings.
// Unpriced holdings count toward TotalInvestment but not TotalCurrentValue.
type PortfolioSummary struct {
	TotalInvestment           decimal.Decimal     `json:"total_investment"`
	TotalCurrentValue         decimal.NullDecimal `json:"total_current_value"`
	TotalProfitLoss           decimal.NullDecimal `json:"total_profit_loss"`
	TotalProfitLossPercentage decimal.NullDecimal `json:"total_profit_loss_percentage"`
	Holdings                  []HoldingValuation  `json:"holdings"`
	TopPerformers             []Performer         `json:"top_performers"`
	WorstPerformers           []Performer         `json:"worst_performers"`
	TotalHoldings             int                 `json:"total_holdings"`
}

// Valuate derives cost, value and profit figures for h.
// ProfitLossPercentage is null when h has no price or costs nothing.
func Valuate(h domain.Holding) HoldingValuation {
	v := HoldingValuation{
		Holding:   h,
		TotalCost: h.Quantity.Mul(h.PurchasePrice),
	}
	if !h.CurrentPrice.Valid {
		return v
	}

	value := h.Quantity.Mul(h.CurrentPrice.Decimal)
	profit := value.Sub(v.TotalCost)
	v.CurrentValue = decimal.NewNullDecimal(value)
	v.ProfitLoss = decimal.NewNullDecimal(profit)
	if !v.TotalCost.IsZero() {
		v.ProfitLossPercentage = decimal.NewNullDecimal(profit.Div(v.TotalCost).Mul(hundred))
	}
	return v
}

// ValuateAll valuates holdings in order.
func ValuateAll(holdings []domain.Holding) []HoldingValuation {
	vals := make([]HoldingValuation, len(holdings))
	for i, h := range holdings {
		vals[i] = Valuate(h)
	}
	return vals
}

// Summarize builds the portfolio summary with topN best and worst performers.
func Summarize(holdings []domain.Holding, topN int) PortfolioSummary {
	vals := ValuateAll(holdings)
	s := PortfolioSummary{
		TotalHoldings: len(vals),
		Holdings:      vals,
	}

	var value decimal.Decimal
	priced := false
	for _, v := range vals {
		s.TotalInvestment = s.TotalInvestment.Add(v.TotalCost)
		if v.CurrentValue.Valid {
			value = value.Add(v.CurrentValue.Decimal)
			priced = true
		}
	}

	if priced {
		profit := value.Sub(s.TotalInvestment)
		s.TotalCurrentValue = decimal.NewNullDecimal(value)
		s.TotalProfitLoss = decimal.NewNullDecimal(profit)
		if s.TotalInvestment.IsPositive() {
			s.TotalProfitLossPercentage = decimal.NewNullDecimal(profit.Div(s.TotalInvestment).Mul(hundred))
		}
	}

	s.TopPerformers = performers(RankTop(vals, topN))
	s.WorstPerformers = performers(RankWorst(vals, topN))
	return s
}

// RankTop returns up to n holdings with a known percentage, best first.
// Equal percentages keep their input order.
func RankTop(vals []HoldingValuation, n int) []HoldingValuation {
	ranked := withPercentage(vals)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ProfitLossPercentage.Decimal.GreaterThan(ranked[j].ProfitLossPercentage.Decimal)
	})
	return truncate(ranked, n)
}

// RankWorst returns up to n holdings with a known percentage, worst first.
// Equal percentages keep their input order.
func RankWorst(vals []HoldingValuation, n int) []HoldingValuation {
	ranked := withPercentage(vals)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ProfitLossPercentage.Decimal.LessThan(ranked[j].ProfitLossPercentage.Decimal)
	})
	return truncate(ranked, n)
}

// IndustryAllocation is the priced value held in one industry.
type IndustryAllocation struct {
	Industry     string          `json:"industry"`
	Value        decimal.Decimal `json:"value"`
	Percentage   decimal.Decimal `json:"percentage"`
	HoldingCount int             `json:"holding_count"`
}

// Allocate groups priced holdings by industry, largest value first.
// Percentages are of the total priced value, rounded to 2 places.
func Allocate(vals []HoldingValuation) []IndustryAllocation {
	index := make(map[string]int)
	allocations := []IndustryAllocation{}
	var total decimal.Decimal

	for _, v := range vals {
		if !v.CurrentValue.Valid {
			continue
		}
		i, ok := index[v.Industry]
		if !ok {
			i = len(allocations)
			index[v.Industry] = i
			allocations = append(allocations, IndustryAllocation{Industry: v.Industry})
		}
		allocations[i].Value = allocations[i].Value.Add(v.CurrentValue.Decimal)
		allocations[i].HoldingCount++
		total = total.Add(v.CurrentValue.Decimal)
	}

	sort.SliceStable(allocations, func(i, j int) bool {
		return allocations[i].Value.GreaterThan(allocations[j].Value)
	})

	if total.IsPositive() {
		for i := range allocations {
			allocations[i].Percentage = allocations[i].Value.Div(total).Mul(hundred).Round(2)
		}
	}
	return allocations
}

// Mover is a holding ranked by the size of its move.
type Mover struct {
	Symbol           string              `json:"symbol"`
	CompanyName      string              `json:"company_name"`
	Industry         string              `json:"industry"`
	CurrentPrice     decimal.NullDecimal `json:"current_price"`
	PurchasePrice    decimal.Decimal     `json:"purchase_price"`
	Quantity         decimal.Decimal     `json:"quantity"`
	Change           decimal.NullDecimal `json:"change"`
	ChangePercentage decimal.Decimal     `json:"change_percentage"`
}

// Movers splits the largest moves into gainers and losers.
type Movers struct {
	Gainers []Mover `json:"gainers"`
	Losers  []Mover `json:"losers"`
}

// RankMovers takes the ten largest absolute percentage moves and returns up to
// five gainers and five losers from them. Unchanged holdings are in neither list.
func RankMovers(vals []HoldingValuation) Movers {
	ranked := withPercentage(vals)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ProfitLossPercentage.Decimal.Abs().GreaterThan(ranked[j].ProfitLossPercentage.Decimal.Abs())
	})
	ranked = truncate(ranked, moverCandidates)

	movers := Movers{Gainers: []Mover{}, Losers: []Mover{}}
	for _, v := range ranked {
		m := Mover{
			Symbol:           v.Symbol,
			CompanyName:      v.CompanyName,
			Industry:         v.Industry,
			CurrentPrice:     v.CurrentPrice,
			PurchasePrice:    v.PurchasePrice,
			Quantity:         v.Quantity,
			Change:           v.ProfitLoss,
			ChangePercentage: v.ProfitLossPercentage.Decimal,
		}
		switch pct := m.ChangePercentage; {
		case pct.IsPositive() && len(movers.Gainers) < moversPerSide:
			movers.Gainers = append(movers.Gainers, m)
		case pct.IsNegative() && len(movers.Losers) < moversPerSide:
			movers.Losers = append(movers.Losers, m)
		}
	}
	return movers
}

func withPercentage(vals []HoldingValuation) []HoldingValuation {
	out := make([]HoldingValuation, 0, len(vals))
	for _, v := range vals {
		if v.ProfitLossPercentage.Valid {
			out = append(out, v)
		}
	}
	return out
}

func truncate(vals []HoldingValuation, n int) []HoldingValuation {
	if n < 0 {
		n = 0
	}
	if len(vals) > n {
		return vals[:n]
	}
	return vals
}

func performers(vals []HoldingValuation) []Performer {
	out := make([]Performer, len(vals))
	for i, v := range vals {
		out[i] = Performer{
			Symbol:               v.Symbol,
			CompanyName:          v.CompanyName,
			ProfitLoss:           v.ProfitLoss,
			ProfitLossPercentage: v.ProfitLossPercentage,
		}
	}
	return out
}
