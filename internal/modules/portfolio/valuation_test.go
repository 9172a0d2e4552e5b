package portfolio

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/domain"
	testingpkg "github.com/phanhuy16/Portfolio-Tracker-Api/internal/testing"
)

// holding builds a holding; an empty current price means unpriced.
func holding(symbol, industry, quantity, purchase, current string) domain.Holding {
	h := domain.Holding{
		Symbol:        symbol,
		CompanyName:   symbol + " Inc.",
		Industry:      industry,
		Quantity:      testingpkg.Dec(quantity),
		PurchasePrice: testingpkg.Dec(purchase),
		PurchaseDate:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	if current != "" {
		h.CurrentPrice = testingpkg.NullDec(current)
	}
	return h
}

func assertNullDec(t *testing.T, want string, got decimal.NullDecimal) {
	t.Helper()
	if want == "" {
		assert.False(t, got.Valid, "expected null, got %s", got.Decimal)
		return
	}
	require.True(t, got.Valid, "expected %s, got null", want)
	assert.True(t, got.Decimal.Equal(testingpkg.Dec(want)), "expected %s, got %s", want, got.Decimal)
}

func TestValuate(t *testing.T) {
	tests := []struct {
		name       string
		holding    domain.Holding
		totalCost  string
		value      string
		profitLoss string
		percentage string
	}{
		{"gain", holding("AAPL", "Tech", "10", "150", "165"), "1500", "1650", "150", "10"},
		{"loss", holding("AAPL", "Tech", "4", "50", "45"), "200", "180", "-20", "-10"},
		{"fractional", holding("AAPL", "Tech", "0.5", "40", "50"), "20", "25", "5", "25"},
		{"unpriced", holding("AAPL", "Tech", "3", "33.33", ""), "99.99", "", "", ""},
		{"zero cost", holding("GIFT", "Tech", "5", "0", "10"), "0", "50", "50", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Valuate(tt.holding)

			assert.True(t, v.TotalCost.Equal(testingpkg.Dec(tt.totalCost)), "total cost %s", v.TotalCost)
			assertNullDec(t, tt.value, v.CurrentValue)
			assertNullDec(t, tt.profitLoss, v.ProfitLoss)
			assertNullDec(t, tt.percentage, v.ProfitLossPercentage)
		})
	}
}

func TestValuate_TotalCostIsExact(t *testing.T) {
	for _, tt := range []struct{ quantity, price, want string }{
		{"3", "0.1", "0.3"},
		{"3", "33.33", "99.99"},
		{"0.001", "1234567.89", "1234.56789"},
		{"12.5", "80.08", "1001"},
	} {
		v := Valuate(holding("X", "", tt.quantity, tt.price, ""))
		assert.Equal(t, tt.want, v.TotalCost.String())
	}
}

func rankingFixture() []HoldingValuation {
	// Percentages 10, -5, 30, null, 2
	return ValuateAll([]domain.Holding{
		holding("A", "Tech", "1", "100", "110"),
		holding("B", "Tech", "1", "100", "95"),
		holding("C", "Banks", "1", "100", "130"),
		holding("D", "Banks", "1", "100", ""),
		holding("E", "Energy", "1", "100", "102"),
	})
}

func symbols(vals []HoldingValuation) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = v.Symbol
	}
	return out
}

func TestRankTopAndWorst(t *testing.T) {
	vals := rankingFixture()

	assert.Equal(t, []string{"C", "A", "E"}, symbols(RankTop(vals, 3)))
	assert.Equal(t, []string{"B", "E", "A"}, symbols(RankWorst(vals, 3)))

	// Unpriced holdings are never ranked
	assert.Equal(t, []string{"C", "A", "E", "B"}, symbols(RankTop(vals, 10)))
	assert.Empty(t, RankTop(vals, 0))

	// Input is not reordered
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, symbols(vals))
}

func TestRankTop_TiesKeepInputOrder(t *testing.T) {
	vals := ValuateAll([]domain.Holding{
		holding("FIRST", "", "1", "100", "105"),
		holding("BEST", "", "1", "100", "120"),
		holding("SECOND", "", "2", "50", "52.5"),
		holding("THIRD", "", "10", "10", "10.5"),
	})

	assert.Equal(t, []string{"BEST", "FIRST", "SECOND", "THIRD"}, symbols(RankTop(vals, 4)))
	assert.Equal(t, []string{"FIRST", "SECOND", "THIRD", "BEST"}, symbols(RankWorst(vals, 4)))
}

func TestSummarize(t *testing.T) {
	holdings := []domain.Holding{
		holding("A", "Tech", "1", "100", "110"),
		holding("B", "Tech", "1", "100", "95"),
		holding("C", "Banks", "1", "100", "130"),
		holding("D", "Banks", "1", "100", ""),
		holding("E", "Energy", "1", "100", "102"),
	}

	s := Summarize(holdings, SummaryPerformers)

	assert.Equal(t, 5, s.TotalHoldings)
	assert.Len(t, s.Holdings, 5)
	assert.True(t, s.TotalInvestment.Equal(testingpkg.Dec("500")))
	// D has no price and is left out of the value, not counted as zero
	assertNullDec(t, "437", s.TotalCurrentValue)
	assertNullDec(t, "-63", s.TotalProfitLoss)
	assertNullDec(t, "-12.6", s.TotalProfitLossPercentage)

	require.Len(t, s.TopPerformers, 4)
	assert.Equal(t, "C", s.TopPerformers[0].Symbol)
	assertNullDec(t, "30", s.TopPerformers[0].ProfitLossPercentage)
	assert.Equal(t, "B", s.WorstPerformers[0].Symbol)

	dashboard := Summarize(holdings, DashboardPerformers)
	assert.Len(t, dashboard.TopPerformers, 3)
	assert.Len(t, dashboard.WorstPerformers, 3)
}

func TestSummarize_NothingPriced(t *testing.T) {
	s := Summarize([]domain.Holding{holding("D", "Banks", "2", "50", "")}, SummaryPerformers)

	assert.True(t, s.TotalInvestment.Equal(testingpkg.Dec("100")))
	assert.False(t, s.TotalCurrentValue.Valid)
	assert.False(t, s.TotalProfitLoss.Valid)
	assert.False(t, s.TotalProfitLossPercentage.Valid)
	assert.Empty(t, s.TopPerformers)
	assert.Empty(t, s.WorstPerformers)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, SummaryPerformers)

	assert.Zero(t, s.TotalHoldings)
	assert.True(t, s.TotalInvestment.IsZero())
	assert.False(t, s.TotalCurrentValue.Valid)
	assert.NotNil(t, s.TopPerformers)
}

func TestAllocate(t *testing.T) {
	allocations := Allocate(rankingFixture())

	require.Len(t, allocations, 3)

	// Tech 110+95, Banks 130 (D unpriced), Energy 102; total 437
	assert.Equal(t, "Tech", allocations[0].Industry)
	assert.True(t, allocations[0].Value.Equal(testingpkg.Dec("205")))
	assert.Equal(t, 2, allocations[0].HoldingCount)
	assert.Equal(t, "46.91", allocations[0].Percentage.StringFixed(2))

	assert.Equal(t, "Banks", allocations[1].Industry)
	assert.Equal(t, 1, allocations[1].HoldingCount)
	assert.Equal(t, "29.75", allocations[1].Percentage.StringFixed(2))

	assert.Equal(t, "Energy", allocations[2].Industry)
	assert.Equal(t, "23.34", allocations[2].Percentage.StringFixed(2))
}

func TestAllocate_NothingPriced(t *testing.T) {
	assert.Empty(t, Allocate(ValuateAll([]domain.Holding{holding("D", "Banks", "1", "1", "")})))
}

func TestRankMovers(t *testing.T) {
	holdings := []domain.Holding{
		holding("FLAT", "", "1", "100", "100"),
		holding("UNPRICED", "", "1", "100", ""),
	}
	// Gains 1..7 percent and losses 1..6 percent
	for i := 1; i <= 7; i++ {
		holdings = append(holdings, holding("UP"+decimal.NewFromInt(int64(i)).String(), "", "1", "100",
			decimal.NewFromInt(int64(100+i)).String()))
	}
	for i := 1; i <= 6; i++ {
		holdings = append(holdings, holding("DOWN"+decimal.NewFromInt(int64(i)).String(), "", "1", "100",
			decimal.NewFromInt(int64(100-i)).String()))
	}

	movers := RankMovers(ValuateAll(holdings))

	// Top ten by size: 7,6,-6,5,-5,4,-4,3,-3,2 (gains first on ties, by input order)
	gainers := make([]string, len(movers.Gainers))
	for i, m := range movers.Gainers {
		gainers[i] = m.Symbol
	}
	losers := make([]string, len(movers.Losers))
	for i, m := range movers.Losers {
		losers[i] = m.Symbol
	}

	assert.Equal(t, []string{"UP7", "UP6", "UP5", "UP4", "UP3"}, gainers)
	assert.Equal(t, []string{"DOWN6", "DOWN5", "DOWN4", "DOWN3"}, losers)
	assert.True(t, movers.Losers[0].ChangePercentage.Equal(testingpkg.Dec("-6")))
}
