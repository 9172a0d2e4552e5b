package universe

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/domain"
	testingpkg "github.com/phanhuy16/Portfolio-Tracker-Api/internal/testing"
)

func bar(open, high, low, closePrice string, volume int64) domain.PriceBar {
	return domain.PriceBar{
		Date:   time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
		Open:   testingpkg.Dec(open),
		High:   testingpkg.Dec(high),
		Low:    testingpkg.Dec(low),
		Close:  testingpkg.Dec(closePrice),
		Volume: volume,
	}
}

func TestPriceValidator_ValidateBar(t *testing.T) {
	v := NewPriceValidator(zerolog.Nop())

	tests := []struct {
		name string
		bar  domain.PriceBar
		want string
	}{
		{"valid", bar("100", "105", "95", "102", 10), ""},
		{"flat", bar("100", "100", "100", "100", 0), ""},
		{"high below low", bar("100", "90", "95", "92", 10), "high_below_low"},
		{"high below open", bar("106", "105", "95", "102", 10), "high_below_open"},
		{"high below close", bar("100", "105", "95", "106", 10), "high_below_close"},
		{"low above open", bar("94", "105", "95", "102", 10), "low_above_open"},
		{"low above close", bar("100", "105", "95", "94", 10), "low_above_close"},
		{"zero close", bar("100", "105", "95", "0", 10), "non_positive_price"},
		{"negative volume", bar("100", "105", "95", "102", -1), "negative_volume"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.ValidateBar(tt.bar))
		})
	}
}

func TestPriceValidator_FilterBars(t *testing.T) {
	v := NewPriceValidator(zerolog.Nop())

	bars := []domain.PriceBar{
		bar("100", "105", "95", "102", 10),
		bar("100", "90", "95", "92", 10),
		bar("101", "103", "99", "100", 10),
	}

	valid := v.FilterBars("AAPL", bars)
	assert.Len(t, valid, 2)
	assert.Equal(t, "102", valid[0].Close.String())
	assert.Equal(t, "100", valid[1].Close.String())
}

func TestPriceValidator_ValidatePrice(t *testing.T) {
	v := NewPriceValidator(zerolog.Nop())
	assert.Equal(t, "", v.ValidatePrice(testingpkg.Dec("0.01")))
	assert.Equal(t, "non_positive_price", v.ValidatePrice(testingpkg.Dec("0")))
	assert.Equal(t, "non_positive_price", v.ValidatePrice(testingpkg.Dec("-1")))
}
