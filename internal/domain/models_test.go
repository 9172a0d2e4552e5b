package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "AAPL", NormalizeSymbol(" aapl "))
	assert.Equal(t, "BRK.B", NormalizeSymbol("brk.b"))
	assert.Equal(t, "", NormalizeSymbol("   "))
}

func TestTruncateToDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)

	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"utc afternoon", time.Date(2024, 3, 5, 15, 30, 0, 0, time.UTC), time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"already midnight", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"offset zone crosses day", time.Date(2024, 3, 6, 2, 0, 0, 0, loc), time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(TruncateToDay(tt.in)))
			assert.Equal(t, time.UTC, TruncateToDay(tt.in).Location())
		})
	}
}
