package fmp

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/domain"
)

// Quote is one entry of a quote or quote-short response.
type Quote struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// Profile is the subset of the company profile the directory keeps.
type Profile struct {
	Symbol      string          `json:"symbol"`
	CompanyName string          `json:"company_name"`
	Industry    string          `json:"industry"`
	Price       decimal.Decimal `json:"price"`
}

// Response bodies are walked as untyped JSON with jsonpath so that a missing
// or oddly typed field drops one entry instead of failing the whole payload.

func lookup(path string, v any) (any, bool) {
	val, err := jsonpath.Get(path, v)
	if err != nil || val == nil {
		return nil, false
	}
	return val, true
}

func lookupString(path string, v any) string {
	val, ok := lookup(path, v)
	if !ok {
		return ""
	}
	s, _ := val.(string)
	return strings.TrimSpace(s)
}

func lookupDecimal(path string, v any) (decimal.Decimal, bool) {
	val, ok := lookup(path, v)
	if !ok {
		return decimal.Zero, false
	}
	return toDecimal(val)
}

func toDecimal(val any) (decimal.Decimal, bool) {
	switch n := val.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

func lookupInt64(path string, v any) int64 {
	d, ok := lookupDecimal(path, v)
	if !ok {
		return 0
	}
	return d.IntPart()
}

// providerError extracts the error message FMP returns with a 200 status.
func providerError(v any) (string, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	for _, key := range []string{"Error Message", "error"} {
		if msg, ok := obj[key].(string); ok && msg != "" {
			return msg, true
		}
	}
	return "", false
}

func elements(v any) []any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	return list
}

// parseQuotes decodes a quote or quote-short array.
// Entries without a symbol or with a non-positive price are dropped.
func parseQuotes(v any) []Quote {
	var quotes []Quote
	for _, elem := range elements(v) {
		symbol := domain.NormalizeSymbol(lookupString("$.symbol", elem))
		price, ok := lookupDecimal("$.price", elem)
		if symbol == "" || !ok || !price.IsPositive() {
			continue
		}
		quotes = append(quotes, Quote{Symbol: symbol, Price: price})
	}
	return quotes
}

func parseProfile(symbol string, v any) (Profile, error) {
	list := elements(v)
	if len(list) == 0 {
		return Profile{}, fmt.Errorf("%w: empty profile for %s", ErrNoData, symbol)
	}
	first := list[0]
	p := Profile{
		Symbol:      symbol,
		CompanyName: lookupString("$.companyName", first),
		Industry:    lookupString("$.industry", first),
	}
	if price, ok := lookupDecimal("$.price", first); ok {
		p.Price = price
	}
	if p.CompanyName == "" {
		p.CompanyName = symbol
	}
	return p, nil
}

// parseHistorical decodes historical-price-full into bars sorted ascending by date.
// FMP lists newest first; rows with unparseable dates or prices are skipped.
func parseHistorical(symbol string, v any) ([]domain.PriceBar, error) {
	rows, ok := lookup("$.historical", v)
	if !ok {
		return nil, fmt.Errorf("%w: no historical series for %s", ErrNoData, symbol)
	}

	list := elements(rows)
	bars := make([]domain.PriceBar, 0, len(list))
	for _, row := range list {
		date, err := time.Parse("2006-01-02", lookupString("$.date", row))
		if err != nil {
			continue
		}
		open, okO := lookupDecimal("$.open", row)
		high, okH := lookupDecimal("$.high", row)
		low, okL := lookupDecimal("$.low", row)
		closePrice, okC := lookupDecimal("$.close", row)
		if !okO || !okH || !okL || !okC {
			continue
		}
		bars = append(bars, domain.PriceBar{
			Date:   domain.TruncateToDay(date),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: lookupInt64("$.volume", row),
		})
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})

	return bars, nil
}
