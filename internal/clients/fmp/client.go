// Package fmp provides a client for the Financial Modeling Prep market-data API.
package fmp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/clientdata"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/domain"
)

// BatchSize is the maximum number of symbols per batched quote request.
const BatchSize = 50

// latestBarLookback bounds the window searched for the most recent traded day.
const latestBarLookback = 5 * 24 * time.Hour

const userAgent = "PortfolioTracker/1.0"

var (
	// ErrNoData marks a soft provider failure: bad status, timeout, malformed or empty body.
	ErrNoData = errors.New("provider returned no usable data")
	// ErrMissingAPIKey is returned by New when no API key is configured.
	ErrMissingAPIKey = errors.New("fmp: API key is required")
)

// Request outcomes reported to the Recorder.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Recorder receives one call per provider request.
type Recorder interface {
	ProviderRequest(endpoint, outcome string)
}

// Config holds client configuration
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	BatchPause time.Duration // Pause between batched quote requests

	// StaleQuoteMaxAge bounds the age of a cached quote served when the provider fails.
	// Zero means clientdata.TTLCurrentPrice.
	StaleQuoteMaxAge time.Duration
}

// Client for financialmodelingprep.com
type Client struct {
	baseURL    string
	apiKey     string
	batchPause time.Duration
	staleAge   time.Duration
	client     *http.Client
	cacheRepo  *clientdata.Repository
	recorder   Recorder
	log        zerolog.Logger
}

// New creates a new FMP client.
// cacheRepo is optional - if nil, caching and stale fallback are disabled.
func New(cfg Config, cacheRepo *clientdata.Repository, log zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.StaleQuoteMaxAge <= 0 {
		cfg.StaleQuoteMaxAge = clientdata.TTLCurrentPrice
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/") + "/",
		apiKey:     cfg.APIKey,
		batchPause: cfg.BatchPause,
		staleAge:   cfg.StaleQuoteMaxAge,
		client:     &http.Client{Timeout: cfg.Timeout},
		cacheRepo:  cacheRepo,
		log:        log.With().Str("client", "fmp").Logger(),
	}, nil
}

// SetRecorder installs request instrumentation.
func (c *Client) SetRecorder(r Recorder) {
	c.recorder = r
}

type cachedQuote struct {
	Price     decimal.Decimal `json:"price"`
	FetchedAt int64           `json:"fetched_at"`
}

// GetCurrentPrice fetches the latest traded price for symbol.
// If the provider fails, a cached quote fetched within StaleQuoteMaxAge is returned instead.
// Anything older is not served, so the caller sees the provider error.
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	sym := domain.NormalizeSymbol(symbol)
	if sym == "" {
		return decimal.Zero, fmt.Errorf("%w: empty symbol", ErrNoData)
	}

	body, err := c.get(ctx, "quote_short", "quote-short/"+url.PathEscape(sym), nil)
	if err == nil {
		for _, q := range parseQuotes(body) {
			if q.Symbol == sym {
				c.cacheQuote(sym, q.Price)
				return q.Price, nil
			}
		}
		err = fmt.Errorf("%w: no quote for %s", ErrNoData, sym)
	}

	if stale, ok := c.staleQuote(sym); ok {
		c.log.Warn().
			Err(err).
			Str("symbol", sym).
			Str("price", stale.String()).
			Msg("Provider failed, using recent cached quote")
		return stale, nil
	}

	return decimal.Zero, err
}

// GetCurrentPrices fetches quotes for many symbols in batches of BatchSize.
// Symbols the provider omits, or quotes with a non-positive price, are left out
// of the result. A failed batch contributes nothing and never fails the call.
func (c *Client) GetCurrentPrices(ctx context.Context, symbols []string) map[string]decimal.Decimal {
	unique := dedupeSymbols(symbols)
	prices := make(map[string]decimal.Decimal, len(unique))

	for start := 0; start < len(unique); start += BatchSize {
		if start > 0 && !sleepCtx(ctx, c.batchPause) {
			c.log.Debug().Int("remaining", len(unique)-start).Msg("Batch quote fetch cancelled")
			break
		}

		batch := unique[start:min(start+BatchSize, len(unique))]
		wanted := make(map[string]bool, len(batch))
		escaped := make([]string, len(batch))
		for i, sym := range batch {
			wanted[sym] = true
			escaped[i] = url.PathEscape(sym)
		}

		body, err := c.get(ctx, "quote", "quote/"+strings.Join(escaped, ","), nil)
		if err != nil {
			c.log.Warn().
				Err(err).
				Int("batch_size", len(batch)).
				Str("first_symbol", batch[0]).
				Msg("Batch quote request failed")
			continue
		}

		for _, q := range parseQuotes(body) {
			if !wanted[q.Symbol] {
				continue
			}
			prices[q.Symbol] = q.Price
			c.cacheQuote(q.Symbol, q.Price)
		}
	}

	c.log.Debug().
		Int("requested", len(unique)).
		Int("priced", len(prices)).
		Msg("Fetched batch quotes")

	return prices
}

// GetLatestBar returns the most recent bar with positive volume in [asOf-5d, asOf].
func (c *Client) GetLatestBar(ctx context.Context, symbol string, asOf time.Time) (domain.PriceBar, error) {
	bars, err := c.GetHistoricalBars(ctx, symbol, asOf.Add(-latestBarLookback), asOf)
	if err != nil {
		return domain.PriceBar{}, err
	}

	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].Volume > 0 {
			return bars[i], nil
		}
	}

	return domain.PriceBar{}, fmt.Errorf("%w: no traded bar for %s in last %s", ErrNoData, domain.NormalizeSymbol(symbol), latestBarLookback)
}

// GetHistoricalBars fetches daily bars in [from, to], ascending by date.
func (c *Client) GetHistoricalBars(ctx context.Context, symbol string, from, to time.Time) ([]domain.PriceBar, error) {
	sym := domain.NormalizeSymbol(symbol)
	if sym == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrNoData)
	}

	query := url.Values{}
	query.Set("from", from.UTC().Format("2006-01-02"))
	query.Set("to", to.UTC().Format("2006-01-02"))

	body, err := c.get(ctx, "historical", "historical-price-full/"+url.PathEscape(sym), query)
	if err != nil {
		return nil, err
	}

	bars, err := parseHistorical(sym, body)
	if err != nil {
		return nil, err
	}

	c.log.Debug().
		Str("symbol", sym).
		Int("bars", len(bars)).
		Msg("Fetched historical bars")

	return bars, nil
}

// GetProfile returns company name and industry for symbol, cached for TTLProfile.
func (c *Client) GetProfile(ctx context.Context, symbol string) (Profile, error) {
	sym := domain.NormalizeSymbol(symbol)
	if sym == "" {
		return Profile{}, fmt.Errorf("%w: empty symbol", ErrNoData)
	}

	if c.cacheRepo != nil {
		if data, err := c.cacheRepo.GetIfFresh(clientdata.TableProfiles, sym); err == nil && data != nil {
			var cached Profile
			if err := json.Unmarshal(data, &cached); err == nil {
				c.log.Debug().Str("symbol", sym).Msg("Profile cache hit")
				return cached, nil
			}
		}
	}

	profile, err := c.fetchProfile(ctx, sym)
	if err != nil {
		if stale, ok := c.staleProfile(sym); ok {
			c.log.Warn().Err(err).Str("symbol", sym).Msg("Provider failed, using stale cached profile")
			return stale, nil
		}
		return Profile{}, err
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(clientdata.TableProfiles, sym, profile, clientdata.TTLProfile); err != nil {
			c.log.Warn().Err(err).Str("symbol", sym).Msg("Failed to cache profile")
		}
	}

	return profile, nil
}

func (c *Client) fetchProfile(ctx context.Context, sym string) (Profile, error) {
	body, err := c.get(ctx, "profile", "profile/"+url.PathEscape(sym), nil)
	if err != nil {
		return Profile{}, err
	}
	return parseProfile(sym, body)
}

// get performs one GET and decodes the body as untyped JSON with numbers kept exact.
func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values) (body any, err error) {
	defer func() {
		if c.recorder == nil {
			return
		}
		outcome := OutcomeSuccess
		if err != nil {
			outcome = OutcomeError
		}
		c.recorder.ProviderRequest(endpoint, outcome)
	}()

	if query == nil {
		query = url.Values{}
	}
	query.Set("apikey", c.apiKey)
	reqURL := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	c.log.Debug().Str("endpoint", endpoint).Str("path", path).Msg("Provider request")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", ErrNoData, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrNoData, endpoint, resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s response: %w", ErrNoData, endpoint, err)
	}

	if msg, ok := providerError(body); ok {
		return nil, fmt.Errorf("%w: %s", ErrNoData, msg)
	}

	return body, nil
}

func (c *Client) cacheQuote(sym string, price decimal.Decimal) {
	if c.cacheRepo == nil {
		return
	}
	cached := cachedQuote{Price: price, FetchedAt: time.Now().Unix()}
	if err := c.cacheRepo.Store(clientdata.TableQuotes, sym, cached, clientdata.TTLCurrentPrice); err != nil {
		c.log.Warn().Err(err).Str("symbol", sym).Msg("Failed to cache quote")
	}
}

// staleQuote retrieves a cached quote even if its cache entry expired,
// as long as it was fetched no more than staleAge ago.
func (c *Client) staleQuote(sym string) (decimal.Decimal, bool) {
	if c.cacheRepo == nil {
		return decimal.Zero, false
	}

	data, err := c.cacheRepo.Get(clientdata.TableQuotes, sym)
	if err != nil || data == nil {
		return decimal.Zero, false
	}

	var cached cachedQuote
	if err := json.Unmarshal(data, &cached); err != nil || !cached.Price.IsPositive() {
		return decimal.Zero, false
	}
	if time.Since(time.Unix(cached.FetchedAt, 0)) > c.staleAge {
		return decimal.Zero, false
	}

	return cached.Price, true
}

func (c *Client) staleProfile(sym string) (Profile, bool) {
	if c.cacheRepo == nil {
		return Profile{}, false
	}

	data, err := c.cacheRepo.Get(clientdata.TableProfiles, sym)
	if err != nil || data == nil {
		return Profile{}, false
	}

	var cached Profile
	if err := json.Unmarshal(data, &cached); err != nil {
		return Profile{}, false
	}

	return cached, true
}

func dedupeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	unique := make([]string, 0, len(symbols))
	for _, s := range symbols {
		sym := domain.NormalizeSymbol(s)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		unique = append(unique, sym)
	}
	return unique
}

// sleepCtx waits for d, returning false if ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
