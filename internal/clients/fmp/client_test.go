package fmp

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/clientdata"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/database"
)

type recordedRequest struct {
	path  string
	query string
	agent string
}

type fakeProvider struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{path: r.URL.Path, query: r.URL.RawQuery, agent: r.UserAgent()})
	f.mu.Unlock()
	f.handler(w, r)
}

func (f *fakeProvider) calls() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) ProviderRequest(endpoint, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[endpoint+"/"+outcome]++
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request), withCache bool) (*Client, *fakeProvider, *clientdata.Repository) {
	t.Helper()

	fake := &fakeProvider{handler: handler}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	var cache *clientdata.Repository
	if withCache {
		cache = newCacheRepo(t)
	}

	client, err := New(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/api/v3",
		Timeout: 2 * time.Second,
	}, cache, zerolog.Nop())
	require.NoError(t, err)

	return client, fake, cache
}

// newCacheRepo opens a migrated client_data database in a temp dir.
func newCacheRepo(t *testing.T) *clientdata.Repository {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "client_data.db"),
		Profile: database.ProfileCache,
		Name:    database.NameClientData,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	return clientdata.NewRepository(db.Conn())
}

func TestNew_RequiresAPIKey(t *testing.T) {
	client, err := New(Config{BaseURL: "http://example.invalid/"}, nil, zerolog.Nop())
	assert.Nil(t, client)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestGetCurrentPrice(t *testing.T) {
	client, fake, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"symbol":"AAPL","price":189.37,"volume":51234567}]`)
	}, false)

	price, err := client.GetCurrentPrice(context.Background(), "aapl")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("189.37").Equal(price))

	calls := fake.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/api/v3/quote-short/AAPL", calls[0].path)
	assert.Contains(t, calls[0].query, "apikey=test-key")
	assert.Equal(t, userAgent, calls[0].agent)
}

func TestGetCurrentPrice_SoftFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler func(w http.ResponseWriter, r *http.Request)
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `[{"symbol":`) }},
		{"empty array", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `[]`) }},
		{"zero price", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `[{"symbol":"AAPL","price":0}]`) }},
		{"negative price", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `[{"symbol":"AAPL","price":-3}]`) }},
		{"provider error message", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"Error Message":"Invalid API KEY."}`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _, _ := newTestClient(t, tt.handler, false)

			_, err := client.GetCurrentPrice(context.Background(), "AAPL")
			assert.ErrorIs(t, err, ErrNoData)
		})
	}
}

func TestGetCurrentPrice_Timeout(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}, false)
	client.client.Timeout = 50 * time.Millisecond

	_, err := client.GetCurrentPrice(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestGetCurrentPrice_StaleCacheFallback(t *testing.T) {
	var fail atomic.Bool
	client, _, cache := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `[{"symbol":"MSFT","price":"410.10"}]`)
	}, true)

	price, err := client.GetCurrentPrice(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, "410.1", price.String())

	cached, err := cache.Get(clientdata.TableQuotes, "MSFT")
	require.NoError(t, err)
	require.NotNil(t, cached)

	fail.Store(true)
	price, err = client.GetCurrentPrice(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, "410.1", price.String())

	_, err = client.GetCurrentPrice(context.Background(), "NVDA")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestGetCurrentPrice_OldCachedQuoteNotServed(t *testing.T) {
	client, _, cache := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, true)

	tests := []struct {
		name    string
		age     time.Duration
		wantErr bool
	}{
		{"fetched a minute ago", time.Minute, false},
		{"fetched just inside the window", clientdata.TTLCurrentPrice - time.Minute, false},
		{"fetched an hour ago", time.Hour, true},
		{"fetched days ago", 72 * time.Hour, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote := cachedQuote{
				Price:     decimal.RequireFromString("100"),
				FetchedAt: time.Now().Add(-tt.age).Unix(),
			}
			require.NoError(t, cache.Store(clientdata.TableQuotes, "AAPL", quote, clientdata.TTLCurrentPrice))

			price, err := client.GetCurrentPrice(context.Background(), "AAPL")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoData)
				assert.True(t, price.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "100", price.String())
		})
	}
}

func TestGetCurrentPrices_Batches(t *testing.T) {
	client, fake, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		symbols := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v3/quote/"), ",")
		parts := make([]string, 0, len(symbols))
		for _, s := range symbols {
			parts = append(parts, fmt.Sprintf(`{"symbol":%q,"price":10.5}`, s))
		}
		fmt.Fprint(w, "["+strings.Join(parts, ",")+"]")
	}, false)
	rec := &countingRecorder{}
	client.SetRecorder(rec)

	symbols := make([]string, 120)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("S%03d", i)
	}

	prices := client.GetCurrentPrices(context.Background(), symbols)
	assert.Len(t, prices, 120)

	calls := fake.calls()
	require.Len(t, calls, 3)
	var sizes []int
	for _, c := range calls {
		sizes = append(sizes, len(strings.Split(strings.TrimPrefix(c.path, "/api/v3/quote/"), ",")))
	}
	assert.Equal(t, []int{50, 50, 20}, sizes)
	assert.Equal(t, 3, rec.counts["quote/"+OutcomeSuccess])
}

func TestGetCurrentPrices_DedupesAndOmits(t *testing.T) {
	client, fake, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// GHOST is omitted, ZERO has no usable price, EXTRA was never requested
		fmt.Fprint(w, `[{"symbol":"AAPL","price":190},{"symbol":"ZERO","price":0},{"symbol":"EXTRA","price":5}]`)
	}, false)

	prices := client.GetCurrentPrices(context.Background(), []string{"aapl", "AAPL", " ghost ", "ZERO", ""})

	require.Len(t, prices, 1)
	assert.True(t, decimal.NewFromInt(190).Equal(prices["AAPL"]))
	calls := fake.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/api/v3/quote/AAPL,GHOST,ZERO", calls[0].path)
}

func TestGetCurrentPrices_FailedBatchContributesNothing(t *testing.T) {
	var call atomic.Int32
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if call.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `[{"symbol":"S050","price":1}]`)
	}, false)

	symbols := make([]string, 60)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("S%03d", i)
	}

	prices := client.GetCurrentPrices(context.Background(), symbols)
	assert.Len(t, prices, 1)
	assert.Contains(t, prices, "S050")
}

const historicalBody = `{
  "symbol": "AAPL",
  "historical": [
    {"date": "2024-03-08", "open": 169.0, "high": 173.7, "low": 168.9, "close": 170.73, "volume": 0},
    {"date": "2024-03-07", "open": 169.15, "high": 170.73, "low": 168.49, "close": 169.0, "volume": 71765100},
    {"date": "2024-03-06", "open": 171.06, "high": 171.24, "low": 168.68, "close": 169.12, "volume": 68587700},
    {"date": "garbage", "open": 1, "high": 1, "low": 1, "close": 1, "volume": 1}
  ]
}`

func TestGetHistoricalBars(t *testing.T) {
	client, fake, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, historicalBody)
	}, false)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)

	bars, err := client.GetHistoricalBars(context.Background(), "AAPL", from, to)
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), bars[0].Date)
	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), bars[2].Date)
	assert.Equal(t, "169.12", bars[0].Close.String())
	assert.Equal(t, int64(68587700), bars[0].Volume)

	calls := fake.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/api/v3/historical-price-full/AAPL", calls[0].path)
	assert.Contains(t, calls[0].query, "from=2024-03-01")
	assert.Contains(t, calls[0].query, "to=2024-03-08")
}

func TestGetHistoricalBars_UnknownSymbol(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}, false)

	_, err := client.GetHistoricalBars(context.Background(), "NOPE", time.Now().AddDate(0, 0, -3), time.Now())
	assert.ErrorIs(t, err, ErrNoData)
}

func TestGetLatestBar_SkipsZeroVolume(t *testing.T) {
	client, fake, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, historicalBody)
	}, false)

	asOf := time.Date(2024, 3, 8, 15, 0, 0, 0, time.UTC)
	bar, err := client.GetLatestBar(context.Background(), "AAPL", asOf)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC), bar.Date)
	assert.Equal(t, "169", bar.Close.String())
	assert.Contains(t, fake.calls()[0].query, "from=2024-03-03")
}

func TestGetLatestBar_NoTradedBar(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"symbol":"AAPL","historical":[{"date":"2024-03-08","open":1,"high":1,"low":1,"close":1,"volume":0}]}`)
	}, false)

	_, err := client.GetLatestBar(context.Background(), "AAPL", time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestGetProfile_CachesResult(t *testing.T) {
	client, fake, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"symbol":"AAPL","companyName":"Apple Inc.","industry":"Consumer Electronics","price":189.5}]`)
	}, true)

	for i := 0; i < 2; i++ {
		profile, err := client.GetProfile(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.Equal(t, "Apple Inc.", profile.CompanyName)
		assert.Equal(t, "Consumer Electronics", profile.Industry)
		assert.Equal(t, "189.5", profile.Price.String())
	}

	assert.Len(t, fake.calls(), 1)
}

func TestGetProfile_Empty(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}, false)

	_, err := client.GetProfile(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrNoData)
}
