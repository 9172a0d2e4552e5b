package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/modules/portfolio"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/modules/universe"
	testingpkg "github.com/phanhuy16/Portfolio-Tracker-Api/internal/testing"
)

type testEnv struct {
	router chi.Router
	quotes *testingpkg.MockQuoteClient
	ids    map[string]int64
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, cleanup := testingpkg.NewTestDB(t, "market")
	t.Cleanup(cleanup)

	logger := zerolog.New(nil).Level(zerolog.Disabled)
	instruments := universe.NewInstrumentRepository(db.Conn(), logger)
	history := universe.NewHistoryDB(db.Conn(), logger)
	holdings := portfolio.NewHoldingRepository(db.Conn(), logger)

	env := &testEnv{
		quotes: testingpkg.NewMockQuoteClient(),
		ids:    make(map[string]int64),
	}
	for _, inst := range testingpkg.NewInstrumentFixtures() {
		id, err := instruments.Create(context.Background(), inst)
		require.NoError(t, err)
		env.ids[inst.Symbol] = id
	}

	syncService := universe.NewSyncService(env.quotes, instruments, history, holdings, universe.SyncConfig{}, logger)
	service := portfolio.NewService(holdings, instruments, syncService, logger)

	env.router = chi.NewRouter()
	env.router.Route("/api", NewHandler(service, logger).RegisterRoutes)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(method, path, &buf))

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return w, response
}

func data(t *testing.T, response map[string]interface{}) map[string]interface{} {
	t.Helper()
	d, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %v", response)
	return d
}

func TestHandleAddHolding(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name           string
		body           interface{}
		expectedStatus int
	}{
		{"valid", map[string]interface{}{"symbol": "AAPL", "quantity": "10", "purchase_price": "150", "purchase_date": "2024-01-02"}, http.StatusCreated},
		{"numeric decimals", map[string]interface{}{"symbol": "msft", "quantity": 2, "purchase_price": 300.5}, http.StatusCreated},
		{"duplicate", map[string]interface{}{"symbol": "AAPL", "quantity": "1", "purchase_price": "1"}, http.StatusConflict},
		{"unknown symbol", map[string]interface{}{"symbol": "NOPE", "quantity": "1", "purchase_price": "1"}, http.StatusNotFound},
		{"zero quantity", map[string]interface{}{"symbol": "JPM", "quantity": "0", "purchase_price": "1"}, http.StatusBadRequest},
		{"missing symbol", map[string]interface{}{"quantity": "1", "purchase_price": "1"}, http.StatusBadRequest},
		{"bad date", map[string]interface{}{"symbol": "JPM", "quantity": "1", "purchase_price": "1", "purchase_date": "yesterday"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := env.do(t, http.MethodPost, "/api/portfolio/alice/holdings", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestHandleAddHolding_ErrorMessages(t *testing.T) {
	env := setupTestEnv(t)
	w, _ := env.do(t, http.MethodPost, "/api/portfolio/alice/holdings",
		map[string]interface{}{"symbol": "AAPL", "quantity": "10", "purchase_price": "150"})
	require.Equal(t, http.StatusCreated, w.Code)

	tests := []struct {
		name           string
		body           interface{}
		expectedStatus int
		expectedMsg    string
	}{
		{"duplicate", map[string]interface{}{"symbol": "AAPL", "quantity": "1", "purchase_price": "1"}, http.StatusConflict, "Holding already exists"},
		{"unknown symbol", map[string]interface{}{"symbol": "NOPE", "quantity": "1", "purchase_price": "1"}, http.StatusNotFound, "Instrument or holding not found"},
		{"negative price", map[string]interface{}{"symbol": "JPM", "quantity": "1", "purchase_price": "-1"}, http.StatusBadRequest,
			"Invalid holding: owner, quantity and purchase price are required and must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, response := env.do(t, http.MethodPost, "/api/portfolio/alice/holdings", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedMsg, response["error"])
			assert.NotContains(t, w.Body.String(), "alice")
		})
	}
}

func TestHandleGetHoldings_RefreshesStalePrices(t *testing.T) {
	env := setupTestEnv(t)
	env.quotes.SetPrice("AAPL", testingpkg.Dec("165"))

	w, _ := env.do(t, http.MethodPost, "/api/portfolio/alice/holdings",
		map[string]interface{}{"symbol": "AAPL", "quantity": "10", "purchase_price": "150"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, response := env.do(t, http.MethodGet, "/api/portfolio/alice/holdings", nil)
	require.Equal(t, http.StatusOK, w.Code)

	d := data(t, response)
	assert.Equal(t, float64(1), d["count"])
	holdings := d["holdings"].([]interface{})
	first := holdings[0].(map[string]interface{})
	assert.Equal(t, "AAPL", first["symbol"])
	assert.Equal(t, "1500", first["total_cost"])
	assert.Equal(t, "1650", first["current_value"])
	assert.Equal(t, "10", first["profit_loss_percentage"])
	assert.Equal(t, 1, env.quotes.Calls("AAPL"))

	// Fresh prices are served without another provider call
	_, _ = env.do(t, http.MethodGet, "/api/portfolio/alice/holdings", nil)
	assert.Equal(t, 1, env.quotes.Calls("AAPL"))
}

func TestHandleSummaryAndDashboard(t *testing.T) {
	env := setupTestEnv(t)
	env.quotes.SetPrice("AAPL", testingpkg.Dec("165"))
	env.quotes.SetPrice("MSFT", testingpkg.Dec("270"))

	for _, body := range []map[string]interface{}{
		{"symbol": "AAPL", "quantity": "10", "purchase_price": "150"},
		{"symbol": "MSFT", "quantity": "2", "purchase_price": "300"},
	} {
		w, _ := env.do(t, http.MethodPost, "/api/portfolio/alice/holdings", body)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w, response := env.do(t, http.MethodGet, "/api/portfolio/alice/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := data(t, response)
	assert.Equal(t, "2100", summary["total_investment"])
	assert.Equal(t, "2190", summary["total_current_value"])
	assert.Len(t, summary["top_performers"], 2)

	w, response = env.do(t, http.MethodGet, "/api/portfolio/alice/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "90", data(t, response)["profit_loss"])

	w, response = env.do(t, http.MethodGet, "/api/portfolio/alice/allocation", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, data(t, response)["allocation"], 2)

	w, response = env.do(t, http.MethodGet, "/api/portfolio/alice/movers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, data(t, response)["gainers"], 1)
	assert.Len(t, data(t, response)["losers"], 1)
}

func TestHandleUpdateAndDeleteHolding(t *testing.T) {
	env := setupTestEnv(t)
	w, _ := env.do(t, http.MethodPost, "/api/portfolio/alice/holdings",
		map[string]interface{}{"symbol": "JPM", "quantity": "5", "purchase_price": "140"})
	require.Equal(t, http.StatusCreated, w.Code)

	path := "/api/portfolio/alice/holdings/" + strconv.FormatInt(env.ids["JPM"], 10)

	w, _ = env.do(t, http.MethodPut, path, map[string]interface{}{"quantity": "6", "purchase_price": "139"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = env.do(t, http.MethodPut, path, map[string]interface{}{"quantity": "-1", "purchase_price": "139"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.do(t, http.MethodPut, "/api/portfolio/alice/holdings/abc", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = env.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleGetHoldings_EmptyPortfolio(t *testing.T) {
	env := setupTestEnv(t)

	w, response := env.do(t, http.MethodGet, "/api/portfolio/nobody/holdings", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), data(t, response)["count"])
	assert.Empty(t, data(t, response)["holdings"])
}
