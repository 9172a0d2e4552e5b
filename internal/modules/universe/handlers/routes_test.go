package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterRoutes(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/instruments"},
		{http.MethodPost, "/api/instruments"},
		{http.MethodDelete, "/api/instruments/AAPL"},
		{http.MethodGet, "/api/prices/current/AAPL"},
		{http.MethodPost, "/api/prices/refresh/AAPL"},
		{http.MethodPost, "/api/prices/force-real/AAPL"},
		{http.MethodPost, "/api/prices/refresh-all"},
		{http.MethodPost, "/api/prices/batch"},
		{http.MethodPost, "/api/prices/backfill"},
		{http.MethodGet, "/api/prices/history/1"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			// Router misses answer in plain text; every handler answers JSON
			assert.NotEqual(t, http.StatusMethodNotAllowed, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/prices/refresh-all", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
