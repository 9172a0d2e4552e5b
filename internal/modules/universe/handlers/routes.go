package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers instrument and price routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/instruments", func(r chi.Router) {
		r.Get("/", h.HandleListInstruments)
		r.Post("/", h.HandleRegisterInstruments)
		r.Delete("/{symbol}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleDeactivateInstrument(w, r, chi.URLParam(r, "symbol"))
		})
	})

	r.Route("/prices", func(r chi.Router) {
		r.Get("/current/{symbol}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetCurrentPrice(w, r, chi.URLParam(r, "symbol"))
		})
		r.Post("/refresh/{symbol}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleRefreshPrice(w, r, chi.URLParam(r, "symbol"))
		})
		r.Post("/force-real/{symbol}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleForceRealRefresh(w, r, chi.URLParam(r, "symbol"))
		})
		r.Post("/refresh-all", h.HandleRefreshAll)
		r.Post("/batch", h.HandleBatchRefresh)
		r.Post("/backfill", h.HandleBackfill)
		r.Get("/history/{instrumentID}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetHistory(w, r, chi.URLParam(r, "instrumentID"))
		})
	})
}
