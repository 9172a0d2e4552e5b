package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio/{ownerID}", func(r chi.Router) {
		owner := func(fn func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				fn(w, r, chi.URLParam(r, "ownerID"))
			}
		}

		r.Get("/holdings", owner(h.HandleGetHoldings))
		r.Post("/holdings", owner(h.HandleAddHolding))
		r.Put("/holdings/{instrumentID}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleUpdateHolding(w, r, chi.URLParam(r, "ownerID"), chi.URLParam(r, "instrumentID"))
		})
		r.Delete("/holdings/{instrumentID}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleDeleteHolding(w, r, chi.URLParam(r, "ownerID"), chi.URLParam(r, "instrumentID"))
		})

		r.Get("/summary", owner(h.HandleGetSummary))     // Totals with top/worst 5
		r.Get("/dashboard", owner(h.HandleGetDashboard)) // Totals with top/worst 3
		r.Get("/allocation", owner(h.HandleGetAllocation))
		r.Get("/movers", owner(h.HandleGetMovers))
	})
}
