// Package handlers provides HTTP handlers for holdings and portfolio valuation.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/domain"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/modules/portfolio"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	service *portfolio.Service
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleGetHoldings handles GET /api/portfolio/{ownerID}/holdings
func (h *Handler) HandleGetHoldings(w http.ResponseWriter, r *http.Request, ownerID string) {
	holdings, err := h.service.GetHoldings(r.Context(), ownerID)
	if err != nil {
		h.fail(w, err, "Failed to get holdings")
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"owner_id": ownerID,
		"holdings": holdings,
		"count":    len(holdings),
	})
}

type holdingRequest struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	PurchaseDate  string          `json:"purchase_date"` // YYYY-MM-DD, optional
}

// HandleAddHolding handles POST /api/portfolio/{ownerID}/holdings
func (h *Handler) HandleAddHolding(w http.ResponseWriter, r *http.Request, ownerID string) {
	var req holdingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Symbol == "" {
		h.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	var purchaseDate time.Time
	if req.PurchaseDate != "" {
		var err error
		if purchaseDate, err = time.Parse("2006-01-02", req.PurchaseDate); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid purchase_date, expected YYYY-MM-DD")
			return
		}
	}

	holding, err := h.service.AddHolding(r.Context(), ownerID, req.Symbol, req.Quantity, req.PurchasePrice, purchaseDate)
	if err != nil {
		h.fail(w, err, "Failed to add holding")
		return
	}

	h.writeData(w, http.StatusCreated, portfolio.Valuate(*holding))
}

// HandleUpdateHolding handles PUT /api/portfolio/{ownerID}/holdings/{instrumentID}
func (h *Handler) HandleUpdateHolding(w http.ResponseWriter, r *http.Request, ownerID, idParam string) {
	instrumentID, ok := h.parseID(w, idParam)
	if !ok {
		return
	}

	var req holdingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.UpdateHolding(r.Context(), ownerID, instrumentID, req.Quantity, req.PurchasePrice); err != nil {
		h.fail(w, err, "Failed to update holding")
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"owner_id":      ownerID,
		"instrument_id": instrumentID,
		"updated":       true,
	})
}

// HandleDeleteHolding handles DELETE /api/portfolio/{ownerID}/holdings/{instrumentID}
func (h *Handler) HandleDeleteHolding(w http.ResponseWriter, r *http.Request, ownerID, idParam string) {
	instrumentID, ok := h.parseID(w, idParam)
	if !ok {
		return
	}

	if err := h.service.RemoveHolding(r.Context(), ownerID, instrumentID); err != nil {
		h.fail(w, err, "Failed to delete holding")
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"owner_id":      ownerID,
		"instrument_id": instrumentID,
		"deleted":       true,
	})
}

// HandleGetSummary handles GET /api/portfolio/{ownerID}/summary
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request, ownerID string) {
	summary, err := h.service.GetSummary(r.Context(), ownerID)
	if err != nil {
		h.fail(w, err, "Failed to get portfolio summary")
		return
	}
	h.writeData(w, http.StatusOK, summary)
}

// HandleGetDashboard handles GET /api/portfolio/{ownerID}/dashboard
func (h *Handler) HandleGetDashboard(w http.ResponseWriter, r *http.Request, ownerID string) {
	dashboard, err := h.service.GetDashboard(r.Context(), ownerID)
	if err != nil {
		h.fail(w, err, "Failed to get dashboard")
		return
	}
	h.writeData(w, http.StatusOK, dashboard)
}

// HandleGetAllocation handles GET /api/portfolio/{ownerID}/allocation
func (h *Handler) HandleGetAllocation(w http.ResponseWriter, r *http.Request, ownerID string) {
	allocation, err := h.service.GetAllocation(r.Context(), ownerID)
	if err != nil {
		h.fail(w, err, "Failed to get allocation")
		return
	}
	h.writeData(w, http.StatusOK, map[string]interface{}{
		"allocation": allocation,
	})
}

// HandleGetMovers handles GET /api/portfolio/{ownerID}/movers
func (h *Handler) HandleGetMovers(w http.ResponseWriter, r *http.Request, ownerID string) {
	movers, err := h.service.GetMovers(r.Context(), ownerID)
	if err != nil {
		h.fail(w, err, "Failed to get movers")
		return
	}
	h.writeData(w, http.StatusOK, movers)
}

func (h *Handler) parseID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid instrument id")
		return 0, false
	}
	return id, true
}

// fail maps domain errors to client statuses with fixed messages and logs the detail.
func (h *Handler) fail(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, portfolio.ErrInvalidHolding):
		h.log.Debug().Err(err).Msg(msg)
		h.writeError(w, http.StatusBadRequest, "Invalid holding: owner, quantity and purchase price are required and must be positive")
	case errors.Is(err, domain.ErrNotFound):
		h.log.Debug().Err(err).Msg(msg)
		h.writeError(w, http.StatusNotFound, "Instrument or holding not found")
	case errors.Is(err, domain.ErrAlreadyExists):
		h.log.Debug().Err(err).Msg(msg)
		h.writeError(w, http.StatusConflict, "Holding already exists")
	default:
		h.log.Error().Err(err).Msg(msg)
		h.writeError(w, http.StatusInternalServerError, msg)
	}
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
