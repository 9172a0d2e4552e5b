// Package handlers provides HTTP handlers for the instrument directory and price sync.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/clients/fmp"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/domain"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/modules/universe"
)

const (
	dateLayout          = "2006-01-02"
	defaultHistoryRange = -1 // months
	maxRequestBody      = 1 << 20
)

// Handler handles instrument and price HTTP requests
type Handler struct {
	syncService  *universe.SyncService
	registration *universe.RegistrationService
	instruments  universe.InstrumentStore
	history      universe.BarStore
	quotes       universe.QuoteClient
	log          zerolog.Logger
}

// NewHandler creates a new universe handler
func NewHandler(
	syncService *universe.SyncService,
	registration *universe.RegistrationService,
	instruments universe.InstrumentStore,
	history universe.BarStore,
	quotes universe.QuoteClient,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		syncService:  syncService,
		registration: registration,
		instruments:  instruments,
		history:      history,
		quotes:       quotes,
		log:          log.With().Str("handler", "universe").Logger(),
	}
}

// HandleListInstruments handles GET /api/instruments
// ?active=false includes deactivated instruments.
func (h *Handler) HandleListInstruments(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") != "false"

	instruments, err := h.instruments.List(r.Context(), activeOnly)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list instruments")
		h.writeError(w, http.StatusInternalServerError, "Failed to list instruments")
		return
	}
	if instruments == nil {
		instruments = []domain.Instrument{}
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"instruments": instruments,
		"count":       len(instruments),
	})
}

type registerRequest struct {
	Symbols []string `json:"symbols"`
}

// HandleRegisterInstruments handles POST /api/instruments
func (h *Handler) HandleRegisterInstruments(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Symbols) == 0 {
		h.writeError(w, http.StatusBadRequest, "No symbols provided")
		return
	}

	if len(req.Symbols) == 1 {
		inst, created, err := h.registration.Register(r.Context(), req.Symbols[0])
		if err != nil {
			h.fail(w, err, req.Symbols[0], "Failed to register instrument")
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		h.writeData(w, status, map[string]interface{}{
			"instrument": inst,
			"created":    created,
		})
		return
	}

	registered := h.registration.RegisterMany(r.Context(), req.Symbols)
	h.writeData(w, http.StatusOK, map[string]interface{}{
		"requested":  len(req.Symbols),
		"registered": registered,
	})
}

// HandleDeactivateInstrument handles DELETE /api/instruments/{symbol}
func (h *Handler) HandleDeactivateInstrument(w http.ResponseWriter, r *http.Request, symbol string) {
	if err := h.registration.Deactivate(r.Context(), symbol); err != nil {
		h.fail(w, err, symbol, "Failed to deactivate instrument")
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"symbol": domain.NormalizeSymbol(symbol),
		"active": false,
	})
}

// HandleGetCurrentPrice handles GET /api/prices/current/{symbol}
// The price comes straight from the provider (or its cache); nothing is persisted.
func (h *Handler) HandleGetCurrentPrice(w http.ResponseWriter, r *http.Request, symbol string) {
	sym := domain.NormalizeSymbol(symbol)
	price, err := h.quotes.GetCurrentPrice(r.Context(), sym)
	if err != nil {
		h.log.Debug().Err(err).Str("symbol", sym).Msg("Current price unavailable")
		h.writeError(w, http.StatusNotFound, "Price not found for symbol: "+sym)
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"symbol":     sym,
		"price":      price,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleRefreshPrice handles POST /api/prices/refresh/{symbol}
func (h *Handler) HandleRefreshPrice(w http.ResponseWriter, r *http.Request, symbol string) {
	out, err := h.syncService.RefreshOne(r.Context(), symbol)
	if err != nil {
		h.fail(w, err, symbol, "Failed to refresh price")
		return
	}
	h.writeData(w, http.StatusOK, out)
}

// HandleForceRealRefresh handles POST /api/prices/force-real/{symbol}
func (h *Handler) HandleForceRealRefresh(w http.ResponseWriter, r *http.Request, symbol string) {
	out, err := h.syncService.ForceRealRefresh(r.Context(), symbol)
	if err != nil {
		h.fail(w, err, symbol, "Forced refresh failed")
		return
	}
	h.writeData(w, http.StatusOK, out)
}

// HandleRefreshAll handles POST /api/prices/refresh-all
func (h *Handler) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	report := h.syncService.RefreshAll(r.Context())
	h.writeData(w, http.StatusOK, report)
}

// HandleBatchRefresh handles POST /api/prices/batch with a JSON array of symbols.
// A run that updates nothing is a 400 carrying the report.
func (h *Handler) HandleBatchRefresh(w http.ResponseWriter, r *http.Request) {
	var symbols []string
	if err := decodeBody(w, r, &symbols); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(symbols) == 0 {
		h.writeError(w, http.StatusBadRequest, "No symbols provided for batch update")
		return
	}

	report := h.syncService.BatchRefresh(r.Context(), symbols)
	status := http.StatusOK
	if !report.Success() {
		h.log.Warn().Int("total", report.Total).Msg("Batch update updated nothing")
		status = http.StatusBadRequest
	}
	h.writeData(w, status, report)
}

type backfillRequest struct {
	Symbols []string `json:"symbols"`
	From    string   `json:"from"`
	To      string   `json:"to"`
}

// HandleBackfill handles POST /api/prices/backfill
func (h *Handler) HandleBackfill(w http.ResponseWriter, r *http.Request) {
	var req backfillRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Symbols) == 0 {
		h.writeError(w, http.StatusBadRequest, "No symbols provided for backfill")
		return
	}

	from, err := time.Parse(dateLayout, req.From)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid from date, expected YYYY-MM-DD")
		return
	}
	to, err := time.Parse(dateLayout, req.To)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid to date, expected YYYY-MM-DD")
		return
	}

	report, err := h.syncService.BackfillRange(r.Context(), req.Symbols, from, to)
	if err != nil {
		h.fail(w, err, "", "Backfill failed")
		return
	}

	status := http.StatusOK
	if !report.Success() {
		status = http.StatusBadRequest
	}
	h.writeData(w, status, report)
}

// HandleGetHistory handles GET /api/prices/history/{instrumentID}?from=&to=
// Defaults to the last month.
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request, idParam string) {
	id, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid instrument id")
		return
	}

	to := domain.TruncateToDay(time.Now())
	from := to.AddDate(0, defaultHistoryRange, 0)
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse(dateLayout, v); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid from date, expected YYYY-MM-DD")
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse(dateLayout, v); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid to date, expected YYYY-MM-DD")
			return
		}
	}
	if from.After(to) {
		h.writeError(w, http.StatusBadRequest, "from cannot be later than to")
		return
	}

	if _, err := h.instruments.GetByID(r.Context(), id); err != nil {
		h.fail(w, err, idParam, "Failed to get instrument")
		return
	}

	bars, err := h.history.Range(r.Context(), id, from, to)
	if err != nil {
		h.log.Error().Err(err).Int64("instrument_id", id).Msg("Failed to get price history")
		h.writeError(w, http.StatusInternalServerError, "Failed to get price history")
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"instrument_id": id,
		"from":          from.Format(dateLayout),
		"to":            to.Format(dateLayout),
		"count":         len(bars),
		"prices":        bars,
		"stats":         universe.ComputeRangeStats(bars),
	})
}

// errorResponse maps an error to a status and a fixed client message.
// Error text from the provider or the database never reaches the client.
func errorResponse(err error) (int, string) {
	// ErrNoPrice first: forced refreshes join it with the provider error
	switch {
	case errors.Is(err, domain.ErrNoPrice):
		return http.StatusBadRequest, "No price available"
	case errors.Is(err, domain.ErrInvalidRange):
		return http.StatusBadRequest, "Invalid date range"
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, fmp.ErrNoData):
		return http.StatusNotFound, "Instrument not found"
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "Instrument already exists"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// fail logs err with its detail and writes the mapped client response.
func (h *Handler) fail(w http.ResponseWriter, err error, symbol, msg string) {
	status, message := errorResponse(err)

	event := h.log.Warn()
	if status == http.StatusInternalServerError {
		event = h.log.Error()
	}
	if symbol != "" {
		event = event.Str("symbol", symbol)
	}
	event.Err(err).Int("status", status).Msg(msg)

	h.writeError(w, status, message)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(v)
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
