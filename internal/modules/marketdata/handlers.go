package marketdata

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/risk-engine/internal/events"
)

// PriceSource fetches daily bars from an external provider
type PriceSource interface {
	GetDailyBars(ctx context.Context, symbol, rng string) ([]Bar, error)
}

// Handler handles price-history HTTP requests
type Handler struct {
	store  *Store
	source PriceSource
	events *events.Manager
	log    zerolog.Logger
}

// NewHandler creates a new marketdata handler. The price source may be nil,
// which disables the sync endpoint.
func NewHandler(store *Store, source PriceSource, eventManager *events.Manager, log zerolog.Logger) *Handler {
	return &Handler{
		store:  store,
		source: source,
		events: eventManager,
		log:    log.With().Str("handler", "marketdata").Logger(),
	}
}

// Routes registers the marketdata endpoints
func (h *Handler) Routes(r chi.Router) {
	r.Get("/symbols", h.handleSymbols)
	r.Get("/prices/{symbol}", h.handleGetPrices)
	r.Post("/prices/{symbol}", h.handleSavePrices)
	r.Post("/prices/{symbol}/sync", h.handleSyncPrices)
}

func (h *Handler) handleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.store.GetAllSymbols()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, symbols)
}

func (h *Handler) handleGetPrices(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	limit := 300
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	bars, err := h.store.GetDailyPrices(symbol, limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, bars)
}

func (h *Handler) handleSavePrices(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	var bars []Bar
	if err := json.NewDecoder(r.Body).Decode(&bars); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(bars) == 0 {
		h.writeError(w, http.StatusBadRequest, "no bars supplied")
		return
	}

	if err := h.store.SaveDailyPrices(symbol, bars); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"saved": len(bars)})
}

// handleSyncPrices pulls bars from the external price source and stores them
func (h *Handler) handleSyncPrices(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		h.writeError(w, http.StatusServiceUnavailable, "no price source configured")
		return
	}

	symbol := chi.URLParam(r, "symbol")
	rng := r.URL.Query().Get("range")

	bars, err := h.source.GetDailyBars(r.Context(), symbol, rng)
	if err != nil {
		h.events.EmitError("marketdata", err, map[string]interface{}{"symbol": symbol})
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if len(bars) == 0 {
		h.writeError(w, http.StatusNotFound, "no bars returned for symbol")
		return
	}

	if err := h.store.SaveDailyPrices(symbol, bars); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.events.Emit(events.PricesSynced, "marketdata", map[string]interface{}{
		"symbol": symbol,
		"bars":   len(bars),
	})
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"symbol": symbol, "synced": len(bars)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
