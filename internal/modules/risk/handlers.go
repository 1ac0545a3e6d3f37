package risk

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/risk-engine/internal/events"
	"github.com/aristath/risk-engine/internal/modules/marketdata"
)

// BarLoader supplies price history for stop placement when opening positions
type BarLoader interface {
	GetDailyPrices(symbol string, limit int) ([]marketdata.Bar, error)
}

// Handler handles risk management HTTP requests. The manager assumes one
// logical owner, so the handler serializes all access to it.
type Handler struct {
	mu      sync.Mutex
	manager *Manager
	bars    BarLoader
	barsN   int
	events  *events.Manager
	log     zerolog.Logger
}

// NewHandler creates a new risk handler
func NewHandler(manager *Manager, bars BarLoader, historyBars int, eventManager *events.Manager, log zerolog.Logger) *Handler {
	return &Handler{
		manager: manager,
		bars:    bars,
		barsN:   historyBars,
		events:  eventManager,
		log:     log.With().Str("handler", "risk").Logger(),
	}
}

// Routes registers the risk endpoints
func (h *Handler) Routes(r chi.Router) {
	r.Post("/positions", h.handleOpenPosition)
	r.Delete("/positions/{symbol}", h.handleClosePosition)
	r.Post("/positions/update", h.handleUpdatePositions)
	r.Get("/summary", h.handleSummary)
	r.Get("/history", h.handleTradeHistory)
}

type openPositionRequest struct {
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	EntryPrice float64 `json:"entry_price"`
	Quantity   int     `json:"quantity,omitempty"` // 0 auto-sizes
}

func (h *Handler) handleOpenPosition(w http.ResponseWriter, r *http.Request) {
	var req openPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Symbol == "" || req.EntryPrice <= 0 {
		h.writeError(w, http.StatusBadRequest, "symbol and entry_price are required")
		return
	}
	if req.Side != SideLong && req.Side != SideShort {
		h.writeError(w, http.StatusBadRequest, "side must be LONG or SHORT")
		return
	}

	bars, err := h.bars.GetDailyPrices(req.Symbol, h.barsN)
	if err != nil {
		h.log.Warn().Err(err).Str("symbol", req.Symbol).Msg("Failed to load bars, stop falls back to fixed percentage")
		bars = nil
	}

	h.mu.Lock()
	opened := h.manager.OpenPosition(req.Symbol, req.Side, req.EntryPrice, bars, req.Quantity)
	h.mu.Unlock()

	if !opened {
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"opened": false})
		return
	}

	h.events.Emit(events.PositionOpened, "risk", map[string]interface{}{
		"symbol": req.Symbol,
		"side":   string(req.Side),
	})
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{"opened": true})
}

type closePositionRequest struct {
	ExitPrice float64 `json:"exit_price"`
	Reason    string  `json:"reason,omitempty"`
}

func (h *Handler) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	var req closePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ExitPrice <= 0 {
		h.writeError(w, http.StatusBadRequest, "exit_price must be positive")
		return
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}

	h.mu.Lock()
	closed := h.manager.ClosePosition(symbol, req.ExitPrice, req.Reason)
	h.mu.Unlock()

	if !closed {
		h.writeError(w, http.StatusNotFound, "no open position for symbol")
		return
	}

	h.events.Emit(events.PositionClosed, "risk", map[string]interface{}{
		"symbol": symbol,
		"reason": req.Reason,
	})
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"closed": true})
}

type updatePositionsRequest struct {
	Prices map[string]float64 `json:"prices"`
}

func (h *Handler) handleUpdatePositions(w http.ResponseWriter, r *http.Request) {
	var req updatePositionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.mu.Lock()
	h.manager.UpdatePositions(req.Prices)
	summary := h.manager.GetPortfolioSummary()
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	summary := h.manager.GetPortfolioSummary()
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, summary)
}

// OpenPositions returns a snapshot of the live position set through the
// handler's lock. The analytics layer reads holdings through this method so
// its snapshots stay serialized with position mutations.
func (h *Handler) OpenPositions() []Position {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.manager.OpenPositions()
}

// ResetDailyPnL zeroes the daily ledger through the handler's lock, for the
// scheduler's session reset job.
func (h *Handler) ResetDailyPnL() {
	h.mu.Lock()
	h.manager.ResetDailyPnL()
	h.mu.Unlock()

	h.events.Emit(events.DailyPnLReset, "risk", nil)
}

func (h *Handler) handleTradeHistory(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	history := h.manager.TradeHistory()
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, history)
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
