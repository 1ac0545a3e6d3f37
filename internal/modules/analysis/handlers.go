package analysis

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/risk-engine/internal/modules/marketdata"
)

// HistoryLoader reloads price history for the analyzer
type HistoryLoader interface {
	GetAllSymbols() ([]string, error)
	LoadHistory(symbols []string, limit int) (marketdata.History, error)
}

// Handler handles portfolio analysis HTTP requests
type Handler struct {
	analyzer *Analyzer
	loader   HistoryLoader
	barsN    int
	log      zerolog.Logger
}

// NewHandler creates a new analysis handler
func NewHandler(analyzer *Analyzer, loader HistoryLoader, historyBars int, log zerolog.Logger) *Handler {
	return &Handler{
		analyzer: analyzer,
		loader:   loader,
		barsN:    historyBars,
		log:      log.With().Str("handler", "analysis").Logger(),
	}
}

// Routes registers the analysis endpoints
func (h *Handler) Routes(r chi.Router) {
	r.Get("/holdings", h.handleHoldings)
	r.Get("/var", h.handleVaR)
	r.Get("/correlations", h.handleCorrelations)
	r.Get("/metrics", h.handleMetrics)
	r.Post("/optimize", h.handleOptimize)
	r.Get("/stress-test", h.handleStressTest)
	r.Get("/frontier", h.handleFrontier)
	r.Get("/summary", h.handleSummary)
	r.Post("/refresh", h.handleRefresh)
}

func (h *Handler) handleHoldings(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.analyzer.GetPortfolioHoldings())
}

func (h *Handler) handleVaR(w http.ResponseWriter, r *http.Request) {
	confidence := queryFloat(r, "confidence", 0.95)
	holdingDays := queryInt(r, "holding_days", 1)

	if confidence <= 0 || confidence >= 1 {
		h.writeError(w, http.StatusBadRequest, "confidence must be in (0, 1)")
		return
	}

	h.writeJSON(w, http.StatusOK, h.analyzer.CalculatePortfolioVaR(confidence, holdingDays))
}

func (h *Handler) handleCorrelations(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.analyzer.AnalyzeCorrelations())
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.analyzer.CalculateRiskMetrics())
}

type optimizeRequest struct {
	Type         OptimizationType `json:"type"`
	TargetReturn *float64         `json:"target_return,omitempty"`
}

func (h *Handler) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Type {
	case OptimizeMinVariance, OptimizeMaxSharpe, OptimizeTargetReturn:
	default:
		h.writeError(w, http.StatusBadRequest, "type must be min_variance, max_sharpe, or target_return")
		return
	}

	h.writeJSON(w, http.StatusOK, h.analyzer.OptimizePortfolio(req.Type, req.TargetReturn))
}

func (h *Handler) handleStressTest(w http.ResponseWriter, r *http.Request) {
	simulations := queryInt(r, "simulations", defaultSimulations)
	horizonDays := queryInt(r, "horizon_days", defaultHorizonDays)

	h.writeJSON(w, http.StatusOK, h.analyzer.MonteCarloStressTest(simulations, horizonDays))
}

func (h *Handler) handleFrontier(w http.ResponseWriter, r *http.Request) {
	points := queryInt(r, "points", 50)
	h.writeJSON(w, http.StatusOK, h.analyzer.GenerateEfficientFrontier(points))
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.analyzer.GetAnalysisSummary())
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.loader.GetAllSymbols()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	history, err := h.loader.LoadHistory(symbols, h.barsN)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.analyzer.SetPriceHistory(history)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"symbols": len(history)})
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

func queryFloat(r *http.Request, key string, def float64) float64 {
	if raw := r.URL.Query().Get(key); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return def
}

func queryInt(r *http.Request, key string, def int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return def
}
