package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/aristath/risk-engine/internal/events"
	"github.com/aristath/risk-engine/internal/modules/analysis"
	"github.com/aristath/risk-engine/internal/modules/marketdata"
)

// AnalysisRefreshJob reloads price history into the analyzer and logs the
// portfolio report highlights.
type AnalysisRefreshJob struct {
	store    *marketdata.Store
	analyzer *analysis.Analyzer
	bars     int
	events   *events.Manager
	log      zerolog.Logger
}

// NewAnalysisRefreshJob creates an analysis refresh job
func NewAnalysisRefreshJob(store *marketdata.Store, analyzer *analysis.Analyzer, bars int, eventManager *events.Manager, log zerolog.Logger) *AnalysisRefreshJob {
	return &AnalysisRefreshJob{
		store:    store,
		analyzer: analyzer,
		bars:     bars,
		events:   eventManager,
		log:      log.With().Str("job", "analysis_refresh").Logger(),
	}
}

// Name returns the job name
func (j *AnalysisRefreshJob) Name() string {
	return "analysis_refresh"
}

// Run reloads history and recomputes the portfolio summary
func (j *AnalysisRefreshJob) Run() error {
	symbols, err := j.store.GetAllSymbols()
	if err != nil {
		return err
	}

	history, err := j.store.LoadHistory(symbols, j.bars)
	if err != nil {
		return err
	}

	j.analyzer.SetPriceHistory(history)

	summary := j.analyzer.GetAnalysisSummary()
	j.log.Info().
		Int("holdings", len(summary.Holdings)).
		Float64("sharpe", summary.RiskMetrics.SharpeRatio).
		Float64("volatility", summary.RiskMetrics.AnnualizedVolatility).
		Float64("max_drawdown", summary.RiskMetrics.MaxDrawdown).
		Float64("var_95", summary.StressTest.VaR95).
		Msg("Portfolio analysis refreshed")

	j.events.Emit(events.AnalysisRefreshed, "analysis", map[string]interface{}{
		"symbols":  len(symbols),
		"holdings": len(summary.Holdings),
	})

	return nil
}

// DailyLedger is the slice of the risk manager the reset job needs. The
// handler implements it with its own serialization.
type DailyLedger interface {
	ResetDailyPnL()
}

// DailyResetJob zeroes the risk manager's daily P&L ledger at session start.
type DailyResetJob struct {
	ledger DailyLedger
	log    zerolog.Logger
}

// NewDailyResetJob creates a daily reset job
func NewDailyResetJob(ledger DailyLedger, log zerolog.Logger) *DailyResetJob {
	return &DailyResetJob{
		ledger: ledger,
		log:    log.With().Str("job", "daily_reset").Logger(),
	}
}

// Name returns the job name
func (j *DailyResetJob) Name() string {
	return "daily_reset"
}

// Run resets the daily P&L ledger
func (j *DailyResetJob) Run() error {
	j.ledger.ResetDailyPnL()
	j.log.Info().Msg("Daily P&L reset")
	return nil
}
