package analysis

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/risk-engine/internal/modules/marketdata"
	"github.com/aristath/risk-engine/internal/modules/risk"
	"github.com/aristath/risk-engine/pkg/formulas"
)

// HoldingsSource supplies the open position set. The implementation must
// serialize its snapshot with position mutations; the risk HTTP handler does
// so through its own lock.
type HoldingsSource interface {
	OpenPositions() []risk.Position
}

// Analyzer is the read-only analytics layer over a holdings snapshot and
// historical price series. It never mutates positions; price history and the
// derived return cache are owned state, replaced wholesale under the lock so
// readers never observe a half-updated cache.
type Analyzer struct {
	mu        sync.Mutex
	source    HoldingsSource
	positions []risk.Position // used when source is nil
	history   marketdata.History
	cache     *returnsCache
	periods   int
	seed      uint64
	nowFn     func() time.Time
	log       zerolog.Logger
}

// Config holds construction options for an Analyzer
type Config struct {
	Source  HoldingsSource
	Periods int              // return lookback, defaults to DefaultReturnPeriods
	Seed    uint64           // Monte Carlo seed, 0 seeds from the clock
	Now     func() time.Time // injectable clock for cache expiry, defaults to time.Now
	Log     zerolog.Logger
}

// New creates a portfolio analyzer
func New(cfg Config) *Analyzer {
	periods := cfg.Periods
	if periods <= 0 {
		periods = DefaultReturnPeriods
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return &Analyzer{
		source:  cfg.Source,
		history: make(marketdata.History),
		periods: periods,
		seed:    seed,
		nowFn:   nowFn,
		log:     cfg.Log.With().Str("component", "analysis").Logger(),
	}
}

// SetPriceHistory replaces the price-history map and unconditionally
// invalidates the return cache.
func (a *Analyzer) SetPriceHistory(history marketdata.History) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.history = history
	a.cache = nil
}

// SetPositions supplies a holdings snapshot directly, overriding any
// configured source.
func (a *Analyzer) SetPositions(positions []risk.Position) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.positions = positions
	a.source = nil
}

// holdingsSnapshot reads the current position set. Callers hold the lock.
func (a *Analyzer) holdingsSnapshot() []risk.Position {
	if a.source != nil {
		return a.source.OpenPositions()
	}
	return a.positions
}

// GetPortfolioHoldings derives per-symbol market values and weights from the
// positions that carry a known current price.
func (a *Analyzer) GetPortfolioHoldings() []Holding {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.portfolioHoldings()
}

func (a *Analyzer) portfolioHoldings() []Holding {
	positions := a.holdingsSnapshot()

	var totalValue float64
	for _, pos := range positions {
		if pos.CurrentPrice != nil {
			totalValue += *pos.CurrentPrice * float64(pos.Quantity)
		}
	}

	holdings := make([]Holding, 0, len(positions))
	for _, pos := range positions {
		if pos.CurrentPrice == nil {
			continue
		}

		value := *pos.CurrentPrice * float64(pos.Quantity)
		weight := 0.0
		if totalValue > 0 {
			weight = value / totalValue * 100.0
		}

		holdings = append(holdings, Holding{
			Symbol:       pos.Symbol,
			Quantity:     pos.Quantity,
			CurrentPrice: *pos.CurrentPrice,
			MarketValue:  value,
			Weight:       weight,
		})
	}

	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Symbol < holdings[j].Symbol })
	return holdings
}

// portfolioSeries builds the weighted daily portfolio return series from the
// holdings whose symbols appear in the return table, with weights
// renormalized over those symbols. Returns the series, the renormalized
// weight per symbol, and the total portfolio value. Callers hold the lock.
func (a *Analyzer) portfolioSeries(table *ReturnsTable) ([]float64, map[string]float64, float64) {
	holdings := a.portfolioHoldings()
	if len(holdings) == 0 || table.Rows() == 0 {
		return nil, nil, 0
	}

	var portfolioValue, coveredValue float64
	covered := make(map[string]float64)
	for _, h := range holdings {
		portfolioValue += h.MarketValue
		if _, ok := table.Series[h.Symbol]; ok {
			covered[h.Symbol] = h.MarketValue
			coveredValue += h.MarketValue
		}
	}
	if coveredValue == 0 {
		return nil, nil, portfolioValue
	}

	weights := make(map[string]float64, len(covered))
	for symbol, value := range covered {
		weights[symbol] = value / coveredValue
	}

	series := make([]float64, table.Rows())
	for symbol, w := range weights {
		for i, r := range table.Series[symbol] {
			series[i] += w * r
		}
	}

	return series, weights, portfolioValue
}

// CalculatePortfolioVaR computes historical, conditional, and parametric
// Value-at-Risk for the current holdings. Empty holdings or return data
// yields an all-zero result rather than an error.
func (a *Analyzer) CalculatePortfolioVaR(confidence float64, holdingPeriodDays int) VaRResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := VaRResult{Confidence: confidence, HoldingPeriodDays: holdingPeriodDays}

	table := a.calculateReturns(a.periods)
	returns, _, portfolioValue := a.portfolioSeries(table)
	result.PortfolioValue = portfolioValue
	if len(returns) == 0 {
		return result
	}

	horizon := math.Sqrt(float64(holdingPeriodDays))
	tailPct := (1 - confidence) * 100.0

	threshold := formulas.Percentile(returns, tailPct)
	result.HistoricalVaR = math.Abs(threshold) * portfolioValue * horizon

	// CVaR: mean of the tail at or below the VaR percentile
	var tail []float64
	for _, r := range returns {
		if r <= threshold {
			tail = append(tail, r)
		}
	}
	if len(tail) > 0 {
		result.CVaR = math.Abs(formulas.Mean(tail)) * portfolioValue * horizon
	} else {
		result.CVaR = result.HistoricalVaR
	}

	// Parametric VaR, reference only
	annualVol := formulas.AnnualizedVolatility(returns)
	result.Volatility = annualVol

	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(1 - confidence)
	result.ParametricVaR = math.Abs(z) * annualVol * portfolioValue *
		math.Sqrt(float64(holdingPeriodDays)/formulas.TradingDaysPerYear)

	return result
}

// AnalyzeCorrelations computes the pairwise correlation matrix of the return
// table. Summary statistics cover the strict upper triangle; high-correlation
// pairs are those with |r| >= 0.7, sorted by descending |r| and capped at 10.
func (a *Analyzer) AnalyzeCorrelations() CorrelationAnalysis {
	a.mu.Lock()
	defer a.mu.Unlock()

	table := a.calculateReturns(a.periods)

	result := CorrelationAnalysis{
		Symbols:              table.Symbols,
		HighCorrelationPairs: []CorrelationPair{},
	}
	if len(table.Symbols) < 2 || table.Rows() == 0 {
		result.Symbols = []string{}
		return result
	}

	n := len(table.Symbols)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1.0
	}

	var sum float64
	count := 0
	maxCorr := math.Inf(-1)
	minCorr := math.Inf(1)

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			corr := formulas.Correlation(table.Series[table.Symbols[i]], table.Series[table.Symbols[j]])
			matrix[i][j] = corr
			matrix[j][i] = corr

			sum += corr
			count++
			maxCorr = math.Max(maxCorr, corr)
			minCorr = math.Min(minCorr, corr)

			if math.Abs(corr) >= highCorrelationThreshold {
				result.HighCorrelationPairs = append(result.HighCorrelationPairs, CorrelationPair{
					SymbolA:     table.Symbols[i],
					SymbolB:     table.Symbols[j],
					Correlation: corr,
				})
			}
		}
	}

	result.Matrix = matrix
	result.Average = sum / float64(count)
	result.Max = maxCorr
	result.Min = minCorr

	sort.Slice(result.HighCorrelationPairs, func(i, j int) bool {
		return math.Abs(result.HighCorrelationPairs[i].Correlation) > math.Abs(result.HighCorrelationPairs[j].Correlation)
	})
	if len(result.HighCorrelationPairs) > maxHighCorrelationPairs {
		result.HighCorrelationPairs = result.HighCorrelationPairs[:maxHighCorrelationPairs]
	}

	return result
}

const (
	highCorrelationThreshold = 0.7
	maxHighCorrelationPairs  = 10
)

// CalculateRiskMetrics aggregates annualized volatility, return, Sharpe,
// maximum drawdown, and the diversification ratio of the current holdings.
func (a *Analyzer) CalculateRiskMetrics() RiskMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()

	var metrics RiskMetrics

	table := a.calculateReturns(a.periods)
	returns, weights, _ := a.portfolioSeries(table)
	if len(returns) == 0 {
		return metrics
	}

	metrics.AnnualizedVolatility = formulas.AnnualizedVolatility(returns)
	metrics.AnnualizedReturn = formulas.AnnualizedReturn(returns)

	if metrics.AnnualizedVolatility > 0 {
		// risk-free rate assumed zero
		metrics.SharpeRatio = metrics.AnnualizedReturn / metrics.AnnualizedVolatility
	}

	// max peak-to-trough decline of the cumulative-return curve
	curve := make([]float64, 0, len(returns)+1)
	cum := 1.0
	curve = append(curve, cum)
	for _, r := range returns {
		cum *= 1 + r
		curve = append(curve, cum)
	}
	if dd := formulas.CalculateMaxDrawdown(curve); dd != nil {
		metrics.MaxDrawdown = *dd
	}

	// weighted average of individual volatilities over realized portfolio
	// volatility; >= 1 when diversification reduces risk
	if metrics.AnnualizedVolatility > 0 {
		var weightedVol float64
		for symbol, w := range weights {
			weightedVol += w * formulas.AnnualizedVolatility(table.Series[symbol])
		}
		metrics.DiversificationRatio = weightedVol / metrics.AnnualizedVolatility
	} else {
		metrics.DiversificationRatio = 1.0
	}

	return metrics
}
