package analysis

// Holding is a read-only view of one position's share of the portfolio
type Holding struct {
	Symbol       string  `json:"symbol"`
	Quantity     int     `json:"quantity"`
	CurrentPrice float64 `json:"current_price"`
	MarketValue  float64 `json:"market_value"`
	Weight       float64 `json:"weight"` // percent of total portfolio value
}

// VaRResult bundles the Value-at-Risk figures for one confidence/horizon
type VaRResult struct {
	Confidence        float64 `json:"confidence"`
	HoldingPeriodDays int     `json:"holding_period_days"`
	HistoricalVaR     float64 `json:"historical_var"`
	CVaR              float64 `json:"cvar"`
	ParametricVaR     float64 `json:"parametric_var"`
	PortfolioValue    float64 `json:"portfolio_value"`
	Volatility        float64 `json:"volatility"` // annualized
}

// CorrelationPair is one unordered symbol pair with its correlation
type CorrelationPair struct {
	SymbolA     string  `json:"symbol_a"`
	SymbolB     string  `json:"symbol_b"`
	Correlation float64 `json:"correlation"`
}

// CorrelationAnalysis holds the pairwise correlation matrix and its summary
// statistics, computed over the strict upper triangle
type CorrelationAnalysis struct {
	Symbols              []string          `json:"symbols"`
	Matrix               [][]float64       `json:"matrix"`
	Average              float64           `json:"average"`
	Max                  float64           `json:"max"`
	Min                  float64           `json:"min"`
	HighCorrelationPairs []CorrelationPair `json:"high_correlation_pairs"`
}

// RiskMetrics is an aggregate risk snapshot of the current holdings
type RiskMetrics struct {
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	AnnualizedReturn     float64 `json:"annualized_return"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	MaxDrawdown          float64 `json:"max_drawdown"` // positive fraction
	DiversificationRatio float64 `json:"diversification_ratio"`
}

// OptimizationType selects the mean-variance objective
type OptimizationType string

const (
	OptimizeMinVariance  OptimizationType = "min_variance"
	OptimizeMaxSharpe    OptimizationType = "max_sharpe"
	OptimizeTargetReturn OptimizationType = "target_return"
)

// OptimizationResult reports optimal weights and their expected annualized
// profile. Weights are empty when the solver did not converge.
type OptimizationResult struct {
	Type               OptimizationType   `json:"type"`
	Converged          bool               `json:"converged"`
	Weights            map[string]float64 `json:"weights"`
	ExpectedReturn     float64            `json:"expected_return"`
	ExpectedVolatility float64            `json:"expected_volatility"`
	SharpeRatio        float64            `json:"sharpe_ratio"`
}

// StressTestResult summarizes the Monte Carlo loss distribution
type StressTestResult struct {
	Simulations       int     `json:"simulations"`
	HorizonDays       int     `json:"horizon_days"`
	VaR95             float64 `json:"var_95"`
	VaR99             float64 `json:"var_99"`
	ExpectedLoss      float64 `json:"expected_loss"`
	WorstCase         float64 `json:"worst_case"`
	ProbabilityOfLoss float64 `json:"probability_of_loss"` // percent
}

// FrontierPoint is one converged efficient-frontier portfolio
type FrontierPoint struct {
	Return     float64 `json:"return"`
	Volatility float64 `json:"volatility"`
	Sharpe     float64 `json:"sharpe"`
}

// Summary is the composite portfolio analysis report
type Summary struct {
	Holdings     []Holding        `json:"holdings"`
	RiskMetrics  RiskMetrics      `json:"risk_metrics"`
	Correlations CorrelationStats `json:"correlations"`
	StressTest   StressTestResult `json:"stress_test"`
	Suggestions  []string         `json:"suggestions"`
}

// CorrelationStats is the correlation slice of a Summary, without the full
// matrix
type CorrelationStats struct {
	Average          float64           `json:"average"`
	Max              float64           `json:"max"`
	Min              float64           `json:"min"`
	HighCorrelations []CorrelationPair `json:"high_correlations"`
}
