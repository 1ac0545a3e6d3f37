package analysis

// Suggestion trigger thresholds
const (
	lowSharpeThreshold           = 0.5
	lowDiversificationThreshold  = 1.2
	maxComfortableHighCorrPairs  = 3
	highVolatilityThreshold      = 0.3
	highDrawdownThreshold        = 0.2
	summaryStressTestSimulations = 5000
)

// GetAnalysisSummary aggregates holdings, risk metrics, correlation summary,
// stress-test highlights, and heuristic optimization suggestions into one
// report.
func (a *Analyzer) GetAnalysisSummary() Summary {
	holdings := a.GetPortfolioHoldings()
	metrics := a.CalculateRiskMetrics()
	correlations := a.AnalyzeCorrelations()
	stress := a.MonteCarloStressTest(summaryStressTestSimulations, defaultHorizonDays)

	summary := Summary{
		Holdings:    holdings,
		RiskMetrics: metrics,
		Correlations: CorrelationStats{
			Average:          correlations.Average,
			Max:              correlations.Max,
			Min:              correlations.Min,
			HighCorrelations: correlations.HighCorrelationPairs,
		},
		StressTest:  stress,
		Suggestions: suggestions(metrics, correlations),
	}

	return summary
}

func suggestions(metrics RiskMetrics, correlations CorrelationAnalysis) []string {
	var out []string

	if metrics.SharpeRatio < lowSharpeThreshold {
		out = append(out, "Risk-adjusted returns are weak; consider rebalancing toward assets with better return per unit of risk")
	}
	if metrics.DiversificationRatio < lowDiversificationThreshold {
		out = append(out, "Portfolio shows limited diversification benefit; consider adding uncorrelated assets")
	}
	if len(correlations.HighCorrelationPairs) > maxComfortableHighCorrPairs {
		out = append(out, "Several holdings are highly correlated; concentration risk may be understated")
	}
	if metrics.AnnualizedVolatility > highVolatilityThreshold {
		out = append(out, "Annualized volatility is elevated; consider trimming the most volatile positions")
	}
	if metrics.MaxDrawdown > highDrawdownThreshold {
		out = append(out, "Historical drawdown is deep; tighter stops or smaller position sizes would reduce exposure")
	}

	if len(out) == 0 {
		out = append(out, "Portfolio risk profile looks healthy; no adjustments suggested")
	}

	return out
}
