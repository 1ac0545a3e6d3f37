package analysis

import (
	"strings"
	"testing"

	"github.com/aristath/risk-engine/internal/modules/marketdata"
)

func TestSuggestions(t *testing.T) {
	healthy := RiskMetrics{
		AnnualizedVolatility: 0.15,
		AnnualizedReturn:     0.12,
		SharpeRatio:          0.8,
		MaxDrawdown:          0.08,
		DiversificationRatio: 1.5,
	}

	tests := []struct {
		name         string
		metrics      RiskMetrics
		correlations CorrelationAnalysis
		wantFragment string
	}{
		{
			name:         "healthy portfolio",
			metrics:      healthy,
			wantFragment: "looks healthy",
		},
		{
			name: "low sharpe",
			metrics: func() RiskMetrics {
				m := healthy
				m.SharpeRatio = 0.2
				return m
			}(),
			wantFragment: "Risk-adjusted returns are weak",
		},
		{
			name: "low diversification",
			metrics: func() RiskMetrics {
				m := healthy
				m.DiversificationRatio = 1.0
				return m
			}(),
			wantFragment: "limited diversification",
		},
		{
			name:    "many correlated pairs",
			metrics: healthy,
			correlations: CorrelationAnalysis{
				HighCorrelationPairs: make([]CorrelationPair, maxComfortableHighCorrPairs+1),
			},
			wantFragment: "highly correlated",
		},
		{
			name: "high volatility",
			metrics: func() RiskMetrics {
				m := healthy
				m.AnnualizedVolatility = 0.45
				return m
			}(),
			wantFragment: "volatility is elevated",
		},
		{
			name: "deep drawdown",
			metrics: func() RiskMetrics {
				m := healthy
				m.MaxDrawdown = 0.35
				return m
			}(),
			wantFragment: "drawdown is deep",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := suggestions(tt.metrics, tt.correlations)
			if len(out) == 0 {
				t.Fatal("Expected at least one suggestion")
			}

			found := false
			for _, s := range out {
				if strings.Contains(s, tt.wantFragment) {
					found = true
				}
			}
			if !found {
				t.Errorf("Expected a suggestion containing %q, got %v", tt.wantFragment, out)
			}
		})
	}
}

func TestGetAnalysisSummary(t *testing.T) {
	a := threeSymbolFixture(t)

	summary := a.GetAnalysisSummary()

	if len(summary.Holdings) != 3 {
		t.Errorf("Expected 3 holdings, got %d", len(summary.Holdings))
	}
	if summary.RiskMetrics.AnnualizedVolatility <= 0 {
		t.Error("Expected populated risk metrics")
	}
	if summary.StressTest.Simulations != summaryStressTestSimulations {
		t.Errorf("Expected %d simulations, got %d", summaryStressTestSimulations, summary.StressTest.Simulations)
	}
	if len(summary.Suggestions) == 0 {
		t.Error("Expected at least one suggestion")
	}
}

func TestGetAnalysisSummary_Empty(t *testing.T) {
	a := testAnalyzer(t, marketdata.History{}, nil)

	summary := a.GetAnalysisSummary()

	if len(summary.Holdings) != 0 {
		t.Errorf("Expected no holdings, got %d", len(summary.Holdings))
	}
	if summary.RiskMetrics != (RiskMetrics{}) {
		t.Errorf("Expected zero metrics, got %+v", summary.RiskMetrics)
	}
	if len(summary.Suggestions) == 0 {
		t.Error("Expected fallback suggestions for an empty portfolio")
	}
}
