package analysis

import (
	"math"
	"testing"

	"github.com/aristath/risk-engine/internal/modules/marketdata"
	"github.com/aristath/risk-engine/internal/modules/risk"
)

func assertValidWeights(t *testing.T, result OptimizationResult) {
	t.Helper()

	var sum float64
	for symbol, w := range result.Weights {
		if w < -1e-9 || w > 1+1e-9 {
			t.Errorf("%s: weight %.6f outside [0, 1]", symbol, w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 0.01 {
		t.Errorf("Weights should sum to 1 within 0.01, got %.6f", sum)
	}
}

func TestOptimizePortfolio_Modes(t *testing.T) {
	a := threeSymbolFixture(t)

	target := 0.05
	tests := []struct {
		name    string
		optType OptimizationType
		target  *float64
	}{
		{"min variance", OptimizeMinVariance, nil},
		{"max sharpe", OptimizeMaxSharpe, nil},
		{"target return", OptimizeTargetReturn, &target},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := a.OptimizePortfolio(tt.optType, tt.target)

			if !result.Converged {
				t.Fatalf("Expected convergence for %s", tt.optType)
			}
			if len(result.Weights) != 3 {
				t.Fatalf("Expected 3 weights, got %d", len(result.Weights))
			}
			assertValidWeights(t, result)
			if result.ExpectedVolatility <= 0 {
				t.Errorf("Expected positive volatility, got %.6f", result.ExpectedVolatility)
			}
		})
	}
}

func TestOptimizePortfolio_MinVarianceBeatsEqualWeight(t *testing.T) {
	a := threeSymbolFixture(t)

	equal := 1.0 / 3.0
	_, cov := annualizedMoments(returnsTable(t, a))
	equalVol := portfolioVolatility([]float64{equal, equal, equal}, cov)

	result := a.OptimizePortfolio(OptimizeMinVariance, nil)
	if !result.Converged {
		t.Fatal("Expected convergence")
	}
	if result.ExpectedVolatility > equalVol+1e-6 {
		t.Errorf("Min-variance vol %.6f should not exceed equal-weight vol %.6f",
			result.ExpectedVolatility, equalVol)
	}
}

// returnsTable exposes the analyzer's return table for assertions against
// the raw moments.
func returnsTable(t *testing.T, a *Analyzer) *ReturnsTable {
	t.Helper()

	a.mu.Lock()
	defer a.mu.Unlock()
	table := a.calculateReturns(a.periods)
	if len(table.Symbols) == 0 {
		t.Fatal("No return data available")
	}
	return table
}

func TestOptimizePortfolio_TargetReturnApproachesTarget(t *testing.T) {
	a := threeSymbolFixture(t)

	mu, _ := annualizedMoments(returnsTable(t, a))

	// pick a target strictly inside the attainable range
	lo, hi := mu[0], mu[0]
	for _, m := range mu {
		lo = math.Min(lo, m)
		hi = math.Max(hi, m)
	}
	target := lo + 0.5*(hi-lo)

	result := a.OptimizePortfolio(OptimizeTargetReturn, &target)
	if !result.Converged {
		t.Fatal("Expected convergence")
	}
	if math.Abs(result.ExpectedReturn-target) > 0.02 {
		t.Errorf("Expected return %.4f to approach target %.4f", result.ExpectedReturn, target)
	}
}

func TestOptimizePortfolio_SingleSymbol(t *testing.T) {
	history := marketdata.History{"AAA": seriesBars(syntheticCloses(testPeriods+5, 0))}
	a := testAnalyzer(t, history, []risk.Position{position("AAA", 100, 100)})

	result := a.OptimizePortfolio(OptimizeMinVariance, nil)
	if !result.Converged {
		t.Fatal("Single symbol should trivially converge")
	}
	if w := result.Weights["AAA"]; math.Abs(w-1.0) > 1e-9 {
		t.Errorf("Expected weight 1.0, got %.6f", w)
	}
}

func TestOptimizePortfolio_NoData(t *testing.T) {
	a := testAnalyzer(t, marketdata.History{}, nil)

	result := a.OptimizePortfolio(OptimizeMaxSharpe, nil)
	if result.Converged {
		t.Error("Expected non-convergence with no data")
	}
	if len(result.Weights) != 0 {
		t.Errorf("Expected empty weights, got %v", result.Weights)
	}
}

func TestGenerateEfficientFrontier(t *testing.T) {
	a := threeSymbolFixture(t)

	points := a.GenerateEfficientFrontier(10)
	if len(points) == 0 {
		t.Fatal("Expected at least one frontier point")
	}
	for i, p := range points {
		if p.Volatility <= 0 {
			t.Errorf("Point %d: non-positive volatility %.6f", i, p.Volatility)
		}
		if math.IsNaN(p.Return) || math.IsNaN(p.Sharpe) {
			t.Errorf("Point %d: NaN fields %+v", i, p)
		}
	}
	// achieved returns track the swept targets up to penalty slack
	for i := 1; i < len(points); i++ {
		if points[i].Return < points[i-1].Return-0.02 {
			t.Errorf("Frontier returns should trend upward, point %d dropped from %.4f to %.4f",
				i, points[i-1].Return, points[i].Return)
		}
	}
}

func TestGenerateEfficientFrontier_NoData(t *testing.T) {
	a := testAnalyzer(t, marketdata.History{}, nil)

	if points := a.GenerateEfficientFrontier(10); len(points) != 0 {
		t.Errorf("Expected no frontier points, got %d", len(points))
	}
}
