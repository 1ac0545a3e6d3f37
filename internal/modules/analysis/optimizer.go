package analysis

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/risk-engine/pkg/formulas"
)

const (
	// optimizerIterationCap bounds worst-case solver latency; hitting it is
	// reported as non-convergence
	optimizerIterationCap = 2000

	// targetReturnPenalty weights the quadratic penalty enforcing the
	// return equality in target-return mode
	targetReturnPenalty = 1000.0
)

// OptimizePortfolio solves a mean-variance allocation over the symbols with
// return data. Weights are parameterized through a softmax transform, which
// enforces the sum-to-one and [0,1] bounds by construction. Non-convergence
// yields an empty-weights result, never an error.
func (a *Analyzer) OptimizePortfolio(optType OptimizationType, targetReturn *float64) OptimizationResult {
	a.mu.Lock()
	table := a.calculateReturns(a.periods)
	a.mu.Unlock()

	result := OptimizationResult{Type: optType, Weights: map[string]float64{}}

	n := len(table.Symbols)
	if n == 0 || table.Rows() < 2 {
		return result
	}

	mu, cov := annualizedMoments(table)

	if n == 1 {
		// single asset: the only feasible allocation
		result.Converged = true
		result.Weights[table.Symbols[0]] = 1.0
		result.ExpectedReturn = mu[0]
		result.ExpectedVolatility = math.Sqrt(math.Max(0, cov.At(0, 0)))
		if result.ExpectedVolatility > 0 {
			result.SharpeRatio = result.ExpectedReturn / result.ExpectedVolatility
		}
		return result
	}

	target := formulas.Mean(mu)
	if targetReturn != nil {
		target = *targetReturn
	}

	objective := func(x []float64) float64 {
		w := softmax(x)
		vol := portfolioVolatility(w, cov)

		switch optType {
		case OptimizeMaxSharpe:
			if vol < 1e-12 {
				return math.MaxFloat64
			}
			return -dot(mu, w) / vol
		case OptimizeTargetReturn:
			diff := dot(mu, w) - target
			return vol + targetReturnPenalty*diff*diff
		default:
			return vol
		}
	}

	problem := optimize.Problem{Func: objective}
	initial := make([]float64, n) // softmax(0, ..., 0) = equal weighting
	settings := &optimize.Settings{
		MajorIterations: optimizerIterationCap,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Iterations: 200,
		},
	}

	res, err := optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
	if err != nil || res == nil || res.Status == optimize.Failure || res.Status == optimize.IterationLimit {
		a.log.Warn().
			Str("type", string(optType)).
			Err(err).
			Msg("Optimization did not converge")
		return result
	}

	weights := softmax(res.X)
	result.Converged = true
	for i, symbol := range table.Symbols {
		result.Weights[symbol] = weights[i]
	}
	result.ExpectedReturn = dot(mu, weights)
	result.ExpectedVolatility = portfolioVolatility(weights, cov)
	if result.ExpectedVolatility > 0 {
		result.SharpeRatio = result.ExpectedReturn / result.ExpectedVolatility
	}

	return result
}

// GenerateEfficientFrontier sweeps target returns between the minimum and
// maximum per-symbol mean annualized returns, keeping only the points where
// the solver converged.
func (a *Analyzer) GenerateEfficientFrontier(numPoints int) []FrontierPoint {
	if numPoints <= 0 {
		numPoints = 50
	}

	a.mu.Lock()
	table := a.calculateReturns(a.periods)
	a.mu.Unlock()

	if len(table.Symbols) == 0 || table.Rows() < 2 {
		return []FrontierPoint{}
	}

	minReturn := math.Inf(1)
	maxReturn := math.Inf(-1)
	for _, symbol := range table.Symbols {
		r := formulas.AnnualizedReturn(table.Series[symbol])
		minReturn = math.Min(minReturn, r)
		maxReturn = math.Max(maxReturn, r)
	}

	points := make([]FrontierPoint, 0, numPoints)
	for i := 0; i < numPoints; i++ {
		target := minReturn
		if numPoints > 1 {
			target = minReturn + (maxReturn-minReturn)*float64(i)/float64(numPoints-1)
		}

		res := a.OptimizePortfolio(OptimizeTargetReturn, &target)
		if !res.Converged {
			continue
		}

		points = append(points, FrontierPoint{
			Return:     res.ExpectedReturn,
			Volatility: res.ExpectedVolatility,
			Sharpe:     res.SharpeRatio,
		})
	}

	return points
}

// annualizedMoments derives the annualized mean vector and covariance matrix
// from a return table.
func annualizedMoments(table *ReturnsTable) ([]float64, *mat.SymDense) {
	n := len(table.Symbols)
	rows := table.Rows()

	mu := make([]float64, n)
	data := make([]float64, rows*n)
	for j, symbol := range table.Symbols {
		series := table.Series[symbol]
		mu[j] = formulas.Mean(series) * formulas.TradingDaysPerYear
		for i, r := range series {
			data[i*n+j] = r
		}
	}

	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, mat.NewDense(rows, n, data), nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, cov.At(i, j)*formulas.TradingDaysPerYear)
		}
	}

	return mu, cov
}

// portfolioVolatility computes sqrt(wᵗ·Cov·w)
func portfolioVolatility(w []float64, cov *mat.SymDense) float64 {
	v := mat.NewVecDense(len(w), w)
	return math.Sqrt(math.Max(0, mat.Inner(v, cov, v)))
}

// softmax maps unconstrained solver variables onto the weight simplex
func softmax(x []float64) []float64 {
	maxX := x[0]
	for _, v := range x[1:] {
		if v > maxX {
			maxX = v
		}
	}

	w := make([]float64, len(x))
	var sum float64
	for i, v := range x {
		w[i] = math.Exp(v - maxX)
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
