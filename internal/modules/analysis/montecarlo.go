package analysis

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/risk-engine/pkg/formulas"
)

const (
	defaultSimulations = 10000
	maxSimulations     = 100000
	defaultHorizonDays = 252
)

// MonteCarloStressTest simulates correlated daily return paths from a
// multivariate normal fitted to the current holdings' return series, compounds
// each path over the horizon, and summarizes the loss distribution. Degenerate
// inputs (no holdings, no return data) yield an all-zero result.
func (a *Analyzer) MonteCarloStressTest(numSimulations, horizonDays int) StressTestResult {
	if numSimulations <= 0 {
		numSimulations = defaultSimulations
	}
	if numSimulations > maxSimulations {
		numSimulations = maxSimulations
	}
	if horizonDays <= 0 {
		horizonDays = defaultHorizonDays
	}

	result := StressTestResult{Simulations: numSimulations, HorizonDays: horizonDays}

	a.mu.Lock()
	table := a.calculateReturns(a.periods)
	_, weights, portfolioValue := a.portfolioSeries(table)
	seed := a.seed
	a.mu.Unlock()

	if len(weights) == 0 || table.Rows() < 2 || portfolioValue == 0 {
		return result
	}

	symbols := make([]string, 0, len(weights))
	for _, symbol := range table.Symbols {
		if _, ok := weights[symbol]; ok {
			symbols = append(symbols, symbol)
		}
	}

	n := len(symbols)
	mu := make([]float64, n)
	w := make([]float64, n)
	data := make([]float64, table.Rows()*n)
	for j, symbol := range symbols {
		series := table.Series[symbol]
		mu[j] = formulas.Mean(series)
		w[j] = weights[symbol]
		for i, r := range series {
			data[i*n+j] = r
		}
	}

	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, mat.NewDense(table.Rows(), n, data), nil)

	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	sample := newSampler(mu, cov, src, a)

	losses := make([]float64, numSimulations)
	lossCount := 0

	draw := make([]float64, n)
	for sim := 0; sim < numSimulations; sim++ {
		cumulative := 1.0
		for day := 0; day < horizonDays; day++ {
			sample(draw)

			var dayReturn float64
			for i := range draw {
				dayReturn += w[i] * draw[i]
			}
			cumulative *= 1 + dayReturn
		}

		cumReturn := cumulative - 1
		losses[sim] = -cumReturn * portfolioValue
		if cumReturn < 0 {
			lossCount++
		}
	}

	result.VaR95 = math.Max(0, formulas.Percentile(losses, 95))
	result.VaR99 = math.Max(0, formulas.Percentile(losses, 99))

	var positiveSum float64
	positiveCount := 0
	worst := losses[0]
	for _, loss := range losses {
		if loss > 0 {
			positiveSum += loss
			positiveCount++
		}
		if loss > worst {
			worst = loss
		}
	}
	if positiveCount > 0 {
		result.ExpectedLoss = positiveSum / float64(positiveCount)
	}
	result.WorstCase = worst
	result.ProbabilityOfLoss = float64(lossCount) / float64(numSimulations) * 100.0

	return result
}

// newSampler returns a correlated multivariate normal sampler. A covariance
// matrix that is not positive definite (perfectly correlated series) is
// retried with diagonal jitter, then degraded to independent per-symbol
// normals.
func newSampler(mu []float64, cov *mat.SymDense, src rand.Source, a *Analyzer) func(dst []float64) {
	if normal, ok := distmv.NewNormal(mu, cov, src); ok {
		return func(dst []float64) { normal.Rand(dst) }
	}

	jittered := mat.NewSymDense(len(mu), nil)
	jittered.CopySym(cov)
	for i := 0; i < len(mu); i++ {
		jittered.SetSym(i, i, jittered.At(i, i)+1e-10)
	}
	if normal, ok := distmv.NewNormal(mu, jittered, src); ok {
		a.log.Debug().Msg("Covariance not positive definite, sampling with diagonal jitter")
		return func(dst []float64) { normal.Rand(dst) }
	}

	a.log.Warn().Msg("Covariance not positive definite, sampling independent normals")
	dists := make([]distuv.Normal, len(mu))
	for i := range dists {
		dists[i] = distuv.Normal{
			Mu:    mu[i],
			Sigma: math.Sqrt(math.Max(0, cov.At(i, i))),
			Src:   src,
		}
	}
	return func(dst []float64) {
		for i := range dists {
			dst[i] = dists[i].Rand()
		}
	}
}
