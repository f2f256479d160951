package dispersion

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"

	"godiffexpr/domain/diffexpr"
)

// trendFloor excludes near-boundary gene-wise estimates from the trend fit;
// estimates pinned at the search floor carry no information about the curve.
const trendFloor = 10 * minDispersion

// FitTrend fits the mean-dispersion trend over all genes with usable
// gene-wise estimates. The parametric form a/mean + b is tried first; a local
// running-median regression takes over when the parametric iteration fails or
// yields non-positive coefficients. With fewer than minGenes usable estimates
// the trend degrades to a constant at the median gene-wise dispersion and a
// warning is returned.
func FitTrend(baseMeans, raw []float64, minGenes int) (*diffexpr.DispersionTrend, []string) {
	var means, disps []float64
	for i := range raw {
		if baseMeans[i] > 0 && !math.IsNaN(raw[i]) && raw[i] > trendFloor {
			means = append(means, baseMeans[i])
			disps = append(disps, raw[i])
		}
	}

	if len(disps) < minGenes {
		med := medianDispersion(raw)
		return &diffexpr.DispersionTrend{Kind: diffexpr.TrendConstant, Constant: med},
			[]string{"too few genes for dispersion trend fit, using constant median dispersion"}
	}

	if trend, ok := fitParametric(means, disps); ok {
		return trend, nil
	}
	return fitLocal(means, disps), []string{"parametric dispersion trend did not converge, using local regression"}
}

// fitParametric runs an iteratively reweighted gamma-family least-squares fit
// of dispersion on 1/mean, re-deriving weights 1/fitted^2 each round and
// discarding genes whose ratio to the fitted curve is extreme.
func fitParametric(means, disps []float64) (*diffexpr.DispersionTrend, bool) {
	n := len(disps)
	use := make([]bool, n)
	for i := range use {
		use[i] = true
	}
	a, b := 0.1, 0.5

	for iter := 0; iter < 10; iter++ {
		// Weighted normal equations for d ~ a*(1/mu) + b.
		var x00, x01, x11, y0, y1 float64
		rows := 0
		for i := 0; i < n; i++ {
			if !use[i] {
				continue
			}
			fitted := a/means[i] + b
			if fitted <= 0 {
				fitted = math.SmallestNonzeroFloat64
			}
			w := 1 / (fitted * fitted)
			u := 1 / means[i]
			x00 += w * u * u
			x01 += w * u
			x11 += w
			y0 += w * u * disps[i]
			y1 += w * disps[i]
			rows++
		}
		if rows < 2 {
			return nil, false
		}

		sys := mat.NewDense(2, 2, []float64{x00, x01, x01, x11})
		rhs := mat.NewVecDense(2, []float64{y0, y1})
		var sol mat.VecDense
		if err := sol.SolveVec(sys, rhs); err != nil {
			return nil, false
		}
		newA, newB := sol.AtVec(0), sol.AtVec(1)
		if math.IsNaN(newA) || math.IsNaN(newB) {
			return nil, false
		}

		converged := math.Abs(newA-a) < 1e-6*(math.Abs(a)+1e-6) &&
			math.Abs(newB-b) < 1e-6*(math.Abs(b)+1e-6)
		a, b = newA, newB

		// Trim genes far off the current curve before the next round.
		for i := 0; i < n; i++ {
			fitted := a/means[i] + b
			if fitted <= 0 {
				use[i] = false
				continue
			}
			ratio := disps[i] / fitted
			use[i] = ratio > 1e-4 && ratio < 15
		}

		if converged {
			break
		}
		if iter == 9 {
			return nil, false
		}
	}

	if a < 0 || b <= 0 {
		return nil, false
	}
	return &diffexpr.DispersionTrend{
		Kind:         diffexpr.TrendParametric,
		ExtraPoisson: a,
		Asymptotic:   b,
	}, true
}

// fitLocal builds a running-median curve of log dispersion over log mean,
// then enforces the monotone non-increasing shape the trend contract
// requires.
func fitLocal(means, disps []float64) *diffexpr.DispersionTrend {
	n := len(means)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return means[order[a]] < means[order[b]] })

	window := n / 10
	if window < 5 {
		window = 5
	}
	if window > n {
		window = n
	}

	const knots = 20
	step := n / knots
	if step < 1 {
		step = 1
	}

	var knotLogMeans, knotValues []float64
	buf := make([]float64, 0, window)
	for center := 0; center < n; center += step {
		lo := center - window/2
		if lo < 0 {
			lo = 0
		}
		hi := lo + window
		if hi > n {
			hi = n
			lo = hi - window
		}
		buf = buf[:0]
		for _, idx := range order[lo:hi] {
			buf = append(buf, disps[idx])
		}
		med, err := stats.Median(buf)
		if err != nil {
			continue
		}
		knotLogMeans = append(knotLogMeans, math.Log(means[order[center]]))
		knotValues = append(knotValues, med)
	}

	// Monotone non-increasing with mean.
	for i := 1; i < len(knotValues); i++ {
		if knotValues[i] > knotValues[i-1] {
			knotValues[i] = knotValues[i-1]
		}
	}

	med := medianDispersion(disps)
	return &diffexpr.DispersionTrend{
		Kind:         diffexpr.TrendLocal,
		KnotLogMeans: knotLogMeans,
		KnotValues:   knotValues,
		Constant:     med,
	}
}

func medianDispersion(raw []float64) float64 {
	var usable []float64
	for _, d := range raw {
		if !math.IsNaN(d) {
			usable = append(usable, d)
		}
	}
	if len(usable) == 0 {
		return minDispersion
	}
	med, err := stats.Median(usable)
	if err != nil || med <= 0 {
		return minDispersion
	}
	return med
}
