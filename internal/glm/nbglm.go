// Package glm fits per-gene negative-binomial generalized linear models with
// a logarithmic link and performs Wald significance tests of the condition
// coefficient.
package glm

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"godiffexpr/domain/core"
	"godiffexpr/domain/counts"
	"godiffexpr/domain/diffexpr"
	"godiffexpr/internal/worker"
)

const (
	maxIterations = 100
	tolerance     = 1e-6
	// betaBound caps natural-log coefficients; a group with no expressed
	// counts would otherwise drive the coefficient to -inf.
	betaBound = 30.0
	// ridge keeps the information matrix invertible when a group's weights
	// collapse to zero.
	ridge = 1e-6
)

// TestGenes fits one GLM per gene with the gene's shrunk dispersion held
// fixed and fills a FitResult per gene. Per-gene non-convergence is recorded
// in the row status, never aborting the batch.
func TestGenes(ctx context.Context, m *counts.Matrix, sf *diffexpr.SizeFactors, design *counts.Design, disps []diffexpr.DispersionEstimate, workers int) ([]diffexpr.FitResult, error) {
	if design.NumLevels() < 2 {
		return nil, core.ErrInsufficientData
	}
	genes := m.Genes()
	levelIdx := levelIndices(m, design)
	nLevels := design.NumLevels()

	results := make([]diffexpr.FitResult, m.NumGenes())
	err := worker.MapGenes(ctx, m.NumGenes(), workers, func(i int) error {
		res := diffexpr.FitResult{
			GeneID:   genes[i],
			BaseMean: disps[i].BaseMean,
			Status:   diffexpr.StatusOK,
		}
		if disps[i].Status == diffexpr.StatusZeroCounts {
			markUntested(&res, diffexpr.StatusZeroCounts)
			results[i] = res
			return nil
		}

		fit := fitGene(m.Row(i), sf.Values, levelIdx, nLevels, disps[i].Final)
		if !fit.converged {
			markUntested(&res, diffexpr.StatusNoConvergence)
			results[i] = res
			return nil
		}

		res.Log2FoldChange = fit.log2FC
		res.LfcSE = fit.lfcSE
		res.Stat = fit.stat
		res.PValue = fit.pValue
		results[i] = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func markUntested(res *diffexpr.FitResult, status diffexpr.GeneStatus) {
	res.Status = status
	res.Log2FoldChange = math.NaN()
	res.LfcSE = math.NaN()
	res.Stat = math.NaN()
	res.PValue = math.NaN()
}

// levelIndices maps each sample column to its condition level index,
// reference level 0 first.
func levelIndices(m *counts.Matrix, design *counts.Design) []int {
	samples := m.Samples()
	idx := make([]int, len(samples))
	for j, s := range samples {
		li, _ := design.LevelIndex(design.Condition(s))
		idx[j] = li
	}
	return idx
}

type geneFit struct {
	log2FC    float64
	lfcSE     float64
	stat      float64
	pValue    float64
	converged bool
}

// fitGene runs iteratively reweighted least squares for one gene. The design
// matrix is an intercept plus one indicator per non-reference level; the
// size factor enters as a log offset. The tested coefficient is the first
// non-reference level's, converted from natural log to base 2.
func fitGene(k []float64, sf []float64, levelIdx []int, nLevels int, alpha float64) geneFit {
	n := len(k)
	p := nLevels

	x := mat.NewDense(n, p, nil)
	offset := make([]float64, n)
	for j := 0; j < n; j++ {
		x.Set(j, 0, 1)
		if levelIdx[j] > 0 {
			x.Set(j, levelIdx[j], 1)
		}
		offset[j] = math.Log(sf[j])
	}

	beta := initialBeta(k, sf, levelIdx, p)
	mu := make([]float64, n)
	w := make([]float64, n)
	z := make([]float64, n)

	converged := false
	for iter := 0; iter < maxIterations; iter++ {
		for j := 0; j < n; j++ {
			eta := offset[j] + beta[0]
			if levelIdx[j] > 0 {
				eta += beta[levelIdx[j]]
			}
			mu[j] = math.Exp(eta)
			if mu[j] < 1e-10 {
				mu[j] = 1e-10
			}
			w[j] = mu[j] / (1 + alpha*mu[j])
			z[j] = (eta - offset[j]) + (k[j]-mu[j])/mu[j]
		}

		next, ok := solveWLS(x, w, z, p)
		if !ok {
			return geneFit{}
		}

		delta := 0.0
		for c := 0; c < p; c++ {
			if next[c] > betaBound {
				next[c] = betaBound
			}
			if next[c] < -betaBound {
				next[c] = -betaBound
			}
			if d := math.Abs(next[c] - beta[c]); d > delta {
				delta = d
			}
			beta[c] = next[c]
		}
		if delta < tolerance {
			converged = true
			break
		}
	}
	if !converged {
		return geneFit{}
	}

	// Standard error from the inverse Fisher information at the converged
	// estimate.
	info := informationMatrix(x, w, p)
	var inv mat.Dense
	if err := inv.Inverse(info); err != nil {
		return geneFit{}
	}
	se := math.Sqrt(inv.At(1, 1))
	if math.IsNaN(se) || se <= 0 {
		return geneFit{}
	}

	stat := beta[1] / se
	pValue := 2 * distuv.UnitNormal.Survival(math.Abs(stat))
	if pValue > 1 {
		pValue = 1
	}

	return geneFit{
		log2FC:    beta[1] / math.Ln2,
		lfcSE:     se / math.Ln2,
		stat:      stat,
		pValue:    pValue,
		converged: true,
	}
}

// initialBeta starts IRLS at the log normalized group means.
func initialBeta(k []float64, sf []float64, levelIdx []int, p int) []float64 {
	sums := make([]float64, p)
	ns := make([]float64, p)
	for j := range k {
		sums[levelIdx[j]] += k[j] / sf[j]
		ns[levelIdx[j]]++
	}
	const eps = 0.1
	beta := make([]float64, p)
	ref := math.Log(sums[0]/math.Max(ns[0], 1) + eps)
	beta[0] = ref
	for c := 1; c < p; c++ {
		beta[c] = math.Log(sums[c]/math.Max(ns[c], 1)+eps) - ref
	}
	return beta
}

// solveWLS solves (X'WX + ridge*I) beta = X'Wz.
func solveWLS(x *mat.Dense, w, z []float64, p int) ([]float64, bool) {
	info := informationMatrix(x, w, p)
	rhs := mat.NewVecDense(p, nil)
	n := len(w)
	for c := 0; c < p; c++ {
		s := 0.0
		for j := 0; j < n; j++ {
			s += x.At(j, c) * w[j] * z[j]
		}
		rhs.SetVec(c, s)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(info, rhs); err != nil {
		return nil, false
	}
	out := make([]float64, p)
	for c := 0; c < p; c++ {
		out[c] = sol.AtVec(c)
		if math.IsNaN(out[c]) {
			return nil, false
		}
	}
	return out, true
}

func informationMatrix(x *mat.Dense, w []float64, p int) *mat.Dense {
	n := len(w)
	info := mat.NewDense(p, p, nil)
	for a := 0; a < p; a++ {
		for b := a; b < p; b++ {
			s := 0.0
			for j := 0; j < n; j++ {
				s += x.At(j, a) * w[j] * x.At(j, b)
			}
			if a == b {
				s += ridge
			}
			info.Set(a, b, s)
			info.Set(b, a, s)
		}
	}
	return info
}
