// Package multitest performs independent filtering and Benjamini-Hochberg
// false-discovery-rate adjustment over per-gene raw p-values.
package multitest

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// Result carries the adjustment outcome. PAdj is nil for genes without a
// usable raw p-value and for genes removed by independent filtering.
type Result struct {
	PAdj       []*float64
	Tested     []bool  // genes that entered the BH adjustment
	Cutoff     float64 // chosen baseMean cutoff, 0 when filtering is off
	Rejections int     // rejections at alpha under the chosen cutoff
}

// Adjust applies optional independent filtering followed by BH. eligible
// marks genes carrying a defined raw p-value; ineligible genes never receive
// an adjusted value. The filtering cutoff is chosen over a quantile grid of
// baseMean to maximize rejections at alpha, ties broken toward the lower
// cutoff.
func Adjust(pvals, baseMeans []float64, eligible []bool, alpha float64, filter bool) Result {
	n := len(pvals)
	res := Result{
		PAdj:   make([]*float64, n),
		Tested: make([]bool, n),
	}

	if filter {
		res.Cutoff = chooseCutoff(pvals, baseMeans, eligible, alpha)
	}

	for i := 0; i < n; i++ {
		res.Tested[i] = eligible[i] && !math.IsNaN(pvals[i]) && baseMeans[i] >= res.Cutoff
	}

	adj := adjustSubset(pvals, res.Tested)
	res.PAdj = adj
	for i := 0; i < n; i++ {
		if adj[i] != nil && *adj[i] <= alpha {
			res.Rejections++
		}
	}
	return res
}

// chooseCutoff scans candidate baseMean cutoffs ascending; a strictly greater
// rejection count replaces the incumbent, so ties resolve toward the lower
// cutoff.
func chooseCutoff(pvals, baseMeans []float64, eligible []bool, alpha float64) float64 {
	var candidates []float64
	var testedMeans []float64
	for i := range baseMeans {
		if eligible[i] && !math.IsNaN(pvals[i]) {
			testedMeans = append(testedMeans, baseMeans[i])
		}
	}
	if len(testedMeans) == 0 {
		return 0
	}

	seen := map[float64]bool{}
	for q := 0.0; q <= 95.0; q += 1.0 {
		var c float64
		if q == 0 {
			c = 0
		} else {
			v, err := stats.Percentile(testedMeans, q)
			if err != nil {
				continue
			}
			c = v
		}
		if !seen[c] {
			seen[c] = true
			candidates = append(candidates, c)
		}
	}
	sort.Float64s(candidates)

	bestCutoff, bestRejections := 0.0, -1
	tested := make([]bool, len(pvals))
	for _, cutoff := range candidates {
		for i := range pvals {
			tested[i] = eligible[i] && !math.IsNaN(pvals[i]) && baseMeans[i] >= cutoff
		}
		adj := adjustSubset(pvals, tested)
		rejections := 0
		for i := range adj {
			if adj[i] != nil && *adj[i] <= alpha {
				rejections++
			}
		}
		if rejections > bestRejections {
			bestRejections = rejections
			bestCutoff = cutoff
		}
	}
	return bestCutoff
}

// adjustSubset runs BH over the tested genes and restores original order.
// Adjusted values are computed by a descending-rank pass with a running
// minimum, which enforces the BH monotonicity correction.
func adjustSubset(pvals []float64, tested []bool) []*float64 {
	var idx []int
	for i, t := range tested {
		if t {
			idx = append(idx, i)
		}
	}
	out := make([]*float64, len(pvals))
	m := len(idx)
	if m == 0 {
		return out
	}

	sort.Slice(idx, func(a, b int) bool { return pvals[idx[a]] < pvals[idx[b]] })

	minAdj := 1.0
	adj := make([]float64, m)
	for r := m - 1; r >= 0; r-- {
		a := pvals[idx[r]] * float64(m) / float64(r+1)
		if a > 1 {
			a = 1
		}
		if a < minAdj {
			minAdj = a
		} else {
			a = minAdj
		}
		adj[r] = a
	}
	for r, i := range idx {
		v := adj[r]
		out[i] = &v
	}
	return out
}
