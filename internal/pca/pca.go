// Package pca projects samples of a transformed expression matrix onto their
// top principal components via singular value decomposition.
package pca

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"godiffexpr/domain/core"
	"godiffexpr/domain/diffexpr"
)

// Options configures the projection.
type Options struct {
	// TopGenes keeps only the highest-variance genes; 0 keeps all.
	TopGenes int
	// Components is the number of leading components to report.
	Components int
	// Scale divides each gene by its standard deviation after centering.
	Scale bool
}

// Project centers the selected genes across samples, decomposes the resulting
// samples-by-genes matrix, and returns per-sample coordinates with explained
// variance fractions. Components follow the SVD's descending singular-value
// order, which is stable under ties. A failed decomposition on degenerate
// input is reported as an error, not a panic.
func Project(t *diffexpr.TransformedMatrix, conditions []core.Condition, opts Options) (*diffexpr.Projection, error) {
	nGenes := len(t.Values)
	nSamples := len(t.Samples)
	if nGenes == 0 || nSamples == 0 {
		return nil, core.ErrEmptyMatrix
	}

	selected := selectTopVariance(t.Values, opts.TopGenes)

	// Samples as rows, centered per gene.
	data := mat.NewDense(nSamples, len(selected), nil)
	for c, gi := range selected {
		row := t.Values[gi]
		mean := stat.Mean(row, nil)
		sd := 1.0
		if opts.Scale {
			sd = stat.StdDev(row, nil)
			if sd == 0 {
				sd = 1
			}
		}
		for j := 0; j < nSamples; j++ {
			data.Set(j, c, (row[j]-mean)/sd)
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(data, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: %d samples x %d genes", core.ErrDegenerateSVD, nSamples, len(selected))
	}

	values := svd.Values(nil)
	var u mat.Dense
	svd.UTo(&u)

	k := opts.Components
	if k < 1 {
		k = 1
	}
	if k > len(values) {
		k = len(values)
	}

	total := 0.0
	for _, s := range values {
		total += s * s
	}

	coords := make([][]float64, nSamples)
	for j := 0; j < nSamples; j++ {
		row := make([]float64, k)
		for c := 0; c < k; c++ {
			row[c] = u.At(j, c) * values[c]
		}
		coords[j] = row
	}
	explained := make([]float64, k)
	for c := 0; c < k; c++ {
		if total > 0 {
			explained[c] = values[c] * values[c] / total
		}
	}

	return &diffexpr.Projection{
		Samples:           append([]core.SampleName(nil), t.Samples...),
		Conditions:        append([]core.Condition(nil), conditions...),
		Coordinates:       coords,
		ExplainedVariance: explained,
	}, nil
}

// selectTopVariance returns gene row indices ordered by position, keeping the
// topGenes highest-variance rows. Position order keeps the projection
// deterministic when variances tie.
func selectTopVariance(values [][]float64, topGenes int) []int {
	n := len(values)
	if topGenes <= 0 || topGenes >= n {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}

	type gv struct {
		idx int
		v   float64
	}
	gvs := make([]gv, n)
	for i, row := range values {
		gvs[i] = gv{idx: i, v: stat.Variance(row, nil)}
	}
	sort.SliceStable(gvs, func(a, b int) bool { return gvs[a].v > gvs[b].v })
	keep := gvs[:topGenes]
	idx := make([]int, topGenes)
	for i, g := range keep {
		idx[i] = g.idx
	}
	sort.Ints(idx)
	return idx
}
