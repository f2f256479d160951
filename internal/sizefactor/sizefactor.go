// Package sizefactor normalizes per-sample sequencing depth with the
// median-of-ratios method. The median over reference ratios is robust to a
// minority of genes with extreme differential expression, unlike a total-count
// depth estimate.
package sizefactor

import (
	"math"

	"github.com/montanaflynn/stats"

	"godiffexpr/domain/core"
	"godiffexpr/domain/counts"
	"godiffexpr/domain/diffexpr"
)

// Estimate computes one size factor per sample column. A gene contributes
// only when all of its counts are positive (its geometric mean would otherwise
// be zero and carry no depth information). Returns ErrAllZeroMatrix when no
// gene qualifies.
func Estimate(m *counts.Matrix) (*diffexpr.SizeFactors, error) {
	nGenes := m.NumGenes()
	nSamples := m.NumSamples()

	// Log geometric mean per gene; NaN marks an uninformative gene.
	logGeoMeans := make([]float64, nGenes)
	for i := 0; i < nGenes; i++ {
		sum := 0.0
		ok := true
		for j := 0; j < nSamples; j++ {
			v := m.At(i, j)
			if v <= 0 {
				ok = false
				break
			}
			sum += math.Log(v)
		}
		if ok {
			logGeoMeans[i] = sum / float64(nSamples)
		} else {
			logGeoMeans[i] = math.NaN()
		}
	}

	factors := make([]float64, nSamples)
	ratios := make([]float64, 0, nGenes)
	for j := 0; j < nSamples; j++ {
		ratios = ratios[:0]
		for i := 0; i < nGenes; i++ {
			if math.IsNaN(logGeoMeans[i]) {
				continue
			}
			ratios = append(ratios, math.Exp(math.Log(m.At(i, j))-logGeoMeans[i]))
		}
		if len(ratios) == 0 {
			return nil, core.ErrAllZeroMatrix
		}
		med, err := stats.Median(ratios)
		if err != nil {
			return nil, err
		}
		factors[j] = med
	}

	return &diffexpr.SizeFactors{Values: factors}, nil
}

// Normalize divides each count by its sample's size factor, returning a fresh
// genes-by-samples matrix of normalized counts.
func Normalize(m *counts.Matrix, sf *diffexpr.SizeFactors) [][]float64 {
	out := make([][]float64, m.NumGenes())
	for i := range out {
		row := make([]float64, m.NumSamples())
		for j := range row {
			row[j] = m.At(i, j) / sf.Values[j]
		}
		out[i] = row
	}
	return out
}

// BaseMeans returns the size-factor-normalized mean count per gene.
func BaseMeans(m *counts.Matrix, sf *diffexpr.SizeFactors) []float64 {
	means := make([]float64, m.NumGenes())
	n := float64(m.NumSamples())
	for i := range means {
		sum := 0.0
		for j := 0; j < m.NumSamples(); j++ {
			sum += m.At(i, j) / sf.Values[j]
		}
		means[i] = sum / n
	}
	return means
}
