package dispersion

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"godiffexpr/domain/core"
	"godiffexpr/domain/counts"
	"godiffexpr/domain/diffexpr"
)

func twoGroupDesign(t *testing.T, m *counts.Matrix) *counts.Design {
	t.Helper()
	labels := map[core.SampleName]core.Condition{}
	samples := m.Samples()
	for j, s := range samples {
		if j < len(samples)/2 {
			labels[s] = "control"
		} else {
			labels[s] = "treated"
		}
	}
	d, err := counts.NewDesign(m, labels, "control")
	require.NoError(t, err)
	return d
}

func TestEstimateGeneWise_ZeroGeneIsNaN(t *testing.T) {
	m, err := counts.NewMatrix(
		[]core.GeneID{"expressed", "silent"},
		[]core.SampleName{"s1", "s2", "s3", "s4"},
		[][]float64{
			{40, 60, 50, 50},
			{0, 0, 0, 0},
		},
	)
	require.NoError(t, err)
	design := twoGroupDesign(t, m)
	sf := &diffexpr.SizeFactors{Values: []float64{1, 1, 1, 1}}

	raw, err := EstimateGeneWise(context.Background(), m, sf, design, 2)
	require.NoError(t, err)
	require.Len(t, raw, 2)

	assert.False(t, math.IsNaN(raw[0]))
	assert.GreaterOrEqual(t, raw[0], minDispersion)
	assert.LessOrEqual(t, raw[0], maxDispersion)
	assert.True(t, math.IsNaN(raw[1]))
}

func TestEstimateGeneWise_IdenticalCountsHitFloor(t *testing.T) {
	// A gene with identical counts in every sample shows no extra-Poisson
	// noise; its estimate pins at the search floor.
	m, err := counts.NewMatrix(
		[]core.GeneID{"flat"},
		[]core.SampleName{"s1", "s2", "s3", "s4"},
		[][]float64{{50, 50, 50, 50}},
	)
	require.NoError(t, err)
	design := twoGroupDesign(t, m)
	sf := &diffexpr.SizeFactors{Values: []float64{1, 1, 1, 1}}

	raw, err := EstimateGeneWise(context.Background(), m, sf, design, 1)
	require.NoError(t, err)
	assert.InDelta(t, minDispersion, raw[0], 1e-6)
}

func TestEstimateGeneWise_NoisyGeneAboveQuietGene(t *testing.T) {
	m, err := counts.NewMatrix(
		[]core.GeneID{"noisy", "quiet"},
		[]core.SampleName{"s1", "s2", "s3", "s4", "s5", "s6"},
		[][]float64{
			{10, 200, 80, 15, 190, 70},
			{95, 100, 105, 98, 102, 100},
		},
	)
	require.NoError(t, err)
	design := twoGroupDesign(t, m)
	sf := &diffexpr.SizeFactors{Values: []float64{1, 1, 1, 1, 1, 1}}

	raw, err := EstimateGeneWise(context.Background(), m, sf, design, 2)
	require.NoError(t, err)
	assert.Greater(t, raw[0], raw[1])
}

func TestFitTrend_ParametricRecovery(t *testing.T) {
	// Dispersions generated exactly from a/mean + b must be recovered.
	const a, b = 1.0, 0.1
	var means, disps []float64
	for mean := 1.0; mean <= 1000; mean += 7 {
		means = append(means, mean)
		disps = append(disps, a/mean+b)
	}

	trend, warnings := FitTrend(means, disps, 10)
	require.Empty(t, warnings)
	require.Equal(t, diffexpr.TrendParametric, trend.Kind)
	assert.InDelta(t, a, trend.ExtraPoisson, 1e-6)
	assert.InDelta(t, b, trend.Asymptotic, 1e-6)
	assert.InDelta(t, a/50+b, trend.At(50), 1e-6)
}

func TestFitTrend_ConstantFallback(t *testing.T) {
	means := []float64{10, 20, 30}
	disps := []float64{0.1, 0.2, 0.3}

	trend, warnings := FitTrend(means, disps, 10)
	require.Len(t, warnings, 1)
	require.Equal(t, diffexpr.TrendConstant, trend.Kind)
	assert.InDelta(t, 0.2, trend.Constant, 1e-9)
	assert.InDelta(t, 0.2, trend.At(5), 1e-9)
	assert.InDelta(t, 0.2, trend.At(5000), 1e-9)
}

func TestShrink_FinalBetweenRawAndTrend(t *testing.T) {
	genes := []core.GeneID{"g1", "g2", "g3", "g4"}
	baseMeans := []float64{50, 100, 200, 400}
	raw := []float64{0.3, 0.05, 0.15, 0.08}
	trend := &diffexpr.DispersionTrend{Kind: diffexpr.TrendConstant, Constant: 0.1}

	m := fourSampleMatrix(t)
	design := twoGroupDesign(t, m)
	ests := Shrink(genes, baseMeans, raw, trend, design, 4, 2.0)
	require.Len(t, ests, 4)

	for _, est := range ests {
		require.Equal(t, diffexpr.StatusOK, est.Status)
		if est.IsOutlier {
			assert.Equal(t, est.Raw, est.Final)
			continue
		}
		lo := math.Min(est.Raw, est.Trend)
		hi := math.Max(est.Raw, est.Trend)
		assert.GreaterOrEqual(t, est.Final, lo-1e-12, "gene %s", est.GeneID)
		assert.LessOrEqual(t, est.Final, hi+1e-12, "gene %s", est.GeneID)
	}
}

func TestShrink_OutlierKeepsRawValue(t *testing.T) {
	// One gene sits far above a tight cloud around the trend; it must be
	// flagged and keep its unshrunk estimate.
	n := 30
	genes := make([]core.GeneID, n)
	baseMeans := make([]float64, n)
	raw := make([]float64, n)
	for i := 0; i < n; i++ {
		genes[i] = core.GeneID(rune('a' + i))
		baseMeans[i] = 100
		raw[i] = 0.1
	}
	raw[n-1] = 50.0 // extreme

	trend := &diffexpr.DispersionTrend{Kind: diffexpr.TrendConstant, Constant: 0.1}
	m := fourSampleMatrix(t)
	design := twoGroupDesign(t, m)

	ests := Shrink(genes, baseMeans, raw, trend, design, 4, 2.0)
	outlier := ests[n-1]
	assert.True(t, outlier.IsOutlier)
	assert.Equal(t, 50.0, outlier.Final)

	assert.False(t, ests[0].IsOutlier)
}

func TestShrink_ZeroGeneStatus(t *testing.T) {
	trend := &diffexpr.DispersionTrend{Kind: diffexpr.TrendConstant, Constant: 0.1}
	m := fourSampleMatrix(t)
	design := twoGroupDesign(t, m)

	ests := Shrink(
		[]core.GeneID{"silent"},
		[]float64{0},
		[]float64{math.NaN()},
		trend, design, 4, 2.0,
	)
	require.Len(t, ests, 1)
	assert.Equal(t, diffexpr.StatusZeroCounts, ests[0].Status)
	assert.True(t, math.IsNaN(ests[0].Final))
}

func TestTrigamma(t *testing.T) {
	// trigamma(1) = pi^2/6, trigamma(0.5) = pi^2/2.
	assert.InDelta(t, math.Pi*math.Pi/6, trigamma(1), 1e-10)
	assert.InDelta(t, math.Pi*math.Pi/2, trigamma(0.5), 1e-10)
	// Recurrence: trigamma(x) - trigamma(x+1) = 1/x^2.
	assert.InDelta(t, 1.0/(2.5*2.5), trigamma(2.5)-trigamma(3.5), 1e-10)
	// Values just below the series switchover stay on the same accuracy.
	assert.InDelta(t, 1.0/(9.5*9.5), trigamma(9.5)-trigamma(10.5), 1e-10)
}

func fourSampleMatrix(t *testing.T) *counts.Matrix {
	t.Helper()
	m, err := counts.NewMatrix(
		[]core.GeneID{"g"},
		[]core.SampleName{"s1", "s2", "s3", "s4"},
		[][]float64{{10, 10, 10, 10}},
	)
	require.NoError(t, err)
	return m
}
