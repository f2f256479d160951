package dispersion

import (
	"math"

	"github.com/montanaflynn/stats"

	"godiffexpr/domain/core"
	"godiffexpr/domain/counts"
	"godiffexpr/domain/diffexpr"
)

// Shrink combines each gene-wise estimate with the trend value at the gene's
// mean via empirical-Bayes shrinkage in log space. The weight on the trend
// grows as the sampling variance of the gene-wise estimate grows (fewer
// replicates, more shrinkage). Genes whose log estimate sits more than
// outlierSD MADs above the trend keep their unshrunk value and are flagged.
func Shrink(genes []core.GeneID, baseMeans, raw []float64, trend *diffexpr.DispersionTrend, design *counts.Design, numSamples int, outlierSD float64) []diffexpr.DispersionEstimate {
	// Sampling variance of log dispersion from the residual degrees of
	// freedom, via the trigamma function.
	df := float64(numSamples - design.NumLevels())
	if df < 1 {
		df = 1
	}
	samplingVar := trigamma(df / 2)

	// Spread of log residuals around the trend sets both the outlier bound
	// and the prior width.
	var residuals []float64
	for i := range raw {
		if math.IsNaN(raw[i]) || baseMeans[i] <= 0 || raw[i] <= trendFloor {
			continue
		}
		residuals = append(residuals, math.Log(raw[i])-math.Log(trend.At(baseMeans[i])))
	}
	madLR := 1.0
	if len(residuals) > 0 {
		if mad, err := stats.MedianAbsoluteDeviation(residuals); err == nil && mad > 0 {
			madLR = mad * 1.4826
		}
	}
	priorVar := madLR*madLR - samplingVar
	if priorVar < 0.25 {
		priorVar = 0.25
	}
	trend.PriorVariance = priorVar

	out := make([]diffexpr.DispersionEstimate, len(raw))
	for i := range raw {
		est := diffexpr.DispersionEstimate{
			GeneID:   genes[i],
			BaseMean: baseMeans[i],
			Status:   diffexpr.StatusOK,
		}
		if math.IsNaN(raw[i]) || baseMeans[i] <= 0 {
			est.Raw = math.NaN()
			est.Trend = math.NaN()
			est.Final = math.NaN()
			est.Status = diffexpr.StatusZeroCounts
			out[i] = est
			continue
		}

		est.Raw = raw[i]
		est.Trend = trend.At(baseMeans[i])
		logRaw := math.Log(raw[i])
		logTrend := math.Log(est.Trend)

		if logRaw > logTrend+outlierSD*madLR {
			est.IsOutlier = true
			est.Final = est.Raw
			out[i] = est
			continue
		}

		// Posterior mode under a log-normal prior centered on the trend.
		logFinal := (logRaw/samplingVar + logTrend/priorVar) / (1/samplingVar + 1/priorVar)
		est.Final = math.Exp(logFinal)
		out[i] = est
	}
	return out
}

// trigamma evaluates the second derivative of lgamma by the standard
// recurrence into the asymptotic region.
func trigamma(x float64) float64 {
	if x <= 0 {
		return math.Inf(1)
	}
	v := 0.0
	// Shift to x >= 10 so the first omitted series term (-1/(30x^9)) stays
	// below 1e-10.
	for x < 10 {
		v += 1 / (x * x)
		x++
	}
	inv := 1 / x
	inv2 := inv * inv
	// Asymptotic series 1/x + 1/(2x^2) + 1/(6x^3) - 1/(30x^5) + 1/(42x^7)
	return v + inv + inv2/2 + inv*inv2*(1.0/6-inv2*(1.0/30-inv2/42))
}
