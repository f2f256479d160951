package diffexpr

import (
	"math"

	"godiffexpr/domain/core"
)

// GeneStatus marks why a gene's row has missing numeric fields. StatusOK rows
// carry a full set of statistics; every other status localizes a per-gene
// failure without dropping the row.
type GeneStatus string

const (
	StatusOK            GeneStatus = "ok"
	StatusZeroCounts    GeneStatus = "zero-counts"
	StatusNoConvergence GeneStatus = "glm-no-convergence"
	StatusLowCounts     GeneStatus = "low-counts" // excluded by independent filtering
)

// TransformKind selects one of the fixed variance-stabilization policies.
type TransformKind string

const (
	TransformPseudoLog2 TransformKind = "pseudo-log2"
	TransformRLog       TransformKind = "regularized-log"
	TransformVST        TransformKind = "vst"
)

// ParseTransformKind validates a transform name from configuration.
func ParseTransformKind(s string) (TransformKind, error) {
	switch TransformKind(s) {
	case TransformPseudoLog2, TransformRLog, TransformVST:
		return TransformKind(s), nil
	}
	return "", core.ErrUnknownTransform
}

// SizeFactors holds one positive depth-normalization scalar per sample, in
// matrix column order.
type SizeFactors struct {
	Values []float64
}

// TrendKind records which dispersion-trend fit produced the curve.
type TrendKind string

const (
	TrendParametric TrendKind = "parametric"
	TrendLocal      TrendKind = "local"
	TrendConstant   TrendKind = "constant"
)

// DispersionTrend is the fitted mean-dispersion curve. For the parametric fit
// the curve is a/mean + b; the local and constant fits interpolate Knots.
type DispersionTrend struct {
	Kind TrendKind

	// Parametric coefficients (Kind == TrendParametric)
	ExtraPoisson float64 // a: extra-Poisson term, decays with mean
	Asymptotic   float64 // b: asymptotic dispersion at high mean

	// Interpolation knots (Kind == TrendLocal), ascending in LogMean
	KnotLogMeans []float64
	KnotValues   []float64

	// Constant value (Kind == TrendConstant)
	Constant float64

	// PriorVariance is the empirical-Bayes prior variance of log dispersion
	// around the trend, used for shrinkage.
	PriorVariance float64
}

// At evaluates the trend at a normalized mean expression.
func (t *DispersionTrend) At(mean float64) float64 {
	if mean <= 0 {
		mean = math.SmallestNonzeroFloat64
	}
	switch t.Kind {
	case TrendParametric:
		return t.ExtraPoisson/mean + t.Asymptotic
	case TrendLocal:
		return t.interpolate(math.Log(mean))
	default:
		return t.Constant
	}
}

func (t *DispersionTrend) interpolate(logMean float64) float64 {
	n := len(t.KnotLogMeans)
	if n == 0 {
		return t.Constant
	}
	if logMean <= t.KnotLogMeans[0] {
		return t.KnotValues[0]
	}
	if logMean >= t.KnotLogMeans[n-1] {
		return t.KnotValues[n-1]
	}
	// Knots are few; linear scan keeps this allocation-free.
	for i := 1; i < n; i++ {
		if logMean <= t.KnotLogMeans[i] {
			span := t.KnotLogMeans[i] - t.KnotLogMeans[i-1]
			if span <= 0 {
				return t.KnotValues[i]
			}
			w := (logMean - t.KnotLogMeans[i-1]) / span
			return (1-w)*t.KnotValues[i-1] + w*t.KnotValues[i]
		}
	}
	return t.KnotValues[n-1]
}

// DispersionEstimate carries the per-gene dispersion values through the
// estimation pipeline. Final lies between Raw and the trend value unless the
// gene is flagged an outlier, in which case Final == Raw.
type DispersionEstimate struct {
	GeneID    core.GeneID
	BaseMean  float64 // size-factor-normalized mean count
	Raw       float64 // gene-wise Cox-Reid adjusted MLE
	Trend     float64 // trend curve evaluated at BaseMean
	Final     float64 // shrunk value used in testing
	IsOutlier bool
	Status    GeneStatus
}

// FitResult is one row of the differential-expression result table. PAdj is
// nil for genes excluded by independent filtering or failed fits.
type FitResult struct {
	GeneID         core.GeneID
	BaseMean       float64
	Log2FoldChange float64
	LfcSE          float64
	Stat           float64
	PValue         float64
	PAdj           *float64
	Status         GeneStatus
}

// Tested reports whether the row carries a usable raw p-value.
func (r *FitResult) Tested() bool {
	return r.Status == StatusOK && !math.IsNaN(r.PValue)
}

// TransformedMatrix is a real-valued matrix with the same shape and ordering
// as the source counts, produced by a variance-stabilization policy.
type TransformedMatrix struct {
	Kind    TransformKind
	Genes   []core.GeneID
	Samples []core.SampleName
	Values  [][]float64 // genes x samples
}

// Projection is the PCA output: one coordinate row per sample over the top-k
// components, with the fraction of total variance each component explains.
type Projection struct {
	Samples           []core.SampleName
	Conditions        []core.Condition // optional annotation, empty when unknown
	Coordinates       [][]float64      // samples x components
	ExplainedVariance []float64        // per component, fractions of total
}
