package app

import (
	"context"
	"math"
	"time"

	"github.com/charmbracelet/log"

	"godiffexpr/domain/core"
	"godiffexpr/domain/counts"
	"godiffexpr/domain/diffexpr"
	"godiffexpr/domain/run"
	"godiffexpr/internal/config"
	"godiffexpr/internal/dispersion"
	apperrors "godiffexpr/internal/errors"
	"godiffexpr/internal/glm"
	"godiffexpr/internal/multitest"
	"godiffexpr/internal/pca"
	"godiffexpr/internal/sizefactor"
	"godiffexpr/internal/transform"
)

// PipelineService runs the differential-expression pipeline over a validated
// count model. Every stage is a pure function of (matrix, design, options);
// re-running over identical inputs reproduces the output bit for bit, which
// the manifest fingerprint asserts.
type PipelineService struct {
	logger *log.Logger
	opts   config.Options
}

// NewPipelineService creates a pipeline service.
func NewPipelineService(logger *log.Logger, opts config.Options) *PipelineService {
	return &PipelineService{logger: logger, opts: opts}
}

// RunResult is the complete output of one differential-expression run.
type RunResult struct {
	Manifest     *run.Manifest
	SizeFactors  *diffexpr.SizeFactors
	Dispersions  []diffexpr.DispersionEstimate
	Trend        *diffexpr.DispersionTrend
	Results      []diffexpr.FitResult
	FilterCutoff float64
	Rejections   int
}

// NormalizedCounts returns the size-factor-normalized counts of the run's
// input matrix, for collaborators that post-process the run.
func (r *RunResult) NormalizedCounts(m *counts.Matrix) [][]float64 {
	return sizefactor.Normalize(m, r.SizeFactors)
}

// Run executes size-factor estimation, dispersion estimation, per-gene Wald
// tests and multiple-testing correction. Per-gene failures land in row
// statuses; only configuration-level violations return an error.
func (s *PipelineService) Run(ctx context.Context, m *counts.Matrix, design *counts.Design) (*RunResult, error) {
	started := time.Now()
	manifest := run.NewManifest(m.Hash(), design.Hash(), core.ComputeConfigHash(s.opts.Map()), m.NumGenes(), m.NumSamples())
	s.logger.Info("starting run", "run_id", manifest.RunID, "genes", m.NumGenes(), "samples", m.NumSamples())

	sf, err := sizefactor.Estimate(m)
	if err != nil {
		return nil, err
	}
	baseMeans := sizefactor.BaseMeans(m, sf)

	workers := s.opts.EffectiveWorkers()
	rawDisps, err := dispersion.EstimateGeneWise(ctx, m, sf, design, workers)
	if err != nil {
		return nil, err
	}

	trend, warnings := dispersion.FitTrend(baseMeans, rawDisps, s.opts.MinGenesForTrend)
	for _, w := range warnings {
		manifest.Warn(w)
		s.logger.Warn(w, "run_id", manifest.RunID)
	}

	disps := dispersion.Shrink(m.Genes(), baseMeans, rawDisps, trend, design, m.NumSamples(), s.opts.OutlierSD)

	results, err := glm.TestGenes(ctx, m, sf, design, disps, workers)
	if err != nil {
		return nil, err
	}

	pvals := make([]float64, len(results))
	eligible := make([]bool, len(results))
	for i, r := range results {
		pvals[i] = r.PValue
		eligible[i] = r.Tested()
	}
	adjusted := multitest.Adjust(pvals, baseMeans, eligible, s.opts.SignificanceThreshold, s.opts.IndependentFiltering)
	for i := range results {
		results[i].PAdj = adjusted.PAdj[i]
		if eligible[i] && !adjusted.Tested[i] {
			results[i].Status = diffexpr.StatusLowCounts
		}
	}

	manifest.RuntimeMs = time.Since(started).Milliseconds()
	s.logger.Info("run complete",
		"run_id", manifest.RunID,
		"fingerprint", manifest.Fingerprint,
		"rejections", adjusted.Rejections,
		"filter_cutoff", adjusted.Cutoff,
		"runtime_ms", manifest.RuntimeMs,
	)

	return &RunResult{
		Manifest:     manifest,
		SizeFactors:  sf,
		Dispersions:  disps,
		Trend:        trend,
		Results:      results,
		FilterCutoff: adjusted.Cutoff,
		Rejections:   adjusted.Rejections,
	}, nil
}

// Transform produces a variance-stabilized matrix. With BlindTrend set the
// dispersion trend is re-estimated under a single-condition design so the
// transform carries no condition-label bias.
func (s *PipelineService) Transform(ctx context.Context, m *counts.Matrix, design *counts.Design, kind diffexpr.TransformKind) (*diffexpr.TransformedMatrix, error) {
	sf, err := sizefactor.Estimate(m)
	if err != nil {
		return nil, err
	}

	trendDesign := design
	if s.opts.BlindTrend {
		trendDesign = design.Blinded()
	}

	var trend *diffexpr.DispersionTrend
	if kind == diffexpr.TransformPseudoLog2 {
		// pseudo-log2 needs no dispersion information.
		trend = &diffexpr.DispersionTrend{Kind: diffexpr.TrendConstant, Constant: 0}
	} else {
		baseMeans := sizefactor.BaseMeans(m, sf)
		rawDisps, err := dispersion.EstimateGeneWise(ctx, m, sf, trendDesign, s.opts.EffectiveWorkers())
		if err != nil {
			return nil, err
		}
		var warnings []string
		trend, warnings = dispersion.FitTrend(baseMeans, rawDisps, s.opts.MinGenesForTrend)
		for _, w := range warnings {
			s.logger.Warn(w)
		}
	}

	return transform.Apply(kind, m, sf, trend)
}

// Project transforms the matrix and projects samples onto principal
// components, annotated with condition labels.
func (s *PipelineService) Project(ctx context.Context, m *counts.Matrix, design *counts.Design) (*diffexpr.Projection, error) {
	kind, err := diffexpr.ParseTransformKind(s.opts.Transform)
	if err != nil {
		return nil, err
	}
	t, err := s.Transform(ctx, m, design, kind)
	if err != nil {
		return nil, err
	}

	conditions := make([]core.Condition, 0, m.NumSamples())
	for _, sample := range m.Samples() {
		conditions = append(conditions, design.Condition(sample))
	}

	proj, err := pca.Project(t, conditions, pca.Options{
		TopGenes:   s.opts.TopVarianceGenes,
		Components: s.opts.Components,
	})
	if err != nil {
		if core.IsDegenerateInputError(err) {
			s.logger.Warn("degenerate input to PCA", "err", err)
			return nil, apperrors.WithCode(apperrors.CodeDegenerateInput, err)
		}
		return nil, err
	}

	for c, ev := range proj.ExplainedVariance {
		if math.IsNaN(ev) {
			proj.ExplainedVariance[c] = 0
		}
	}
	return proj, nil
}
