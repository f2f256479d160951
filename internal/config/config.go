package config

import (
	"os"
	"runtime"
	"strconv"

	"github.com/BurntSushi/toml"

	"godiffexpr/internal/errors"
)

// Options is the complete engine configuration. Zero values are never used
// directly; construct with Default and override via file, env, or setters.
type Options struct {
	// SignificanceThreshold is the FDR cutoff used by independent filtering's
	// rejection count and by reporting of adjusted p-values.
	SignificanceThreshold float64 `toml:"significance_threshold"`

	// IndependentFiltering enables the mean-expression cutoff search before
	// the BH adjustment.
	IndependentFiltering bool `toml:"independent_filtering"`

	// BlindTrend re-estimates the dispersion trend ignoring condition labels
	// when building transforms.
	BlindTrend bool `toml:"blind_trend"`

	// Transform selects the variance-stabilization policy: pseudo-log2,
	// regularized-log, or vst.
	Transform string `toml:"transform"`

	// Workers caps the gene-level worker pool; 0 means GOMAXPROCS.
	Workers int `toml:"workers"`

	// MinGenesForTrend is the minimum number of usable gene-wise estimates
	// below which the trend fit degrades to a constant.
	MinGenesForTrend int `toml:"min_genes_for_trend"`

	// OutlierSD flags a gene as a dispersion outlier when its log gene-wise
	// estimate exceeds the trend by this many MADs of the log residuals.
	OutlierSD float64 `toml:"outlier_sd"`

	// TopVarianceGenes subsets the transformed matrix before PCA; 0 keeps all.
	TopVarianceGenes int `toml:"top_variance_genes"`

	// Components is the number of principal components to report.
	Components int `toml:"components"`
}

// Default returns the documented default option set.
func Default() Options {
	return Options{
		SignificanceThreshold: 0.05,
		IndependentFiltering:  true,
		BlindTrend:            true,
		Transform:             "vst",
		Workers:               0,
		MinGenesForTrend:      10,
		OutlierSD:             2.0,
		TopVarianceGenes:      500,
		Components:            2,
	}
}

// Load builds options from defaults, an optional TOML file, then environment
// variables, in that precedence order.
func Load(path string) (Options, error) {
	opts := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &opts); err != nil {
			return opts, errors.Wrapf(err, "failed to load config file %s", path)
		}
	}

	if err := opts.applyEnv(); err != nil {
		return opts, err
	}
	return opts, opts.Validate()
}

func (o *Options) applyEnv() error {
	if v := os.Getenv("DE_SIGNIFICANCE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.ConfigInvalid("DE_SIGNIFICANCE_THRESHOLD must be a float")
		}
		o.SignificanceThreshold = f
	}
	if v := os.Getenv("DE_INDEPENDENT_FILTERING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.ConfigInvalid("DE_INDEPENDENT_FILTERING must be a bool")
		}
		o.IndependentFiltering = b
	}
	if v := os.Getenv("DE_BLIND_TREND"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.ConfigInvalid("DE_BLIND_TREND must be a bool")
		}
		o.BlindTrend = b
	}
	if v := os.Getenv("DE_TRANSFORM"); v != "" {
		o.Transform = v
	}
	if v := os.Getenv("DE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.ConfigInvalid("DE_WORKERS must be an integer")
		}
		o.Workers = n
	}
	if v := os.Getenv("DE_MIN_GENES_FOR_TREND"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.ConfigInvalid("DE_MIN_GENES_FOR_TREND must be an integer")
		}
		o.MinGenesForTrend = n
	}
	if v := os.Getenv("DE_OUTLIER_SD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.ConfigInvalid("DE_OUTLIER_SD must be a float")
		}
		o.OutlierSD = f
	}
	if v := os.Getenv("DE_TOP_VARIANCE_GENES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.ConfigInvalid("DE_TOP_VARIANCE_GENES must be an integer")
		}
		o.TopVarianceGenes = n
	}
	if v := os.Getenv("DE_COMPONENTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.ConfigInvalid("DE_COMPONENTS must be an integer")
		}
		o.Components = n
	}
	return nil
}

// Validate rejects option values outside their documented domains.
func (o *Options) Validate() error {
	if o.SignificanceThreshold <= 0 || o.SignificanceThreshold >= 1 {
		return errors.ConfigInvalid("significance_threshold must be in (0,1)")
	}
	switch o.Transform {
	case "pseudo-log2", "regularized-log", "vst":
	default:
		return errors.ConfigInvalid("transform must be one of pseudo-log2, regularized-log, vst")
	}
	if o.Workers < 0 {
		return errors.ConfigInvalid("workers must be >= 0")
	}
	if o.MinGenesForTrend < 2 {
		return errors.ConfigInvalid("min_genes_for_trend must be >= 2")
	}
	if o.OutlierSD <= 0 {
		return errors.ConfigInvalid("outlier_sd must be > 0")
	}
	if o.TopVarianceGenes < 0 {
		return errors.ConfigInvalid("top_variance_genes must be >= 0")
	}
	if o.Components < 1 {
		return errors.ConfigInvalid("components must be >= 1")
	}
	return nil
}

// EffectiveWorkers resolves the worker count for the gene pool.
func (o *Options) EffectiveWorkers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Map renders the options as a flat map for config fingerprinting.
func (o *Options) Map() map[string]interface{} {
	return map[string]interface{}{
		"significance_threshold": o.SignificanceThreshold,
		"independent_filtering":  o.IndependentFiltering,
		"blind_trend":            o.BlindTrend,
		"transform":              o.Transform,
		"min_genes_for_trend":    o.MinGenesForTrend,
		"outlier_sd":             o.OutlierSD,
		"top_variance_genes":     o.TopVarianceGenes,
		"components":             o.Components,
	}
}
