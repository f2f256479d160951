package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Validates(t *testing.T) {
	opts := Default()
	require.NoError(t, opts.Validate())
	assert.Equal(t, 0.05, opts.SignificanceThreshold)
	assert.True(t, opts.IndependentFiltering)
	assert.True(t, opts.BlindTrend)
	assert.Equal(t, "vst", opts.Transform)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "de.toml")
	content := `
significance_threshold = 0.1
transform = "regularized-log"
workers = 4
top_variance_genes = 100
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.1, opts.SignificanceThreshold)
	assert.Equal(t, "regularized-log", opts.Transform)
	assert.Equal(t, 4, opts.Workers)
	assert.Equal(t, 100, opts.TopVarianceGenes)
	// Untouched keys keep defaults.
	assert.Equal(t, 10, opts.MinGenesForTrend)
	assert.Equal(t, 2.0, opts.OutlierSD)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "de.toml")
	require.NoError(t, os.WriteFile(path, []byte("significance_threshold = 0.1\n"), 0o644))

	t.Setenv("DE_SIGNIFICANCE_THRESHOLD", "0.2")
	t.Setenv("DE_TRANSFORM", "pseudo-log2")
	t.Setenv("DE_INDEPENDENT_FILTERING", "false")

	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.2, opts.SignificanceThreshold)
	assert.Equal(t, "pseudo-log2", opts.Transform)
	assert.False(t, opts.IndependentFiltering)
}

func TestLoad_EveryOptionHasAnEnvOverride(t *testing.T) {
	t.Setenv("DE_SIGNIFICANCE_THRESHOLD", "0.01")
	t.Setenv("DE_INDEPENDENT_FILTERING", "false")
	t.Setenv("DE_BLIND_TREND", "false")
	t.Setenv("DE_TRANSFORM", "regularized-log")
	t.Setenv("DE_WORKERS", "2")
	t.Setenv("DE_MIN_GENES_FOR_TREND", "25")
	t.Setenv("DE_OUTLIER_SD", "3.5")
	t.Setenv("DE_TOP_VARIANCE_GENES", "200")
	t.Setenv("DE_COMPONENTS", "4")

	opts, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.01, opts.SignificanceThreshold)
	assert.False(t, opts.IndependentFiltering)
	assert.False(t, opts.BlindTrend)
	assert.Equal(t, "regularized-log", opts.Transform)
	assert.Equal(t, 2, opts.Workers)
	assert.Equal(t, 25, opts.MinGenesForTrend)
	assert.Equal(t, 3.5, opts.OutlierSD)
	assert.Equal(t, 200, opts.TopVarianceGenes)
	assert.Equal(t, 4, opts.Components)
}

func TestLoad_BadEnvValue(t *testing.T) {
	cases := map[string]string{
		"DE_WORKERS":             "many",
		"DE_MIN_GENES_FOR_TREND": "few",
		"DE_OUTLIER_SD":          "wide",
		"DE_COMPONENTS":          "two",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Options)
	}{
		{"threshold zero", func(o *Options) { o.SignificanceThreshold = 0 }},
		{"threshold one", func(o *Options) { o.SignificanceThreshold = 1 }},
		{"unknown transform", func(o *Options) { o.Transform = "sqrt" }},
		{"negative workers", func(o *Options) { o.Workers = -1 }},
		{"trend floor too low", func(o *Options) { o.MinGenesForTrend = 1 }},
		{"outlier sd zero", func(o *Options) { o.OutlierSD = 0 }},
		{"negative top genes", func(o *Options) { o.TopVarianceGenes = -5 }},
		{"zero components", func(o *Options) { o.Components = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := Default()
			tc.mutate(&opts)
			assert.Error(t, opts.Validate())
		})
	}
}

func TestEffectiveWorkers(t *testing.T) {
	opts := Default()
	opts.Workers = 3
	assert.Equal(t, 3, opts.EffectiveWorkers())

	opts.Workers = 0
	assert.Greater(t, opts.EffectiveWorkers(), 0)
}

func TestMap_CoversFingerprintedKeys(t *testing.T) {
	opts := Default()
	m := opts.Map()
	for _, key := range []string{
		"significance_threshold", "independent_filtering", "blind_trend",
		"transform", "min_genes_for_trend", "outlier_sd",
		"top_variance_genes", "components",
	} {
		assert.Contains(t, m, key)
	}
}
