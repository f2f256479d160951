// Command cli runs the differential-expression engine against tabular or
// Excel count matrices.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"godiffexpr/adapters/excel"
	"godiffexpr/adapters/tabular"
	"godiffexpr/app"
	"godiffexpr/domain/counts"
	"godiffexpr/domain/diffexpr"
	"godiffexpr/internal/config"
	apperrors "godiffexpr/internal/errors"
	"godiffexpr/ports"
)

var (
	flagConfig     string
	flagCounts     string
	flagDesign     string
	flagReference  string
	flagOutput     string
	flagTransform  string
	flagNoFilter   bool
	flagBlind      bool
	flagAlpha      float64
	flagTop        int
	flagComponents int
)

func main() {
	// .env is optional; environment wins over file values either way.
	_ = godotenv.Load()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "diffexpr",
	})
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if parsed, err := log.ParseLevel(lvl); err == nil {
			logger.SetLevel(parsed)
		}
	}

	root := &cobra.Command{
		Use:           "de",
		Short:         "Count-based differential-expression statistics engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "optional TOML config file")
	root.PersistentFlags().StringVar(&flagCounts, "counts", "", "count matrix file (.tsv, .csv or .xlsx)")
	root.PersistentFlags().StringVar(&flagDesign, "design", "", "sample,condition design file")
	root.PersistentFlags().StringVar(&flagReference, "reference", "", "reference (baseline) condition level")
	root.PersistentFlags().StringVarP(&flagOutput, "output", "o", "-", "output path, - for stdout")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Fit the NB GLM per gene and report Wald-test results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), logger)
		},
	}
	runCmd.Flags().BoolVar(&flagNoFilter, "no-filter", false, "disable independent filtering")
	runCmd.Flags().Float64Var(&flagAlpha, "alpha", 0, "FDR significance threshold (overrides config)")

	transformCmd := &cobra.Command{
		Use:   "transform",
		Short: "Write a variance-stabilized matrix",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransform(cmd.Context(), logger)
		},
	}
	transformCmd.Flags().StringVar(&flagTransform, "method", "", "pseudo-log2, regularized-log or vst (overrides config)")
	transformCmd.Flags().BoolVar(&flagBlind, "blind", true, "estimate the dispersion trend blind to condition labels")

	pcaCmd := &cobra.Command{
		Use:   "pca",
		Short: "Project samples onto principal components",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPCA(cmd.Context(), logger)
		},
	}
	pcaCmd.Flags().IntVar(&flagTop, "top", 0, "top-variance gene subset size (overrides config)")
	pcaCmd.Flags().IntVar(&flagComponents, "components", 0, "number of components (overrides config)")

	root.AddCommand(runCmd, transformCmd, pcaCmd)

	if err := root.Execute(); err != nil {
		logger.Error("command failed", "code", apperrors.GetCode(err), "err", err)
		os.Exit(1)
	}
}

func loadOptions() (config.Options, error) {
	opts, err := config.Load(flagConfig)
	if err != nil {
		return opts, err
	}
	if flagAlpha > 0 {
		opts.SignificanceThreshold = flagAlpha
	}
	if flagNoFilter {
		opts.IndependentFiltering = false
	}
	if flagTransform != "" {
		opts.Transform = flagTransform
	}
	opts.BlindTrend = flagBlind
	if flagTop > 0 {
		opts.TopVarianceGenes = flagTop
	}
	if flagComponents > 0 {
		opts.Components = flagComponents
	}
	return opts, opts.Validate()
}

func loadModel() (*counts.Matrix, *counts.Design, error) {
	if flagCounts == "" || flagDesign == "" || flagReference == "" {
		return nil, nil, fmt.Errorf("--counts, --design and --reference are required")
	}

	var source ports.CountSource
	if strings.EqualFold(filepath.Ext(flagCounts), ".xlsx") {
		source = excel.NewCountReader(flagCounts, "")
	} else {
		source = tabular.NewCountReader(flagCounts)
	}
	matrix, err := source.ReadCounts()
	if err != nil {
		return nil, nil, err
	}

	var designSource ports.DesignSource = tabular.NewDesignReader(flagDesign, flagReference)
	design, err := designSource.ReadDesign(matrix)
	if err != nil {
		return nil, nil, err
	}
	return matrix, design, nil
}

func openOutput() (*os.File, func(), error) {
	if flagOutput == "" || flagOutput == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(flagOutput)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func runPipeline(ctx context.Context, logger *log.Logger) error {
	opts, err := loadOptions()
	if err != nil {
		return err
	}
	matrix, design, err := loadModel()
	if err != nil {
		return err
	}

	service := app.NewPipelineService(logger, opts)
	result, err := service.Run(ctx, matrix, design)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput()
	if err != nil {
		return err
	}
	defer closeOut()
	var sink ports.ResultSink = tabular.NewResultWriter(out)
	return sink.WriteResults(result.Results)
}

func runTransform(ctx context.Context, logger *log.Logger) error {
	opts, err := loadOptions()
	if err != nil {
		return err
	}
	matrix, design, err := loadModel()
	if err != nil {
		return err
	}
	kind, err := diffexpr.ParseTransformKind(opts.Transform)
	if err != nil {
		return err
	}

	service := app.NewPipelineService(logger, opts)
	t, err := service.Transform(ctx, matrix, design, kind)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput()
	if err != nil {
		return err
	}
	defer closeOut()
	var sink ports.MatrixSink = tabular.NewMatrixWriter(out)
	return sink.WriteMatrix(t)
}

func runPCA(ctx context.Context, logger *log.Logger) error {
	opts, err := loadOptions()
	if err != nil {
		return err
	}
	matrix, design, err := loadModel()
	if err != nil {
		return err
	}

	service := app.NewPipelineService(logger, opts)
	proj, err := service.Project(ctx, matrix, design)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput()
	if err != nil {
		return err
	}
	defer closeOut()
	var sink ports.ProjectionSink = tabular.NewProjectionWriter(out)
	return sink.WriteProjection(proj)
}
