package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Construction/validation errors (fatal, abort before any statistics)
	ErrDuplicateGene    = errors.New("duplicate gene identifier")
	ErrDuplicateSample  = errors.New("duplicate sample name")
	ErrNegativeCount    = errors.New("negative count value")
	ErrDesignMismatch   = errors.New("design does not match matrix samples")
	ErrReferenceMissing = errors.New("reference level not among observed conditions")
	ErrAllZeroMatrix    = errors.New("no gene with positive geometric mean")
	ErrEmptyMatrix      = errors.New("count matrix has no genes or no samples")
	ErrUnknownTransform = errors.New("unknown transform kind")

	// Degenerate-input conditions (non-fatal, surfaced as warnings or flags)
	ErrDegenerateSVD    = errors.New("svd failed to converge on degenerate input")
	ErrTrendFallback    = errors.New("too few genes for dispersion trend fit")
	ErrInsufficientData = errors.New("insufficient data for analysis")
)

// Error constructors with context
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

func NewDuplicateGeneError(geneID string) error {
	return fmt.Errorf("%w: %s", ErrDuplicateGene, geneID)
}

func NewDuplicateSampleError(sample string) error {
	return fmt.Errorf("%w: %s", ErrDuplicateSample, sample)
}

func NewNegativeCountError(geneID, sample string, value float64) error {
	return fmt.Errorf("%w: gene %s sample %s value %g", ErrNegativeCount, geneID, sample, value)
}

func NewDesignMismatchError(detail string) error {
	return fmt.Errorf("%w: %s", ErrDesignMismatch, detail)
}

// Error checking helpers
func IsFatalInputError(err error) bool {
	return errors.Is(err, ErrDuplicateGene) ||
		errors.Is(err, ErrDuplicateSample) ||
		errors.Is(err, ErrNegativeCount) ||
		errors.Is(err, ErrDesignMismatch) ||
		errors.Is(err, ErrReferenceMissing) ||
		errors.Is(err, ErrAllZeroMatrix) ||
		errors.Is(err, ErrEmptyMatrix)
}

func IsDegenerateInputError(err error) bool {
	return errors.Is(err, ErrDegenerateSVD) ||
		errors.Is(err, ErrTrendFallback) ||
		errors.Is(err, ErrInsufficientData)
}
