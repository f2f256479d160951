package ports

import (
	"godiffexpr/domain/diffexpr"
)

// ResultSink receives the per-gene result table.
type ResultSink interface {
	WriteResults(results []diffexpr.FitResult) error
}

// MatrixSink receives a transformed matrix for visualization or clustering.
type MatrixSink interface {
	WriteMatrix(t *diffexpr.TransformedMatrix) error
}

// ProjectionSink receives PCA coordinates and explained-variance fractions.
type ProjectionSink interface {
	WriteProjection(p *diffexpr.Projection) error
}
