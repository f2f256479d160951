// Package ports declares the interfaces through which external collaborators
// feed data into and consume results from the statistics engine. Parsing,
// annotation and rendering live behind these boundaries.
package ports

import (
	"godiffexpr/domain/counts"
)

// CountSource produces a validated count matrix. Callers strip any non-count
// columns (coordinates, annotations) before construction.
type CountSource interface {
	ReadCounts() (*counts.Matrix, error)
}

// DesignSource produces the sample-to-condition mapping and the declared
// reference level for a matrix.
type DesignSource interface {
	ReadDesign(m *counts.Matrix) (*counts.Design, error)
}
