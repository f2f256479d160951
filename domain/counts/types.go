package counts

import (
	"fmt"
	"math"

	"godiffexpr/domain/core"
)

// Matrix is an immutable gene-by-sample matrix of non-negative integer read
// counts. Counts are stored as float64 row-major but validated to be
// non-negative integers at construction; dimensions are fixed afterwards.
type Matrix struct {
	genes   []core.GeneID
	samples []core.SampleName
	values  [][]float64 // genes x samples

	geneIndex   map[core.GeneID]int
	sampleIndex map[core.SampleName]int
	hash        core.MatrixHash
}

// NewMatrix validates and constructs a count matrix. Gene and sample
// identifiers must be unique, every row must have one value per sample, and
// every value must be a non-negative integer.
func NewMatrix(genes []core.GeneID, samples []core.SampleName, values [][]float64) (*Matrix, error) {
	if len(genes) == 0 || len(samples) == 0 {
		return nil, core.ErrEmptyMatrix
	}
	if len(values) != len(genes) {
		return nil, core.NewValidationError("counts", fmt.Sprintf("have %d rows, expected %d", len(values), len(genes)))
	}

	geneIndex := make(map[core.GeneID]int, len(genes))
	for i, g := range genes {
		if _, dup := geneIndex[g]; dup {
			return nil, core.NewDuplicateGeneError(string(g))
		}
		geneIndex[g] = i
	}
	sampleIndex := make(map[core.SampleName]int, len(samples))
	for j, s := range samples {
		if _, dup := sampleIndex[s]; dup {
			return nil, core.NewDuplicateSampleError(string(s))
		}
		sampleIndex[s] = j
	}

	copied := make([][]float64, len(values))
	for i, row := range values {
		if len(row) != len(samples) {
			return nil, core.NewValidationError("counts",
				fmt.Sprintf("gene %s has %d values, expected %d", genes[i], len(row), len(samples)))
		}
		copied[i] = make([]float64, len(row))
		for j, v := range row {
			if v < 0 {
				return nil, core.NewNegativeCountError(string(genes[i]), string(samples[j]), v)
			}
			if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
				return nil, core.NewValidationError("counts",
					fmt.Sprintf("gene %s sample %s value %g is not a non-negative integer", genes[i], samples[j], v))
			}
			copied[i][j] = v
		}
	}

	genesCopy := append([]core.GeneID(nil), genes...)
	samplesCopy := append([]core.SampleName(nil), samples...)

	return &Matrix{
		genes:       genesCopy,
		samples:     samplesCopy,
		values:      copied,
		geneIndex:   geneIndex,
		sampleIndex: sampleIndex,
		hash:        core.ComputeMatrixHash(genesCopy, samplesCopy, copied),
	}, nil
}

// Genes returns the gene identifiers in row order.
func (m *Matrix) Genes() []core.GeneID {
	return append([]core.GeneID(nil), m.genes...)
}

// Samples returns the sample names in column order.
func (m *Matrix) Samples() []core.SampleName {
	return append([]core.SampleName(nil), m.samples...)
}

// NumGenes returns the row count.
func (m *Matrix) NumGenes() int { return len(m.genes) }

// NumSamples returns the column count.
func (m *Matrix) NumSamples() int { return len(m.samples) }

// Row returns a copy of the counts for the gene at row i.
func (m *Matrix) Row(i int) []float64 {
	return append([]float64(nil), m.values[i]...)
}

// At returns the count for gene row i, sample column j.
func (m *Matrix) At(i, j int) float64 { return m.values[i][j] }

// GeneIndex returns the row index of a gene identifier.
func (m *Matrix) GeneIndex(g core.GeneID) (int, bool) {
	i, ok := m.geneIndex[g]
	return i, ok
}

// SampleIndex returns the column index of a sample name.
func (m *Matrix) SampleIndex(s core.SampleName) (int, bool) {
	j, ok := m.sampleIndex[s]
	return j, ok
}

// Hash returns the deterministic content fingerprint.
func (m *Matrix) Hash() core.MatrixHash { return m.hash }
