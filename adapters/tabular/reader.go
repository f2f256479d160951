// Package tabular reads count matrices and designs from delimited text files
// and writes the result tables the engine produces.
package tabular

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"godiffexpr/domain/core"
	"godiffexpr/domain/counts"
	"godiffexpr/internal/errors"
)

// CountReader reads a gene-by-sample count matrix from a TSV or CSV file.
// The first header cell is ignored; remaining header cells are sample names.
// Each data row starts with the gene identifier followed by one count per
// sample.
type CountReader struct {
	path string
}

// NewCountReader creates a reader for the given file path; the delimiter is
// inferred from the extension (.csv comma, anything else tab).
func NewCountReader(path string) *CountReader {
	return &CountReader{path: path}
}

// ReadCounts parses and validates the matrix.
func (r *CountReader) ReadCounts() (*counts.Matrix, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open counts file %s", r.path)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comma = delimiterFor(r.path)
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse counts file %s", r.path)
	}
	if len(rows) < 2 {
		return nil, errors.ParseError("counts file needs a header row and at least one gene row")
	}

	header := rows[0]
	if len(header) < 2 {
		return nil, errors.ParseError("counts header needs a gene column and at least one sample column")
	}
	samples := make([]core.SampleName, 0, len(header)-1)
	for _, h := range header[1:] {
		s, err := core.ParseSampleName(strings.TrimSpace(h))
		if err != nil {
			return nil, errors.Wrap(err, "invalid sample name in counts header")
		}
		samples = append(samples, s)
	}

	genes := make([]core.GeneID, 0, len(rows)-1)
	values := make([][]float64, 0, len(rows)-1)
	for lineNo, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, errors.ParseError(
				fmt.Sprintf("row %d has %d fields, expected %d", lineNo+2, len(row), len(header)))
		}
		g, err := core.ParseGeneID(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid gene identifier on row %d", lineNo+2)
		}
		genes = append(genes, g)

		vals := make([]float64, len(samples))
		for j, cell := range row[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, errors.ParseError(
					fmt.Sprintf("gene %s sample %s: %q is not a count", g, samples[j], cell))
			}
			vals[j] = v
		}
		values = append(values, vals)
	}

	return counts.NewMatrix(genes, samples, values)
}

// DesignReader reads a two-column sample,condition file with a header row.
type DesignReader struct {
	path      string
	reference core.Condition
}

// NewDesignReader creates a design reader with an explicitly declared
// reference level.
func NewDesignReader(path string, reference string) *DesignReader {
	return &DesignReader{path: path, reference: core.Condition(reference)}
}

// ReadDesign parses the mapping and validates it against the matrix columns.
func (r *DesignReader) ReadDesign(m *counts.Matrix) (*counts.Design, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open design file %s", r.path)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comma = delimiterFor(r.path)
	cr.FieldsPerRecord = 2

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse design file %s", r.path)
	}
	if len(rows) < 2 {
		return nil, errors.ParseError("design file needs a header row and one row per sample")
	}

	conditions := make(map[core.SampleName]core.Condition, len(rows)-1)
	for _, row := range rows[1:] {
		sample := core.SampleName(strings.TrimSpace(row[0]))
		label := core.Condition(strings.TrimSpace(row[1]))
		if _, dup := conditions[sample]; dup {
			return nil, errors.ParseError(fmt.Sprintf("sample %s listed twice in design", sample))
		}
		conditions[sample] = label
	}

	return counts.NewDesign(m, conditions, r.reference)
}

func delimiterFor(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ','
	}
	return '\t'
}
