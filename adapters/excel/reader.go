// Package excel reads count matrices from .xlsx workbooks. Layout matches the
// tabular adapter: sample names across the first row, gene identifiers down
// the first column, counts in the body.
package excel

import (
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"godiffexpr/domain/core"
	"godiffexpr/domain/counts"
	"godiffexpr/internal/errors"
)

// CountReader reads the first sheet of a workbook as a count matrix.
type CountReader struct {
	path  string
	sheet string
}

// NewCountReader creates a reader for the given workbook. An empty sheet name
// selects the first sheet.
func NewCountReader(path, sheet string) *CountReader {
	return &CountReader{path: path, sheet: sheet}
}

// ReadCounts parses and validates the matrix.
func (r *CountReader) ReadCounts() (*counts.Matrix, error) {
	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		return nil, errors.ParseError("workbook not found: " + r.path)
	}

	f, err := excelize.OpenFile(r.path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open workbook %s", r.path)
	}
	defer f.Close()

	sheet := r.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet %s", sheet)
	}
	if len(rows) < 2 || len(rows[0]) < 2 {
		return nil, errors.ParseError("workbook needs a header row and at least one gene row")
	}

	header := rows[0]
	samples := make([]core.SampleName, 0, len(header)-1)
	for _, h := range header[1:] {
		s, err := core.ParseSampleName(strings.TrimSpace(h))
		if err != nil {
			return nil, errors.Wrap(err, "invalid sample name in workbook header")
		}
		samples = append(samples, s)
	}

	genes := make([]core.GeneID, 0, len(rows)-1)
	values := make([][]float64, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue // trailing blank rows are common in workbooks
		}
		g, err := core.ParseGeneID(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, errors.Wrap(err, "invalid gene identifier in workbook")
		}
		genes = append(genes, g)

		vals := make([]float64, len(samples))
		for j := range samples {
			cell := ""
			if j+1 < len(row) {
				cell = strings.TrimSpace(row[j+1])
			}
			if cell == "" {
				vals[j] = 0
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.ParseError("gene " + string(g) + ": " + cell + " is not a count")
			}
			vals[j] = v
		}
		values = append(values, vals)
	}

	return counts.NewMatrix(genes, samples, values)
}
