package tabular

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"godiffexpr/domain/diffexpr"
)

// ResultWriter renders the per-gene result table as TSV. Missing numeric
// fields (untested or failed genes) are written as NA alongside an explicit
// status column.
type ResultWriter struct {
	w io.Writer
}

// NewResultWriter wraps an output stream.
func NewResultWriter(w io.Writer) *ResultWriter {
	return &ResultWriter{w: w}
}

// WriteResults writes the header and one row per gene in input order.
func (rw *ResultWriter) WriteResults(results []diffexpr.FitResult) error {
	if _, err := fmt.Fprintln(rw.w, "gene\tbaseMean\tlog2FoldChange\tlfcSE\tstat\tpvalue\tpadj\tstatus"); err != nil {
		return err
	}
	for _, r := range results {
		padj := "NA"
		if r.PAdj != nil {
			padj = formatValue(*r.PAdj)
		}
		_, err := fmt.Fprintf(rw.w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.GeneID,
			formatValue(r.BaseMean),
			formatValue(r.Log2FoldChange),
			formatValue(r.LfcSE),
			formatValue(r.Stat),
			formatValue(r.PValue),
			padj,
			r.Status,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// MatrixWriter renders a transformed matrix as TSV with the same layout as
// the input counts.
type MatrixWriter struct {
	w io.Writer
}

// NewMatrixWriter wraps an output stream.
func NewMatrixWriter(w io.Writer) *MatrixWriter {
	return &MatrixWriter{w: w}
}

// WriteMatrix writes a header of sample names then one row per gene.
func (mw *MatrixWriter) WriteMatrix(t *diffexpr.TransformedMatrix) error {
	if _, err := fmt.Fprint(mw.w, "gene"); err != nil {
		return err
	}
	for _, s := range t.Samples {
		if _, err := fmt.Fprintf(mw.w, "\t%s", s); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(mw.w); err != nil {
		return err
	}
	for i, g := range t.Genes {
		if _, err := fmt.Fprint(mw.w, g); err != nil {
			return err
		}
		for _, v := range t.Values[i] {
			if _, err := fmt.Fprintf(mw.w, "\t%s", formatValue(v)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(mw.w); err != nil {
			return err
		}
	}
	return nil
}

// ProjectionWriter renders PCA coordinates with a trailing explained-variance
// comment line per component.
type ProjectionWriter struct {
	w io.Writer
}

// NewProjectionWriter wraps an output stream.
func NewProjectionWriter(w io.Writer) *ProjectionWriter {
	return &ProjectionWriter{w: w}
}

// WriteProjection writes one row per sample.
func (pw *ProjectionWriter) WriteProjection(p *diffexpr.Projection) error {
	if _, err := fmt.Fprint(pw.w, "sample"); err != nil {
		return err
	}
	if len(p.Conditions) > 0 {
		if _, err := fmt.Fprint(pw.w, "\tcondition"); err != nil {
			return err
		}
	}
	for c := range p.ExplainedVariance {
		if _, err := fmt.Fprintf(pw.w, "\tPC%d", c+1); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(pw.w); err != nil {
		return err
	}

	for j, s := range p.Samples {
		if _, err := fmt.Fprint(pw.w, s); err != nil {
			return err
		}
		if len(p.Conditions) > 0 {
			if _, err := fmt.Fprintf(pw.w, "\t%s", p.Conditions[j]); err != nil {
				return err
			}
		}
		for _, v := range p.Coordinates[j] {
			if _, err := fmt.Fprintf(pw.w, "\t%s", formatValue(v)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(pw.w); err != nil {
			return err
		}
	}

	for c, ev := range p.ExplainedVariance {
		if _, err := fmt.Fprintf(pw.w, "# PC%d explained variance: %s\n", c+1, formatValue(ev)); err != nil {
			return err
		}
	}
	return nil
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}
