package tabular

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"godiffexpr/domain/core"
	"godiffexpr/domain/diffexpr"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCountReader_TSV(t *testing.T) {
	path := writeTemp(t, "counts.tsv",
		"gene\ts1\ts2\ts3\n"+
			"g1\t10\t20\t30\n"+
			"g2\t0\t5\t0\n")

	m, err := NewCountReader(path).ReadCounts()
	require.NoError(t, err)

	assert.Equal(t, []core.GeneID{"g1", "g2"}, m.Genes())
	assert.Equal(t, []core.SampleName{"s1", "s2", "s3"}, m.Samples())
	assert.Equal(t, []float64{10, 20, 30}, m.Row(0))
	assert.Equal(t, []float64{0, 5, 0}, m.Row(1))
}

func TestCountReader_CSVDelimiterFromExtension(t *testing.T) {
	path := writeTemp(t, "counts.csv",
		"gene,s1,s2\n"+
			"g1,1,2\n")

	m, err := NewCountReader(path).ReadCounts()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, m.Row(0))
}

func TestCountReader_Errors(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"header only", "gene\ts1\n"},
		{"ragged row", "gene\ts1\ts2\ng1\t1\n"},
		{"non-numeric cell", "gene\ts1\ng1\tabc\n"},
		{"negative count", "gene\ts1\ng1\t-3\n"},
		{"fractional count", "gene\ts1\ng1\t2.5\n"},
		{"duplicate gene", "gene\ts1\ng1\t1\ng1\t2\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTemp(t, "bad.tsv", tc.content)
			_, err := NewCountReader(path).ReadCounts()
			assert.Error(t, err)
		})
	}
}

func TestCountReader_MissingFile(t *testing.T) {
	_, err := NewCountReader(filepath.Join(t.TempDir(), "nope.tsv")).ReadCounts()
	assert.Error(t, err)
}

func TestDesignReader_RoundTrip(t *testing.T) {
	counts := writeTemp(t, "counts.tsv",
		"gene\ta1\ta2\tb1\n"+
			"g1\t1\t2\t3\n")
	m, err := NewCountReader(counts).ReadCounts()
	require.NoError(t, err)

	design := writeTemp(t, "design.csv",
		"sample,condition\n"+
			"a1,ctrl\n"+
			"a2,ctrl\n"+
			"b1,treat\n")

	d, err := NewDesignReader(design, "ctrl").ReadDesign(m)
	require.NoError(t, err)
	assert.Equal(t, core.Condition("ctrl"), d.Reference())
	assert.Equal(t, []core.Condition{"ctrl", "treat"}, d.Levels())
	assert.Equal(t, core.Condition("treat"), d.Condition("b1"))
}

func TestDesignReader_DuplicateSample(t *testing.T) {
	counts := writeTemp(t, "counts.tsv", "gene\ta1\ng1\t1\n")
	m, err := NewCountReader(counts).ReadCounts()
	require.NoError(t, err)

	design := writeTemp(t, "design.csv",
		"sample,condition\na1,ctrl\na1,treat\n")
	_, err = NewDesignReader(design, "ctrl").ReadDesign(m)
	assert.Error(t, err)
}

func TestResultWriter_Golden(t *testing.T) {
	padjA := 4e-10
	padjB := 0.9
	results := []diffexpr.FitResult{
		{
			GeneID:         "geneA",
			BaseMean:       55,
			Log2FoldChange: -3.25,
			LfcSE:          0.5,
			Stat:           -6.5,
			PValue:         1e-10,
			PAdj:           &padjA,
			Status:         diffexpr.StatusOK,
		},
		{
			GeneID:         "geneB",
			BaseMean:       50,
			Log2FoldChange: 0.125,
			LfcSE:          0.5,
			Stat:           0.25,
			PValue:         0.8,
			PAdj:           &padjB,
			Status:         diffexpr.StatusOK,
		},
		{
			GeneID:         "geneC",
			BaseMean:       0,
			Log2FoldChange: math.NaN(),
			LfcSE:          math.NaN(),
			Stat:           math.NaN(),
			PValue:         math.NaN(),
			PAdj:           nil,
			Status:         diffexpr.StatusZeroCounts,
		},
		{
			GeneID:         "geneD",
			BaseMean:       0.5,
			Log2FoldChange: 1.5,
			LfcSE:          2,
			Stat:           0.75,
			PValue:         0.45,
			PAdj:           nil,
			Status:         diffexpr.StatusLowCounts,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewResultWriter(&buf).WriteResults(results))

	g := goldie.New(t)
	g.Assert(t, "results", buf.Bytes())
}

func TestMatrixWriter(t *testing.T) {
	tm := &diffexpr.TransformedMatrix{
		Kind:    diffexpr.TransformPseudoLog2,
		Genes:   []core.GeneID{"g1", "g2"},
		Samples: []core.SampleName{"s1", "s2"},
		Values:  [][]float64{{1.5, 2}, {0, 3.25}},
	}

	var buf bytes.Buffer
	require.NoError(t, NewMatrixWriter(&buf).WriteMatrix(tm))

	want := "gene\ts1\ts2\n" +
		"g1\t1.5\t2\n" +
		"g2\t0\t3.25\n"
	assert.Equal(t, want, buf.String())
}

func TestProjectionWriter(t *testing.T) {
	p := &diffexpr.Projection{
		Samples:           []core.SampleName{"s1", "s2"},
		Conditions:        []core.Condition{"ctrl", "treat"},
		Coordinates:       [][]float64{{1.5, -0.5}, {-1.5, 0.5}},
		ExplainedVariance: []float64{0.75, 0.25},
	}

	var buf bytes.Buffer
	require.NoError(t, NewProjectionWriter(&buf).WriteProjection(p))

	want := "sample\tcondition\tPC1\tPC2\n" +
		"s1\tctrl\t1.5\t-0.5\n" +
		"s2\ttreat\t-1.5\t0.5\n" +
		"# PC1 explained variance: 0.75\n" +
		"# PC2 explained variance: 0.25\n"
	assert.Equal(t, want, buf.String())
}
