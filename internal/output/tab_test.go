package output

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/mutpeak/internal/annotate"
	"github.com/inodb/mutpeak/internal/rank"
	"github.com/inodb/mutpeak/internal/vcf"
)

func tp53Candidate() *rank.Candidate {
	return &rank.Candidate{
		Variant: &vcf.Variant{
			Chrom:   "chr5",
			Pos:     1200,
			ID:      ".",
			Ref:     "C",
			Alt:     "T",
			Qual:    60,
			Filter:  ".",
			RawInfo: "DP=30",
		},
		Annotations: []*annotate.Annotation{
			{Allele: "T", Consequence: "upstream_gene_variant", Impact: "MODIFIER", Gene: "mdm2", GeneID: "ENSDARG2", FeatureType: "Transcript", Feature: "ENSDART2"},
			{Allele: "T", Consequence: "missense_variant", Impact: "MODERATE", Gene: "tp53", GeneID: "ENSDARG1", FeatureType: "Transcript", Feature: "ENSDART1", Biotype: "protein_coding", HGVSc: "c.10C>T", HGVSp: "p.Arg4Cys"},
		},
		Impact: "MODERATE",
		Score:  0.0125,
		Rank:   1,
		Peak:   "peak1",
	}
}

func TestTabWriter_WriteHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Flush())

	header := buf.String()
	for _, col := range []string{"#Rank", "Peak", "Location", "Density", "IMPACT", "SYMBOL", "HGVSp"} {
		assert.Contains(t, header, col)
	}
}

func TestTabWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Write(tp53Candidate()))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)

	fields := strings.Split(lines[1], "\t")
	require.Len(t, fields, 16)
	assert.Equal(t, "1", fields[0])
	assert.Equal(t, "peak1", fields[1])
	assert.Equal(t, "chr5:1200", fields[2])
	assert.Equal(t, "C", fields[3])
	assert.Equal(t, "T", fields[4])
	assert.Equal(t, "60", fields[5])
	assert.Equal(t, "0.0125", fields[6])
	assert.Equal(t, "MODERATE", fields[7])
	assert.Equal(t, "missense_variant", fields[8])
	assert.Equal(t, "tp53", fields[9])
	assert.Equal(t, "ENSDARG1", fields[10])
	assert.Equal(t, "ENSDART1", fields[11])
	assert.Equal(t, "protein_coding", fields[12])
	assert.Equal(t, "c.10C>T", fields[13])
	assert.Equal(t, "p.Arg4Cys", fields[14])
	assert.Equal(t, "2", fields[15])
}

func TestTabWriter_EmptyValues(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	c := &rank.Candidate{
		Variant: &vcf.Variant{Chrom: "chr5", Pos: 1800, Ref: "GA", Alt: "G"},
		Score:   math.NaN(),
		Rank:    3,
		Peak:    "peak1",
	}
	require.NoError(t, w.Write(c))
	require.NoError(t, w.Flush())

	fields := strings.Split(strings.TrimRight(buf.String(), "\n"), "\t")
	require.Len(t, fields, 16)
	assert.Equal(t, "-", fields[5], "missing QUAL")
	assert.Equal(t, "-", fields[6], "NaN density")
	for i := 7; i <= 14; i++ {
		assert.Equal(t, "-", fields[i], "column %d", i)
	}
	assert.Equal(t, "0", fields[15])
}

func TestNewWriter(t *testing.T) {
	var buf bytes.Buffer
	for format, want := range map[string]any{
		"":     &TabWriter{},
		"tab":  &TabWriter{},
		"VCF":  &VCFWriter{},
		"json": &JSONWriter{},
	} {
		w, err := NewWriter(format, &buf, nil)
		require.NoError(t, err, format)
		assert.IsType(t, want, w, format)
	}

	_, err := NewWriter("maf", &buf, nil)
	assert.ErrorContains(t, err, "unknown output format")
}
