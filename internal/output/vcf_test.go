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

const calledVCF = `##fileformat=VCFv4.2
##INFO=<ID=DP,Number=1,Type=Integer,Description="Raw read depth">
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	mut.bam
chr5	1200	.	C	T	60	.	DP=30	GT	1/1
`

func TestVCFWriter_Header(t *testing.T) {
	cs, err := vcf.ReadCallset(strings.NewReader(calledVCF))
	require.NoError(t, err)

	var buf bytes.Buffer
	w := NewVCFWriter(&buf, cs.Header)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Flush())

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "##fileformat=VCFv4.2"))
	for _, id := range []string{"DP", InfoPeak, InfoPeakDensity, InfoPeakRank, InfoImpact, "CSQ"} {
		assert.Contains(t, out, "##INFO=<ID="+id+",", id)
	}
	assert.Contains(t, out, "Format: Allele|Consequence|IMPACT|SYMBOL")
	assert.NotContains(t, out, "mut.bam", "output is sites-only")

	// The caller's header is left untouched.
	_, ok := cs.Header.Infos[InfoPeak]
	assert.False(t, ok)
}

func TestVCFWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	w := NewVCFWriter(&buf, nil)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Write(tp53Candidate()))
	require.NoError(t, w.Flush())

	// The writer's own output round-trips through the reader and the
	// CSQ parser.
	cs, err := vcf.ReadCallset(&buf)
	require.NoError(t, err)
	require.Equal(t, 1, cs.Len())

	v := cs.Variants[0]
	assert.Equal(t, "chr5:1200:C:T", v.Key())
	assert.Equal(t, "30", v.InfoValue("DP"))
	assert.Equal(t, "peak1", v.InfoValue(InfoPeak))
	assert.Equal(t, "0.0125", v.InfoValue(InfoPeakDensity))
	assert.Equal(t, "1", v.InfoValue(InfoPeakRank))
	assert.Equal(t, "MODERATE", v.InfoValue(InfoImpact))

	format := annotate.ParseFormat(cs.Header.Infos["CSQ"].Description)
	anns := annotate.ParseEntries(v.InfoValue("CSQ"), format)
	require.Len(t, anns, 2)
	assert.Equal(t, "tp53", anns[1].Gene)
	assert.Equal(t, "p.Arg4Cys", anns[1].HGVSp)
	assert.Equal(t, "MODERATE", annotate.MostSevere(anns))
}

func TestVCFWriter_NaNDensityOmitted(t *testing.T) {
	var buf bytes.Buffer
	w := NewVCFWriter(&buf, nil)
	c := &rank.Candidate{
		Variant: &vcf.Variant{Chrom: "chr5", Pos: 1800, Ref: "GA", Alt: "G", RawInfo: "DP=22;CSQ=old"},
		Score:   math.NaN(),
		Rank:    2,
		Peak:    "peak1",
	}
	require.NoError(t, w.Write(c), "header is written on first record")
	require.NoError(t, w.Flush())

	cs, err := vcf.ReadCallset(&buf)
	require.NoError(t, err)
	require.Equal(t, 1, cs.Len())
	v := cs.Variants[0]
	assert.False(t, v.HasInfo(InfoPeakDensity))
	assert.False(t, v.HasInfo(InfoImpact))
	assert.False(t, v.HasInfo("CSQ"), "stale CSQ is stripped")
	assert.Equal(t, "2", v.InfoValue(InfoPeakRank))
}

func TestStripInfo(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", ""},
		{".", ""},
		{"DP=10", "DP=10"},
		{"DP=10;CSQ=T|x", "DP=10"},
		{"CSQ=T|x;DP=10;ANN=A|y;INDEL", "DP=10;INDEL"},
		{"CSQX=1;DP=2", "CSQX=1;DP=2"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripInfo(tt.raw, "CSQ", "ANN"), tt.raw)
	}
}

func TestFormatCSQ_Escapes(t *testing.T) {
	anns := []*annotate.Annotation{{Allele: "T", Consequence: "splice_region_variant,intron_variant", HGVSp: "p.(=)"}}
	got := formatCSQ(anns)
	assert.Equal(t, 1, len(strings.Split(got, ",")))
	assert.Equal(t, 10, len(strings.Split(got, "|")))
}
