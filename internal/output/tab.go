// Package output provides candidate output formatters.
package output

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/carbocation/vcfgo"

	"github.com/inodb/mutpeak/internal/rank"
)

// Output format names.
const (
	FormatTab  = "tab"
	FormatVCF  = "vcf"
	FormatJSON = "json"
)

// CandidateWriter writes ranked candidates.
type CandidateWriter interface {
	WriteHeader() error
	Write(c *rank.Candidate) error
	Flush() error
}

// NewWriter returns the writer for format. header is the caller's VCF
// header and is only used by the VCF format; it may be nil.
func NewWriter(format string, w io.Writer, header *vcfgo.Header) (CandidateWriter, error) {
	switch strings.ToLower(format) {
	case FormatTab, "":
		return NewTabWriter(w), nil
	case FormatVCF:
		return NewVCFWriter(w, header), nil
	case FormatJSON:
		return NewJSONWriter(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want tab, vcf or json)", format)
	}
}

// TabWriter writes candidates in tab-delimited format, one line per
// candidate, using the annotation that carries the candidate's impact.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"#Rank",
			"Peak",
			"Location",
			"REF",
			"ALT",
			"QUAL",
			"Density",
			"IMPACT",
			"Consequence",
			"SYMBOL",
			"Gene",
			"Feature",
			"BIOTYPE",
			"HGVSc",
			"HGVSp",
			"Annotations",
		},
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single candidate.
func (tw *TabWriter) Write(c *rank.Candidate) error {
	v := c.Variant
	location := fmt.Sprintf("%s:%d", v.Chrom, v.Pos)

	var consequence, symbol, gene, feature, biotype, hgvsc, hgvsp string
	if ann := c.Worst(); ann != nil {
		consequence = ann.Consequence
		symbol = ann.Gene
		gene = ann.GeneID
		feature = ann.Feature
		biotype = ann.Biotype
		hgvsc = ann.HGVSc
		hgvsp = ann.HGVSp
	}

	values := []string{
		strconv.Itoa(c.Rank),
		dash(c.Peak),
		location,
		v.Ref,
		v.Alt,
		formatFloat(v.Qual),
		formatScore(c.Score),
		dash(c.Impact),
		dash(consequence),
		dash(symbol),
		dash(gene),
		dash(feature),
		dash(biotype),
		dash(hgvsc),
		dash(hgvsp),
		strconv.Itoa(len(c.Annotations)),
	}

	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatFloat(f float64) string {
	if f == 0 {
		return "-"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// formatScore renders a density score; undefined scores print as "-".
func formatScore(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "-"
	}
	return strconv.FormatFloat(f, 'g', 6, 64)
}
