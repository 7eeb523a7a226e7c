package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/carbocation/vcfgo"

	"github.com/inodb/mutpeak/internal/annotate"
	"github.com/inodb/mutpeak/internal/rank"
	"github.com/inodb/mutpeak/internal/vcf"
)

// CSQ sub-field names in VEP convention order.
var csqFields = []string{
	"Allele",
	"Consequence",
	"IMPACT",
	"SYMBOL",
	"Gene",
	"Feature_type",
	"Feature",
	"BIOTYPE",
	"HGVSc",
	"HGVSp",
}

// INFO keys added to candidate records.
const (
	InfoPeak        = "PEAK"
	InfoPeakDensity = "PEAK_DENSITY"
	InfoPeakRank    = "PEAK_RANK"
	InfoImpact      = "IMPACT"
)

// VCFWriter writes candidates as a sites-only VCF. Each record carries the
// peak name, density, rank and impact as INFO fields, plus the predictor's
// annotations re-encoded as CSQ.
type VCFWriter struct {
	w      *bufio.Writer
	header *vcfgo.Header
	vw     *vcfgo.Writer
}

// NewVCFWriter creates a new VCF output writer. header is the caller's
// header (nil for a minimal one); samples are dropped.
func NewVCFWriter(w io.Writer, header *vcfgo.Header) *VCFWriter {
	h := vcf.SitesOnlyHeader(header)
	for _, info := range []*vcfgo.Info{
		{Id: InfoPeak, Number: "1", Type: "String", Description: "Peak the variant was called in"},
		{Id: InfoPeakDensity, Number: "1", Type: "Float", Description: "Peak density at the variant midpoint"},
		{Id: InfoPeakRank, Number: "1", Type: "Integer", Description: "Rank within the peak by descending density"},
		{Id: InfoImpact, Number: "1", Type: "String", Description: "Most severe predicted impact"},
		{Id: annotate.InfoCSQ, Number: ".", Type: "String", Description: "Consequence annotations. Format: " + strings.Join(csqFields, "|")},
	} {
		h.Infos[info.Id] = info
	}
	return &VCFWriter{w: bufio.NewWriter(w), header: h}
}

// WriteHeader writes the VCF header.
func (vw *VCFWriter) WriteHeader() error {
	wr, err := vcfgo.NewWriter(vw.w, vw.header)
	if err != nil {
		return fmt.Errorf("write vcf header: %w", err)
	}
	vw.vw = wr
	return nil
}

// Write writes a single candidate record.
func (vw *VCFWriter) Write(c *rank.Candidate) error {
	if vw.vw == nil {
		if err := vw.WriteHeader(); err != nil {
			return err
		}
	}

	v := *c.Variant
	v.RawInfo = stripInfo(v.RawInfo, annotate.InfoCSQ, annotate.InfoANN)
	rec := v.Record(vw.header)

	info := rec.Info()
	sets := []struct {
		key   string
		value string
	}{
		{InfoPeak, c.Peak},
		{InfoPeakDensity, formatScore(c.Score)},
		{InfoPeakRank, strconv.Itoa(c.Rank)},
		{InfoImpact, c.Impact},
		{annotate.InfoCSQ, formatCSQ(c.Annotations)},
	}
	for _, s := range sets {
		if s.value == "" || s.value == "-" {
			continue
		}
		if err := info.Set(s.key, s.value); err != nil {
			return fmt.Errorf("set %s on %s: %w", s.key, c.Variant.Key(), err)
		}
	}

	vw.vw.WriteVariant(rec)
	return nil
}

// Flush flushes buffered output.
func (vw *VCFWriter) Flush() error {
	return vw.w.Flush()
}

// stripInfo removes the given keys from a raw INFO string.
func stripInfo(rawInfo string, keys ...string) string {
	if rawInfo == "" || rawInfo == "." {
		return ""
	}

	var b strings.Builder
	for _, field := range strings.Split(rawInfo, ";") {
		name, _, _ := strings.Cut(field, "=")
		drop := false
		for _, k := range keys {
			if name == k {
				drop = true
				break
			}
		}
		if drop || field == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(';')
		}
		b.WriteString(field)
	}
	return b.String()
}

// formatCSQ encodes annotations as a comma-separated CSQ value.
func formatCSQ(anns []*annotate.Annotation) string {
	var b strings.Builder
	for i, ann := range anns {
		if i > 0 {
			b.WriteByte(',')
		}
		writeCSQEntry(&b, ann)
	}
	return b.String()
}

// writeCSQEntry writes a single annotation as a pipe-delimited CSQ entry.
// Separators inside values are replaced so the entry stays parseable.
func writeCSQEntry(b *strings.Builder, ann *annotate.Annotation) {
	values := []string{
		ann.Allele,
		ann.Consequence,
		ann.Impact,
		ann.Gene,
		ann.GeneID,
		ann.FeatureType,
		ann.Feature,
		ann.Biotype,
		ann.HGVSc,
		ann.HGVSp,
	}
	for i, v := range values {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(csqEscaper.Replace(v))
	}
}

var csqEscaper = strings.NewReplacer("|", "&", ",", "&", ";", "%3B", " ", "_")
