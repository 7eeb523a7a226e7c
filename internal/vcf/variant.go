// Package vcf provides VCF file parsing functionality.
package vcf

import (
	"strconv"
	"strings"

	"github.com/carbocation/vcfgo"
)

// Variant represents a single VCF record.
type Variant struct {
	Chrom   string  // Chromosome name (e.g., "12", "chr12")
	Pos     int64   // 1-based genomic position
	ID      string  // Variant identifier (e.g., rs ID)
	Ref     string  // Reference allele
	Alt     string  // Alternate allele(s), comma-separated as in VCF
	Qual    float64 // Quality score
	Filter  string  // Filter status (PASS or filter name)
	RawInfo string  // INFO column as written in the file

	record *vcfgo.Variant
}

// FromRecord converts a vcfgo record.
func FromRecord(rec *vcfgo.Variant) *Variant {
	v := &Variant{
		Chrom:  rec.Chromosome,
		Pos:    int64(rec.Pos),
		ID:     rec.Id_,
		Ref:    rec.Reference,
		Alt:    strings.Join(rec.Alternate, ","),
		Qual:   float64(rec.Quality),
		Filter: rec.Filter,
		record: rec,
	}
	if rec.Info_ != nil {
		v.RawInfo = string(rec.Info().Bytes())
	}
	return v
}

// Record returns a vcfgo record for the variant bound to header h. Variants
// read from a file return their original record when h is nil.
func (v *Variant) Record(h *vcfgo.Header) *vcfgo.Variant {
	if v.record != nil && (h == nil || v.record.Header == h) {
		return v.record
	}

	id := v.ID
	if id == "" {
		id = "."
	}
	filter := v.Filter
	if filter == "" {
		filter = "."
	}
	info := v.RawInfo
	if info == "." {
		info = ""
	}
	return &vcfgo.Variant{
		Chromosome: v.Chrom,
		Pos:        uint64(v.Pos),
		Id_:        id,
		Reference:  v.Ref,
		Alternate:  v.AltAlleles(),
		Quality:    float32(v.Qual),
		Filter:     filter,
		Header:     h,
		Info_:      vcfgo.NewInfoByte([]byte(info), h),
	}
}

// InfoValue returns the raw value of an INFO key, or "" if absent.
// Flags return "" as well; use HasInfo to test for them.
func (v *Variant) InfoValue(key string) string {
	if v.RawInfo == "" || v.RawInfo == "." {
		return ""
	}
	return string(vcfgo.NewInfoByte([]byte(v.RawInfo), nil).SGet(key))
}

// HasInfo reports whether key is present in the INFO column.
func (v *Variant) HasInfo(key string) bool {
	for _, kv := range strings.Split(v.RawInfo, ";") {
		if kv == key || strings.HasPrefix(kv, key+"=") {
			return true
		}
	}
	return false
}

// AltAlleles splits the ALT column into individual alleles.
func (v *Variant) AltAlleles() []string {
	if v.Alt == "" {
		return nil
	}
	return strings.Split(v.Alt, ",")
}

// IsSNV returns true if the variant is a single nucleotide variant.
func (v *Variant) IsSNV() bool {
	return len(v.Ref) == 1 && len(v.Alt) == 1
}

// IsIndel returns true if the variant is an insertion or deletion.
func (v *Variant) IsIndel() bool {
	for _, alt := range v.AltAlleles() {
		if len(alt) != len(v.Ref) {
			return true
		}
	}
	return false
}

// IsInsertion returns true if the variant is an insertion.
func (v *Variant) IsInsertion() bool {
	return len(v.Alt) > len(v.Ref) && !strings.Contains(v.Alt, ",")
}

// IsDeletion returns true if the variant is a deletion.
func (v *Variant) IsDeletion() bool {
	return len(v.Ref) > len(v.Alt)
}

// End returns the last reference base covered by the variant.
func (v *Variant) End() int64 {
	if len(v.Ref) == 0 {
		return v.Pos
	}
	return v.Pos + int64(len(v.Ref)) - 1
}

// Midpoint returns the centre of the reference span, the coordinate used
// to score a variant against a peak density.
func (v *Variant) Midpoint() float64 {
	return float64(v.Pos+v.End()) / 2
}

// Key identifies a record by chrom:pos:ref:alt.
func (v *Variant) Key() string {
	return FormatKey(v.Chrom, v.Pos, v.Ref, v.Alt)
}

// FormatKey builds the chrom:pos:ref:alt key for a record.
func FormatKey(chrom string, pos int64, ref, alt string) string {
	return chrom + ":" + strconv.FormatInt(pos, 10) + ":" + ref + ":" + alt
}

// NormalizeChrom returns the chromosome name without "chr" prefix.
func (v *Variant) NormalizeChrom() string {
	return NormalizeChrom(v.Chrom)
}

// NormalizeChrom strips a leading "chr" from a sequence name.
func NormalizeChrom(chrom string) string {
	if len(chrom) > 3 && chrom[:3] == "chr" {
		return chrom[3:]
	}
	return chrom
}
