package vcf

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/carbocation/vcfgo"
)

// VariantReader is the interface for sources that yield variants.
// Both file-backed readers and tabix region queries implement it.
type VariantReader interface {
	// Next reads the next variant.
	// Returns nil, nil when there are no more variants.
	Next() (*Variant, error)

	// Close releases resources.
	Close() error
}

// Callset is a VCF header plus the records read under it.
type Callset struct {
	Header   *vcfgo.Header
	Variants []*Variant
}

// Len returns the number of variants in the callset.
func (c *Callset) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Variants)
}

// Collect drains r into a slice.
func Collect(r VariantReader) ([]*Variant, error) {
	var out []*Variant
	for {
		v, err := r.Next()
		if err != nil {
			return out, err
		}
		if v == nil {
			return out, nil
		}
		out = append(out, v)
	}
}

// ReadCallset parses a complete VCF stream. Input with no content yields an
// empty callset with a nil header.
func ReadCallset(r io.Reader) (*Callset, error) {
	rd, err := NewReader(r)
	if errors.Is(err, ErrEmpty) {
		return &Callset{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer rd.Close()

	variants, err := Collect(rd)
	if err != nil {
		return nil, fmt.Errorf("read variants: %w", err)
	}
	return &Callset{Header: rd.Header(), Variants: variants}, nil
}

// SitesOnlyHeader returns a copy of h without sample columns. The INFO and
// FILTER maps are copied so the result can be extended independently.
func SitesOnlyHeader(h *vcfgo.Header) *vcfgo.Header {
	if h == nil {
		h = vcfgo.NewHeader()
		h.FileFormat = "4.2"
	}
	out := *h
	out.SampleNames = nil
	out.Infos = make(map[string]*vcfgo.Info, len(h.Infos))
	for k, info := range h.Infos {
		out.Infos[k] = info
	}
	return &out
}

// WriteSitesOnly writes the callset as a sites-only VCF (no FORMAT or
// sample columns), the input form expected by effect predictors. Writes
// are buffered so a failure anywhere in the stream is returned.
func WriteSitesOnly(w io.Writer, cs *Callset) error {
	bw := bufio.NewWriter(w)
	h := SitesOnlyHeader(cs.Header)
	vw, err := vcfgo.NewWriter(bw, h)
	if err != nil {
		return fmt.Errorf("write vcf header: %w", err)
	}
	for _, v := range cs.Variants {
		sites := *v
		sites.record = nil
		vw.WriteVariant(sites.Record(h))
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write vcf: %w", err)
	}
	return nil
}
