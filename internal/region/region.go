// Package region describes candidate peak regions and their density functions.
package region

import (
	"fmt"
	"strconv"
	"strings"
)

// Region is a 1-based, inclusive genomic interval.
type Region struct {
	Chrom string `yaml:"chrom"`
	Start int64  `yaml:"start"`
	End   int64  `yaml:"end"`
}

// ParseRegion parses a region in "chrom:start-end" form. Commas in the
// coordinates are ignored ("chr5:1,000-2,000").
func ParseRegion(s string) (Region, error) {
	colon := strings.LastIndexByte(s, ':')
	if colon <= 0 {
		return Region{}, fmt.Errorf("invalid region %q: expected chrom:start-end", s)
	}

	chrom := s[:colon]
	coords := strings.ReplaceAll(s[colon+1:], ",", "")

	dash := strings.IndexByte(coords, '-')
	if dash < 0 {
		return Region{}, fmt.Errorf("invalid region %q: expected chrom:start-end", s)
	}

	start, err := strconv.ParseInt(coords[:dash], 10, 64)
	if err != nil {
		return Region{}, fmt.Errorf("invalid region start %q: %w", coords[:dash], err)
	}
	end, err := strconv.ParseInt(coords[dash+1:], 10, 64)
	if err != nil {
		return Region{}, fmt.Errorf("invalid region end %q: %w", coords[dash+1:], err)
	}

	r := Region{Chrom: chrom, Start: start, End: end}
	if err := r.Validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

// Validate checks that the region is well formed.
func (r Region) Validate() error {
	if r.Chrom == "" {
		return fmt.Errorf("region has no sequence name")
	}
	if r.Start < 1 {
		return fmt.Errorf("region %s: start must be >= 1", r)
	}
	if r.End < r.Start {
		return fmt.Errorf("region %s: end before start", r)
	}
	return nil
}

// String renders the region as chrom:start-end, the form accepted by
// bcftools, freebayes and samtools.
func (r Region) String() string {
	return r.Chrom + ":" + strconv.FormatInt(r.Start, 10) + "-" + strconv.FormatInt(r.End, 10)
}

// Len returns the number of bases covered by the region.
func (r Region) Len() int64 {
	return r.End - r.Start + 1
}

// Contains reports whether pos falls inside the region.
func (r Region) Contains(pos int64) bool {
	return pos >= r.Start && pos <= r.End
}
