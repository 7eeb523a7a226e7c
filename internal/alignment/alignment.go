// Package alignment inspects BAM files before variant calling: it checks
// that the peak's sequence exists, that the file is indexed, and whether
// any reads overlap the region at all.
package alignment

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"

	"github.com/inodb/mutpeak/internal/region"
	"github.com/inodb/mutpeak/internal/vcf"
)

var (
	// ErrReferenceNotFound is returned when the BAM header has no sequence
	// matching the region's chromosome.
	ErrReferenceNotFound = errors.New("reference sequence not in BAM header")

	// ErrNoIndex is returned when no .bai index accompanies the BAM.
	ErrNoIndex = errors.New("BAM index not found")
)

// Coverage summarises a BAM file over a region.
type Coverage struct {
	Path      string
	Reference string        // sequence name as spelled in the BAM header
	Region    region.Region // region clamped to the reference length, using Reference
	Reads     int           // mapped reads overlapping Region
}

// IndexPath returns the index file for a BAM, trying "x.bam.bai" then "x.bai".
func IndexPath(bamPath string) (string, error) {
	candidates := []string{bamPath + ".bai"}
	if strings.HasSuffix(bamPath, ".bam") {
		candidates = append(candidates, strings.TrimSuffix(bamPath, ".bam")+".bai")
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("%s: %w", bamPath, ErrNoIndex)
}

// Inspect opens bamPath and counts the mapped reads that overlap r.
func Inspect(bamPath string, r region.Region) (*Coverage, error) {
	f, err := os.Open(bamPath)
	if err != nil {
		return nil, fmt.Errorf("open bam: %w", err)
	}
	defer f.Close()

	br, err := bam.NewReader(f, 1)
	if err != nil {
		return nil, fmt.Errorf("read bam %s: %w", bamPath, err)
	}
	defer br.Close()

	ref := FindReference(br.Header(), r.Chrom)
	if ref == nil {
		return nil, fmt.Errorf("%s: %s: %w", bamPath, r.Chrom, ErrReferenceNotFound)
	}

	cov := &Coverage{
		Path:      bamPath,
		Reference: ref.Name(),
		Region:    region.Region{Chrom: ref.Name(), Start: r.Start, End: r.End},
	}
	if refLen := int64(ref.Len()); refLen > 0 && cov.Region.End > refLen {
		cov.Region.End = refLen
	}
	if cov.Region.Start > cov.Region.End {
		// Region lies entirely past the end of the sequence.
		return cov, nil
	}

	idxPath, err := IndexPath(bamPath)
	if err != nil {
		return nil, err
	}
	idxFile, err := os.Open(idxPath)
	if err != nil {
		return nil, fmt.Errorf("open bam index: %w", err)
	}
	defer idxFile.Close()

	idx, err := bam.ReadIndex(idxFile)
	if err != nil {
		return nil, fmt.Errorf("read bam index %s: %w", idxPath, err)
	}

	// BAM coordinates are 0-based half-open.
	beg, end := int(cov.Region.Start-1), int(cov.Region.End)
	chunks, err := idx.Chunks(ref, beg, end)
	if err != nil {
		// The index holds no bins for this reference: nothing aligned there.
		return cov, nil
	}
	if len(chunks) == 0 {
		return cov, nil
	}

	it, err := bam.NewIterator(br, chunks)
	if err != nil {
		return nil, fmt.Errorf("iterate bam %s: %w", bamPath, err)
	}
	for it.Next() {
		rec := it.Record()
		if rec.Ref == nil || rec.Ref.ID() != ref.ID() {
			continue
		}
		if rec.Flags&sam.Unmapped != 0 {
			continue
		}
		if rec.Pos < end && rec.End() > beg {
			cov.Reads++
		}
	}
	if err := it.Close(); err != nil {
		return nil, fmt.Errorf("iterate bam %s: %w", bamPath, err)
	}
	return cov, nil
}

// FindReference looks a sequence up by name, accepting a "chr" prefix
// mismatch between the peak and the BAM header.
func FindReference(h *sam.Header, name string) *sam.Reference {
	want := vcf.NormalizeChrom(name)
	var loose *sam.Reference
	for _, ref := range h.Refs() {
		if ref.Name() == name {
			return ref
		}
		if loose == nil && vcf.NormalizeChrom(ref.Name()) == want {
			loose = ref
		}
	}
	return loose
}
