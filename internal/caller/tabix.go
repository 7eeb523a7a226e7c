package caller

import (
	"context"
	"fmt"
	"io"

	"github.com/brentp/irelate/interfaces"
	"github.com/carbocation/bix"
	"github.com/carbocation/vcfgo"
	"go.uber.org/zap"

	"github.com/inodb/mutpeak/internal/region"
	"github.com/inodb/mutpeak/internal/vcf"
)

// Tabix reads calls for a region from an existing bgzipped, tabix-indexed
// VCF instead of running a caller. Alignment files are ignored.
type Tabix struct {
	Path   string
	logger *zap.Logger
}

// NewTabix creates a Tabix caller over path.
func NewTabix(path string, logger *zap.Logger) *Tabix {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tabix{Path: path, logger: logger}
}

// Name returns the backend name.
func (t *Tabix) Name() string { return BackendTabix }

// tabixLocus adapts a Region to the 0-based half-open positions bix expects.
type tabixLocus struct {
	r region.Region
}

func (l tabixLocus) Chrom() string { return l.r.Chrom }
func (l tabixLocus) Start() uint32 { return uint32(l.r.Start - 1) }
func (l tabixLocus) End() uint32   { return uint32(l.r.End) }

// Call returns the records overlapping r.
func (t *Tabix) Call(ctx context.Context, _ []string, r region.Region) (*vcf.Callset, error) {
	hdr, err := vcf.Open(t.Path)
	if err != nil {
		return nil, err
	}
	header := hdr.Header()
	hdr.Close()

	tbx, err := bix.New(t.Path)
	if err != nil {
		return nil, fmt.Errorf("open tabix index for %s: %w", t.Path, err)
	}
	defer tbx.Close()

	vals, err := tbx.Query(tabixLocus{r})
	if err != nil {
		return nil, fmt.Errorf("query %s in %s: %w", r, t.Path, err)
	}
	defer vals.Close()

	cs := &vcf.Callset{Header: header}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rel, err := vals.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s in %s: %w", r, t.Path, err)
		}

		// Unwrap the irelate wrapper to get at the vcfgo record.
		wrap, ok := rel.(interfaces.VarWrap)
		if !ok {
			return nil, fmt.Errorf("%s: unexpected record type %T", t.Path, rel)
		}
		rec, ok := wrap.IVariant.(*vcfgo.Variant)
		if !ok {
			return nil, fmt.Errorf("%s: unexpected variant type %T", t.Path, wrap.IVariant)
		}

		v := vcf.FromRecord(rec)
		if v.Pos > r.End || v.End() < r.Start {
			continue
		}
		cs.Variants = append(cs.Variants, v)
	}

	t.logger.Debug("tabix query finished", zap.String("region", r.String()), zap.Int("variants", cs.Len()))
	return cs, nil
}
