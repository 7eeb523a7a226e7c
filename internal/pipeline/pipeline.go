// Package pipeline runs the per-peak steps: BAM preflight, variant calling,
// consequence annotation, impact filtering and density ranking.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/carbocation/vcfgo"
	"go.uber.org/zap"

	"github.com/inodb/mutpeak/internal/alignment"
	"github.com/inodb/mutpeak/internal/annotate"
	"github.com/inodb/mutpeak/internal/caller"
	"github.com/inodb/mutpeak/internal/rank"
	"github.com/inodb/mutpeak/internal/region"
)

// Inspector reports read coverage of a BAM over a region.
type Inspector interface {
	Inspect(bamPath string, r region.Region) (*alignment.Coverage, error)
}

// InspectorFunc adapts a function to the Inspector interface.
type InspectorFunc func(bamPath string, r region.Region) (*alignment.Coverage, error)

// Inspect calls f.
func (f InspectorFunc) Inspect(bamPath string, r region.Region) (*alignment.Coverage, error) {
	return f(bamPath, r)
}

// BAMInspector inspects BAM files with their .bai index.
var BAMInspector Inspector = InspectorFunc(alignment.Inspect)

// Pipeline ranks candidate variants for peaks.
type Pipeline struct {
	Caller    caller.Caller
	Predictor annotate.Predictor
	// Inspector checks the BAMs before calling. When nil, calling always
	// runs on the peak region as given.
	Inspector Inspector
	BAMs      []string
	// ExcludeImpacts lists the impacts filtered out; empty means LOW.
	ExcludeImpacts []string

	logger *zap.Logger
}

// New creates a pipeline with a no-op logger.
func New(c caller.Caller, p annotate.Predictor, bams []string) *Pipeline {
	return &Pipeline{
		Caller:    c,
		Predictor: p,
		BAMs:      bams,
		logger:    zap.NewNop(),
	}
}

// SetLogger sets the logger for progress and warning messages.
func (p *Pipeline) SetLogger(l *zap.Logger) {
	p.logger = l
}

// Result is the outcome of running one peak.
type Result struct {
	Peak       *region.Peak
	Header     *vcfgo.Header     // caller's VCF header, nil when calling did not run
	Called     int               // variants returned by the caller
	Annotated  int               // variants with at least one annotation
	Candidates []*rank.Candidate // filtered and ranked
	Skipped    bool              // no reads overlapped the peak
	Err        error
}

// Run processes a single peak.
func (p *Pipeline) Run(ctx context.Context, peak *region.Peak) (*Result, error) {
	if err := peak.Region.Validate(); err != nil {
		return nil, fmt.Errorf("peak %s: %w", peak.Name, err)
	}
	if peak.Density == nil {
		return nil, fmt.Errorf("peak %s: no density function", peak.Name)
	}
	log := p.logger.With(zap.String("peak", peak.Name), zap.String("region", peak.Region.String()))
	res := &Result{Peak: peak}

	r := peak.Region
	if p.Inspector != nil {
		callRegion, reads, err := p.preflight(peak.Region)
		if err != nil {
			return nil, fmt.Errorf("peak %s: %w", peak.Name, err)
		}
		log.Debug("preflight", zap.Int("reads", reads))
		if reads == 0 {
			log.Info("no reads overlap peak, skipping")
			res.Skipped = true
			return res, nil
		}
		r = callRegion
	}

	cs, err := p.Caller.Call(ctx, p.BAMs, r)
	if err != nil {
		return nil, fmt.Errorf("peak %s: call variants: %w", peak.Name, err)
	}
	res.Header = cs.Header
	res.Called = cs.Len()
	log.Info("called variants", zap.String("caller", p.Caller.Name()), zap.Int("variants", res.Called))
	if res.Called == 0 {
		return res, nil
	}

	annotated, err := p.Predictor.Annotate(ctx, cs)
	if err != nil {
		return nil, fmt.Errorf("peak %s: annotate: %w", peak.Name, err)
	}
	for _, a := range annotated {
		if len(a.Annotations) > 0 {
			res.Annotated++
		}
	}

	cands := rank.FromAnnotated(peak.Name, annotated)
	kept := rank.FilterImpact(cands, p.ExcludeImpacts...)
	res.Candidates = rank.Rank(kept, peak.Density)

	log.Info("ranked candidates",
		zap.String("predictor", p.Predictor.Name()),
		zap.Int("annotated", res.Annotated),
		zap.Int("filtered", len(cands)-len(kept)),
		zap.Int("candidates", len(res.Candidates)))
	return res, nil
}

// preflight sums overlapping reads across the BAMs and returns the region
// as spelled and clamped by the first BAM that has reads. A BAM lacking
// the peak's sequence contributes no reads.
func (p *Pipeline) preflight(r region.Region) (region.Region, int, error) {
	callRegion := r
	found := false
	total := 0
	for _, bam := range p.BAMs {
		cov, err := p.Inspector.Inspect(bam, r)
		if errors.Is(err, alignment.ErrReferenceNotFound) {
			p.logger.Warn("sequence not in BAM header",
				zap.String("bam", bam), zap.String("chrom", r.Chrom))
			continue
		}
		if err != nil {
			return r, 0, err
		}
		if cov.Reads > 0 && !found {
			callRegion = cov.Region
			found = true
		}
		total += cov.Reads
	}
	return callRegion, total, nil
}
