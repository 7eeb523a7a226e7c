// Package rank filters annotated variants by impact and orders them by
// peak density.
package rank

import (
	"math"
	"sort"
	"strings"

	"github.com/inodb/mutpeak/internal/annotate"
	"github.com/inodb/mutpeak/internal/region"
	"github.com/inodb/mutpeak/internal/vcf"
)

// DefaultExcluded is the impact dropped when no exclusion list is given.
var DefaultExcluded = []string{annotate.ImpactLow}

// Candidate is an annotated variant under a peak, with its density score.
type Candidate struct {
	Variant     *vcf.Variant
	Annotations []*annotate.Annotation
	Impact      string  // most severe impact, "" when undetermined
	Score       float64 // peak density at the variant midpoint
	Rank        int     // 1-based position after ranking
	Peak        string  // name of the peak the variant was called in
}

// Worst returns the annotation carrying the candidate's impact, or nil.
func (c *Candidate) Worst() *annotate.Annotation {
	return (&annotate.Annotated{Variant: c.Variant, Annotations: c.Annotations}).Worst()
}

// FromAnnotated builds unranked candidates for the peak named peak.
func FromAnnotated(peak string, items []*annotate.Annotated) []*Candidate {
	cands := make([]*Candidate, 0, len(items))
	for _, it := range items {
		cands = append(cands, &Candidate{
			Variant:     it.Variant,
			Annotations: it.Annotations,
			Impact:      it.Impact(),
			Score:       math.NaN(),
			Peak:        peak,
		})
	}
	return cands
}

// FilterImpact returns the candidates not excluded by impact. A candidate
// is dropped only when every one of its annotations carries an impact in
// excluded; an annotation with no impact keeps it. Candidates without
// annotations are judged by their Impact field, and an empty impact is
// always kept. With no excluded impacts given, DefaultExcluded applies.
// Comparison is case-insensitive.
func FilterImpact(cands []*Candidate, excluded ...string) []*Candidate {
	if len(excluded) == 0 {
		excluded = DefaultExcluded
	}
	drop := make(map[string]bool, len(excluded))
	for _, imp := range excluded {
		drop[strings.ToUpper(imp)] = true
	}

	kept := make([]*Candidate, 0, len(cands))
	for _, c := range cands {
		if !c.excludedBy(drop) {
			kept = append(kept, c)
		}
	}
	return kept
}

func (c *Candidate) excludedBy(drop map[string]bool) bool {
	if len(c.Annotations) == 0 {
		return c.Impact != "" && drop[strings.ToUpper(c.Impact)]
	}
	for _, ann := range c.Annotations {
		if ann.Impact == "" || !drop[strings.ToUpper(ann.Impact)] {
			return false
		}
	}
	return true
}

// Rank scores each candidate at its variant midpoint and sorts by
// descending score. NaN scores sort last and equal scores keep their input
// order. Rank is assigned from 1. The slice is sorted in place and returned.
func Rank(cands []*Candidate, density region.Density) []*Candidate {
	for _, c := range cands {
		c.Score = density.Score(c.Variant.Midpoint())
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i].Score, cands[j].Score
		if math.IsNaN(a) {
			return false
		}
		if math.IsNaN(b) {
			return true
		}
		return a > b
	})

	for i, c := range cands {
		c.Rank = i + 1
	}
	return cands
}
