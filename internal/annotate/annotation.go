// Package annotate runs an external consequence predictor over called
// variants and parses the per-transcript annotations it emits.
package annotate

import (
	"strings"

	"github.com/inodb/mutpeak/internal/vcf"
)

// Impact levels for variant consequences.
const (
	ImpactHigh     = "HIGH"
	ImpactModerate = "MODERATE"
	ImpactLow      = "LOW"
	ImpactModifier = "MODIFIER"
)

// ImpactRank returns numeric rank for impact comparison (higher = more severe).
func ImpactRank(impact string) int {
	switch strings.ToUpper(impact) {
	case ImpactHigh:
		return 3
	case ImpactModerate:
		return 2
	case ImpactLow:
		return 1
	default:
		return 0
	}
}

// Annotation is one consequence prediction for one allele on one feature,
// i.e. one comma-separated entry of a CSQ or ANN INFO value.
type Annotation struct {
	Allele      string // The alternate allele
	Consequence string // SO consequence term(s), '&'-joined by the tools
	Impact      string // HIGH, MODERATE, LOW, MODIFIER; empty if not reported
	Gene        string // Gene symbol
	GeneID      string // Gene identifier
	FeatureType string // Transcript, RegulatoryFeature, ...
	Feature     string // Transcript or feature identifier
	Biotype     string // Transcript biotype
	HGVSc       string // HGVS coding DNA notation
	HGVSp       string // HGVS protein notation

	// Fields holds every sub-field by its header name, including the ones
	// copied into the named members above.
	Fields map[string]string
}

// Field returns a sub-field by header name.
func (a *Annotation) Field(name string) string {
	return a.Fields[name]
}

// Annotated pairs a called variant with the annotations predicted for it.
type Annotated struct {
	Variant     *vcf.Variant
	Annotations []*Annotation
}

// Impact returns the most severe impact across all annotations, or "" when
// the predictor reported none.
func (a *Annotated) Impact() string {
	return MostSevere(a.Annotations)
}

// Worst returns the annotation carrying the most severe impact, or nil.
func (a *Annotated) Worst() *Annotation {
	var worst *Annotation
	for _, ann := range a.Annotations {
		if ann.Impact == "" {
			continue
		}
		if worst == nil || ImpactRank(ann.Impact) > ImpactRank(worst.Impact) {
			worst = ann
		}
	}
	if worst == nil && len(a.Annotations) > 0 {
		return a.Annotations[0]
	}
	return worst
}

// MostSevere returns the highest-ranked non-empty impact among anns.
func MostSevere(anns []*Annotation) string {
	best := ""
	for _, ann := range anns {
		if ann.Impact == "" {
			continue
		}
		if best == "" || ImpactRank(ann.Impact) > ImpactRank(best) {
			best = strings.ToUpper(ann.Impact)
		}
	}
	return best
}
