package output

import (
	"io"
	"math"

	"github.com/goccy/go-json"

	"github.com/inodb/mutpeak/internal/rank"
)

// JSONWriter writes all candidates of a run as one JSON array.
type JSONWriter struct {
	w     io.Writer
	cands []jsonCandidate
}

type jsonAnnotation struct {
	Allele      string `json:"allele,omitempty"`
	Consequence string `json:"consequence,omitempty"`
	Impact      string `json:"impact,omitempty"`
	Gene        string `json:"gene,omitempty"`
	GeneID      string `json:"gene_id,omitempty"`
	FeatureType string `json:"feature_type,omitempty"`
	Feature     string `json:"feature,omitempty"`
	Biotype     string `json:"biotype,omitempty"`
	HGVSc       string `json:"hgvsc,omitempty"`
	HGVSp       string `json:"hgvsp,omitempty"`
}

type jsonCandidate struct {
	Rank        int              `json:"rank"`
	Peak        string           `json:"peak"`
	Chrom       string           `json:"chrom"`
	Pos         int64            `json:"pos"`
	ID          string           `json:"id,omitempty"`
	Ref         string           `json:"ref"`
	Alt         string           `json:"alt"`
	Qual        float64          `json:"qual"`
	Impact      string           `json:"impact,omitempty"`
	Density     *float64         `json:"density"` // null when undefined
	Annotations []jsonAnnotation `json:"annotations"`
}

// NewJSONWriter creates a JSON writer. Output is produced by Flush.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{w: w}
}

// WriteHeader is a no-op; JSON output has no header.
func (jw *JSONWriter) WriteHeader() error {
	return nil
}

// Write buffers a candidate.
func (jw *JSONWriter) Write(c *rank.Candidate) error {
	v := c.Variant
	jc := jsonCandidate{
		Rank:        c.Rank,
		Peak:        c.Peak,
		Chrom:       v.Chrom,
		Pos:         v.Pos,
		ID:          v.ID,
		Ref:         v.Ref,
		Alt:         v.Alt,
		Qual:        v.Qual,
		Impact:      c.Impact,
		Annotations: make([]jsonAnnotation, 0, len(c.Annotations)),
	}
	if jc.ID == "." {
		jc.ID = ""
	}
	if !math.IsNaN(c.Score) && !math.IsInf(c.Score, 0) {
		score := c.Score
		jc.Density = &score
	}
	for _, a := range c.Annotations {
		jc.Annotations = append(jc.Annotations, jsonAnnotation{
			Allele:      a.Allele,
			Consequence: a.Consequence,
			Impact:      a.Impact,
			Gene:        a.Gene,
			GeneID:      a.GeneID,
			FeatureType: a.FeatureType,
			Feature:     a.Feature,
			Biotype:     a.Biotype,
			HGVSc:       a.HGVSc,
			HGVSp:       a.HGVSp,
		})
	}
	jw.cands = append(jw.cands, jc)
	return nil
}

// Flush writes the buffered candidates as an indented JSON array.
func (jw *JSONWriter) Flush() error {
	cands := jw.cands
	if cands == nil {
		cands = []jsonCandidate{}
	}
	enc := json.NewEncoder(jw.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cands); err != nil {
		return err
	}
	jw.cands = nil
	return nil
}
