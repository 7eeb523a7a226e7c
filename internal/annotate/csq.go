package annotate

import "strings"

// INFO keys used by the supported predictors.
const (
	InfoCSQ = "CSQ" // Ensembl VEP, vibe-vep
	InfoANN = "ANN" // snpEff
)

// Sub-field names, VEP spelling first, snpEff spelling second.
var fieldAliases = map[string][]string{
	"allele":       {"Allele"},
	"consequence":  {"Consequence", "Annotation"},
	"impact":       {"IMPACT", "Annotation_Impact"},
	"gene":         {"SYMBOL", "Gene_Name"},
	"gene_id":      {"Gene", "Gene_ID"},
	"feature_type": {"Feature_type", "Feature_Type"},
	"feature":      {"Feature", "Feature_ID"},
	"biotype":      {"BIOTYPE", "Transcript_BioType"},
	"hgvsc":        {"HGVSc", "HGVS.c"},
	"hgvsp":        {"HGVSp", "HGVS.p"},
}

// ParseFormat extracts the sub-field layout from the Description of a CSQ
// or ANN INFO header line, e.g.
//
//	Consequence annotations from Ensembl VEP. Format: Allele|Consequence|IMPACT|SYMBOL
//	Functional annotations: 'Allele | Annotation | Annotation_Impact | Gene_Name'
func ParseFormat(description string) []string {
	s := description
	if i := strings.Index(s, "Format:"); i >= 0 {
		s = s[i+len("Format:"):]
	} else if i := strings.IndexByte(s, '\''); i >= 0 {
		s = s[i+1:]
	}
	s = strings.Trim(s, " '\"")
	if s == "" {
		return nil
	}

	parts := strings.Split(s, "|")
	for i, p := range parts {
		parts[i] = strings.Trim(p, " '\"")
	}
	return parts
}

// ParseEntries splits a raw CSQ/ANN value into annotations laid out
// according to format. Entries shorter than format leave the remaining
// fields empty.
func ParseEntries(raw string, format []string) []*Annotation {
	if raw == "" || raw == "." || len(format) == 0 {
		return nil
	}

	var anns []*Annotation
	for _, entry := range strings.Split(raw, ",") {
		if entry == "" {
			continue
		}
		values := strings.Split(entry, "|")

		fields := make(map[string]string, len(format))
		for i, name := range format {
			if i < len(values) {
				fields[name] = values[i]
			}
		}
		anns = append(anns, newAnnotation(fields))
	}
	return anns
}

func newAnnotation(fields map[string]string) *Annotation {
	get := func(key string) string {
		for _, name := range fieldAliases[key] {
			if v, ok := fields[name]; ok && v != "" {
				return v
			}
		}
		return ""
	}
	return &Annotation{
		Allele:      get("allele"),
		Consequence: get("consequence"),
		Impact:      strings.ToUpper(get("impact")),
		Gene:        get("gene"),
		GeneID:      get("gene_id"),
		FeatureType: get("feature_type"),
		Feature:     get("feature"),
		Biotype:     get("biotype"),
		HGVSc:       get("hgvsc"),
		HGVSp:       get("hgvsp"),
		Fields:      fields,
	}
}
