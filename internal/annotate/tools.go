package annotate

import "github.com/inodb/mutpeak/internal/toolrun"

// VEP runs Ensembl VEP in offline cache mode with VCF output.
type VEP struct {
	Binary    string
	Species   string
	Assembly  string
	CacheDir  string
	Reference string
	Args      []string
}

// Name returns "vep".
func (v *VEP) Name() string { return BackendVEP }

// InfoKey returns "CSQ".
func (v *VEP) InfoKey() string { return InfoCSQ }

// Command builds the vep invocation.
func (v *VEP) Command(input string) toolrun.Command {
	args := []string{
		"--input_file", input,
		"--format", "vcf",
		"--vcf",
		"--output_file", "STDOUT",
		"--offline", "--cache",
		"--no_stats",
		"--symbol",
		"--biotype",
		"--hgvs",
	}
	if v.CacheDir != "" {
		args = append(args, "--dir_cache", v.CacheDir)
	}
	if v.Species != "" {
		args = append(args, "--species", v.Species)
	}
	if v.Assembly != "" {
		args = append(args, "--assembly", v.Assembly)
	}
	if v.Reference != "" {
		args = append(args, "--fasta", v.Reference)
	}
	args = append(args, v.Args...)
	return toolrun.Command{Name: v.Binary, Args: args}
}

// SnpEff runs "snpEff ann" against a prebuilt database.
type SnpEff struct {
	Binary   string
	Database string
	Args     []string
}

// Name returns "snpeff".
func (s *SnpEff) Name() string { return BackendSnpEff }

// InfoKey returns "ANN".
func (s *SnpEff) InfoKey() string { return InfoANN }

// Command builds the snpEff invocation. Extra arguments go before the
// database name so that options such as -canon are honoured.
func (s *SnpEff) Command(input string) toolrun.Command {
	args := []string{"ann", "-noStats", "-noLog"}
	args = append(args, s.Args...)
	args = append(args, s.Database, input)
	return toolrun.Command{Name: s.Binary, Args: args}
}

// VibeVEP runs vibe-vep, which writes VEP-compatible CSQ annotations.
type VibeVEP struct {
	Binary   string
	Assembly string
	Args     []string
}

// Name returns "vibe-vep".
func (v *VibeVEP) Name() string { return BackendVibeVEP }

// InfoKey returns "CSQ".
func (v *VibeVEP) InfoKey() string { return InfoCSQ }

// Command builds the vibe-vep invocation.
func (v *VibeVEP) Command(input string) toolrun.Command {
	args := []string{"annotate", "--output-format", "vcf"}
	if v.Assembly != "" {
		args = append(args, "--assembly", v.Assembly)
	}
	args = append(args, v.Args...)
	args = append(args, input)
	return toolrun.Command{Name: v.Binary, Args: args}
}
