package annotate

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/mutpeak/internal/toolrun"
	"github.com/inodb/mutpeak/internal/vcf"
)

const calledVCF = `##fileformat=VCFv4.2
##INFO=<ID=DP,Number=1,Type=Integer,Description="Raw read depth">
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	mut.bam
chr5	1200	.	C	T	60	.	DP=30	GT	1/1
chr5	1500	.	A	G	50	.	DP=25	GT	0/1
chr5	1800	.	GA	G	45	.	DP=22	GT	0/1
`

const vepOutput = `##fileformat=VCFv4.2
##INFO=<ID=DP,Number=1,Type=Integer,Description="Raw read depth">
##INFO=<ID=CSQ,Number=.,Type=String,Description="Consequence annotations from Ensembl VEP. Format: Allele|Consequence|IMPACT|SYMBOL|Gene|Feature_type|Feature|BIOTYPE|HGVSc|HGVSp">
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO
chr5	1200	.	C	T	60	.	DP=30;CSQ=T|missense_variant|MODERATE|tp53|ENSDARG1|Transcript|ENSDART1|protein_coding|c.10C>T|p.Arg4Cys,T|upstream_gene_variant|MODIFIER|mdm2|ENSDARG2|Transcript|ENSDART2|protein_coding||
chr5	1800	.	GA	G	45	.	DP=22;CSQ=-|frameshift_variant|HIGH|tp53|ENSDARG1|Transcript|ENSDART1|protein_coding|c.40del|p.Glu14fs
`

// fakeTool records the input it was given and answers with a canned VCF.
type fakeTool struct {
	output   string
	err      error
	input    string
	contents string
	calls    int
}

func (f *fakeTool) Run(_ context.Context, c toolrun.Command) error {
	f.calls++
	f.input = c.Args[len(c.Args)-1]
	b, err := os.ReadFile(f.input)
	if err != nil {
		return err
	}
	f.contents = string(b)
	if f.err != nil {
		return f.err
	}
	_, err = io.WriteString(c.Stdout, f.output)
	return err
}

// stubTool passes the input path as the last argument.
type stubTool struct{}

func (stubTool) Name() string    { return "stub" }
func (stubTool) InfoKey() string { return InfoCSQ }
func (stubTool) Command(input string) toolrun.Command {
	return toolrun.Command{Name: "stub", Args: []string{input}}
}

func readCallset(t *testing.T, s string) *vcf.Callset {
	t.Helper()
	cs, err := vcf.ReadCallset(strings.NewReader(s))
	require.NoError(t, err)
	return cs
}

func TestAnnotator_Annotate(t *testing.T) {
	cs := readCallset(t, calledVCF)
	run := &fakeTool{output: vepOutput}
	a := NewAnnotator(stubTool{}, run, t.TempDir())

	results, err := a.Annotate(context.Background(), cs)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "chr5:1200:C:T", results[0].Variant.Key())
	require.Len(t, results[0].Annotations, 2)
	assert.Equal(t, ImpactModerate, results[0].Impact())
	assert.Equal(t, "tp53", results[0].Worst().Gene)

	assert.Empty(t, results[1].Annotations, "variant missing from output keeps no annotations")
	assert.Equal(t, "", results[1].Impact())

	assert.Equal(t, ImpactHigh, results[2].Impact())
	assert.Equal(t, "p.Glu14fs", results[2].Worst().HGVSp)

	// Input was sites-only and the temporary file is gone.
	assert.NotContains(t, run.contents, "mut.bam")
	assert.Contains(t, run.contents, "chr5\t1500\t.\tA\tG")
	_, err = os.Stat(run.input)
	assert.True(t, os.IsNotExist(err), "temporary VCF should be removed")
}

func TestAnnotator_ToolFailureRemovesInput(t *testing.T) {
	cs := readCallset(t, calledVCF)
	run := &fakeTool{err: &toolrun.ToolError{Tool: "stub", ExitCode: 2, Stderr: "cache not found"}}
	a := NewAnnotator(stubTool{}, run, t.TempDir())

	_, err := a.Annotate(context.Background(), cs)
	require.Error(t, err)
	var te *toolrun.ToolError
	assert.True(t, errors.As(err, &te))

	_, statErr := os.Stat(run.input)
	assert.True(t, os.IsNotExist(statErr), "temporary VCF should be removed on failure")
}

func TestAnnotator_EmptyCallset(t *testing.T) {
	run := &fakeTool{}
	a := NewAnnotator(stubTool{}, run, t.TempDir())

	results, err := a.Annotate(context.Background(), &vcf.Callset{})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, run.calls, "tool is not invoked for an empty callset")
}

func TestAnnotator_MissingInfoHeader(t *testing.T) {
	cs := readCallset(t, calledVCF)
	a := NewAnnotator(stubTool{}, &fakeTool{output: calledVCF}, t.TempDir())

	_, err := a.Annotate(context.Background(), cs)
	assert.ErrorContains(t, err, "no CSQ INFO header")
}

func TestAnnotator_EmptyOutput(t *testing.T) {
	cs := readCallset(t, calledVCF)
	a := NewAnnotator(stubTool{}, &fakeTool{output: ""}, t.TempDir())

	results, err := a.Annotate(context.Background(), cs)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Empty(t, r.Annotations)
	}
}

func TestNew_Backends(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		wantName string
		wantBin  string
		wantArgs []string
		infoKey  string
	}{
		{
			name:     "vep default",
			opts:     Options{Species: "danio_rerio", Assembly: "GRCz11", CacheDir: "/data/vep", Reference: "ref.fa"},
			wantName: BackendVEP,
			wantBin:  "vep",
			wantArgs: []string{
				"--input_file", "in.vcf", "--format", "vcf", "--vcf", "--output_file", "STDOUT",
				"--offline", "--cache", "--no_stats", "--symbol", "--biotype", "--hgvs",
				"--dir_cache", "/data/vep", "--species", "danio_rerio", "--assembly", "GRCz11", "--fasta", "ref.fa",
			},
			infoKey: InfoCSQ,
		},
		{
			name:     "snpeff",
			opts:     Options{Backend: "snpEff", Database: "GRCz11.99", Args: []string{"-canon"}},
			wantName: BackendSnpEff,
			wantBin:  "snpEff",
			wantArgs: []string{"ann", "-noStats", "-noLog", "-canon", "GRCz11.99", "in.vcf"},
			infoKey:  InfoANN,
		},
		{
			name:     "vibe-vep",
			opts:     Options{Backend: "vibe-vep", Binary: "/usr/local/bin/vibe-vep", Assembly: "GRCh38"},
			wantName: BackendVibeVEP,
			wantBin:  "/usr/local/bin/vibe-vep",
			wantArgs: []string{"annotate", "--output-format", "vcf", "--assembly", "GRCh38", "in.vcf"},
			infoKey:  InfoCSQ,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.opts, &fakeTool{}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, a.Name())

			cmd := a.tool.Command("in.vcf")
			assert.Equal(t, tt.wantBin, cmd.Name)
			assert.Equal(t, tt.wantArgs, cmd.Args)
			assert.Equal(t, tt.infoKey, a.tool.InfoKey())
		})
	}
}

func TestNew_Errors(t *testing.T) {
	_, err := New(Options{Backend: "snpeff"}, &fakeTool{}, nil)
	assert.ErrorContains(t, err, "database")

	_, err = New(Options{Backend: "annovar"}, &fakeTool{}, nil)
	assert.ErrorContains(t, err, "unknown annotator backend")
}

func TestDefaultBinary(t *testing.T) {
	assert.Equal(t, "vep", DefaultBinary(""))
	assert.Equal(t, "snpEff", DefaultBinary("snpeff"))
	assert.Equal(t, "vibe-vep", DefaultBinary("vibe-vep"))
	assert.Equal(t, "", DefaultBinary("annovar"))
}
