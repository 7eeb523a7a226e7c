package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(newViper(t))
	require.NoError(t, err)

	assert.True(t, c.Preflight)
	assert.Equal(t, 1, c.Workers)
	assert.Equal(t, "bcftools", c.Caller.Backend)
	assert.Equal(t, "vep", c.Annotator.Backend)
	assert.Equal(t, "GRCh38", c.Annotator.Assembly)
	assert.Equal(t, []string{"LOW"}, c.Filter.ExcludeImpacts)
	assert.Equal(t, "tab", c.Output.Format)
	assert.True(t, c.UsesBAMs())
}

func TestLoad_File(t *testing.T) {
	doc := `reference: /ref/GRCz11.fa
bams:
  - /data/mut1.bam
  - /data/mut2.bam
workers: 4
store: /data/runs.duckdb
caller:
  backend: freebayes
  args: ["--min-alternate-count", "3"]
  mpileup-args: ["--min-BQ", "20"]
annotator:
  backend: snpeff
  database: GRCz11.99
  cache-dir: /data/snpeff
  tmp-dir: /scratch
filter:
  exclude-impacts: [LOW, MODIFIER]
output:
  format: vcf
`
	path := filepath.Join(t.TempDir(), "mutpeak.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	v := newViper(t)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	c, err := Load(v)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, []string{"/data/mut1.bam", "/data/mut2.bam"}, c.BAMs)
	assert.Equal(t, 4, c.Workers)
	assert.Equal(t, "/data/runs.duckdb", c.Store)
	assert.Equal(t, []string{"LOW", "MODIFIER"}, c.Filter.ExcludeImpacts)

	co := c.CallerOptions()
	assert.Equal(t, "freebayes", co.Backend)
	assert.Equal(t, "/ref/GRCz11.fa", co.Reference)
	assert.Equal(t, []string{"--min-alternate-count", "3"}, co.Args)
	assert.Equal(t, []string{"--min-BQ", "20"}, co.PileupArgs)

	ao := c.AnnotatorOptions()
	assert.Equal(t, "snpeff", ao.Backend)
	assert.Equal(t, "GRCz11.99", ao.Database)
	assert.Equal(t, "/data/snpeff", ao.CacheDir)
	assert.Equal(t, "/scratch", ao.TmpDir)
	assert.Equal(t, "/ref/GRCz11.fa", ao.Reference)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Reference: "ref.fa",
			BAMs:      []string{"a.bam"},
			Workers:   1,
			Caller:    CallerConfig{Backend: "bcftools"},
			Annotator: AnnotatorConfig{Backend: "vep"},
			Filter:    FilterConfig{ExcludeImpacts: []string{"low"}},
			Output:    OutputConfig{Format: "tab"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"missing reference", func(c *Config) { c.Reference = "" }, "reference FASTA"},
		{"missing bams", func(c *Config) { c.BAMs = nil }, "BAM"},
		{"unknown caller", func(c *Config) { c.Caller.Backend = "gatk" }, "unknown caller backend"},
		{"tabix without calls", func(c *Config) { c.Caller.Backend = "tabix" }, "caller.calls"},
		{"snpeff without database", func(c *Config) { c.Annotator.Backend = "snpeff" }, "annotator.database"},
		{"unknown annotator", func(c *Config) { c.Annotator.Backend = "annovar" }, "unknown annotator backend"},
		{"unknown impact", func(c *Config) { c.Filter.ExcludeImpacts = []string{"SEVERE"} }, "unknown impact"},
		{"unknown format", func(c *Config) { c.Output.Format = "maf" }, "unknown output format"},
		{"negative workers", func(c *Config) { c.Workers = -1 }, "workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.ErrorContains(t, c.Validate(), tt.want)
		})
	}
}

func TestValidate_TabixNeedsNoBAMs(t *testing.T) {
	c := &Config{Caller: CallerConfig{Backend: "tabix", Calls: "calls.vcf.gz"}}
	require.NoError(t, c.Validate())
	assert.False(t, c.UsesBAMs())
}
