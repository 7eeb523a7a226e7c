// Package config holds mutpeak settings, unmarshalled from viper (config
// file, MUTPEAK_* environment variables and command-line flags).
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/inodb/mutpeak/internal/annotate"
	"github.com/inodb/mutpeak/internal/caller"
	"github.com/inodb/mutpeak/internal/output"
)

// CallerConfig selects and configures the variant caller.
type CallerConfig struct {
	// bcftools, freebayes or tabix
	Backend string `mapstructure:"backend"`
	// binary path, defaults to the backend name on PATH
	Binary string `mapstructure:"binary"`
	// bgzipped, tabix-indexed callset for the tabix backend
	Calls string `mapstructure:"calls"`
	// extra arguments passed to the caller ("bcftools call" for bcftools)
	Args []string `mapstructure:"args"`
	// extra arguments for "bcftools mpileup"
	MpileupArgs []string `mapstructure:"mpileup-args"`
}

// AnnotatorConfig selects and configures the consequence predictor.
type AnnotatorConfig struct {
	// vep, snpeff or vibe-vep
	Backend  string   `mapstructure:"backend"`
	Binary   string   `mapstructure:"binary"`
	Species  string   `mapstructure:"species"`
	Assembly string   `mapstructure:"assembly"`
	CacheDir string   `mapstructure:"cache-dir"`
	Database string   `mapstructure:"database"`
	Args     []string `mapstructure:"args"`
	// directory for the temporary VCF handed to the predictor
	TmpDir string `mapstructure:"tmp-dir"`
}

// FilterConfig controls impact filtering.
type FilterConfig struct {
	ExcludeImpacts []string `mapstructure:"exclude-impacts"`
}

// OutputConfig controls candidate output.
type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// Config is the root-level settings struct.
type Config struct {
	// indexed reference FASTA
	Reference string `mapstructure:"reference"`
	// alignment files to call from
	BAMs []string `mapstructure:"bams"`
	// check BAM indexes and read overlap before calling
	Preflight bool `mapstructure:"preflight"`
	// peaks processed concurrently, 0 means one per CPU
	Workers int `mapstructure:"workers"`
	// DuckDB file for run results, empty to disable
	Store string `mapstructure:"store"`

	Caller    CallerConfig    `mapstructure:"caller"`
	Annotator AnnotatorConfig `mapstructure:"annotator"`
	Filter    FilterConfig    `mapstructure:"filter"`
	Output    OutputConfig    `mapstructure:"output"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("preflight", true)
	v.SetDefault("workers", 1)
	v.SetDefault("caller.backend", caller.BackendBCFTools)
	v.SetDefault("annotator.backend", annotate.BackendVEP)
	v.SetDefault("annotator.species", "homo_sapiens")
	v.SetDefault("annotator.assembly", "GRCh38")
	v.SetDefault("filter.exclude-impacts", []string{annotate.ImpactLow})
	v.SetDefault("output.format", output.FormatTab)
}

// Load unmarshals the settings held by v.
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &c, nil
}

// Validate checks that the settings describe a runnable pipeline.
func (c *Config) Validate() error {
	var errs []error

	backend := strings.ToLower(c.Caller.Backend)
	switch backend {
	case caller.BackendBCFTools, caller.BackendFreeBayes, "":
		if c.Reference == "" {
			errs = append(errs, fmt.Errorf("reference FASTA is required for the %s caller", defaultString(backend, caller.BackendBCFTools)))
		}
		if len(c.BAMs) == 0 {
			errs = append(errs, errors.New("at least one BAM is required"))
		}
	case caller.BackendTabix:
		if c.Caller.Calls == "" {
			errs = append(errs, errors.New("caller.calls is required for the tabix caller"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown caller backend %q", c.Caller.Backend))
	}

	switch strings.ToLower(c.Annotator.Backend) {
	case annotate.BackendVEP, annotate.BackendVibeVEP, "":
	case annotate.BackendSnpEff:
		if c.Annotator.Database == "" {
			errs = append(errs, errors.New("annotator.database is required for snpEff"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown annotator backend %q", c.Annotator.Backend))
	}

	for _, imp := range c.Filter.ExcludeImpacts {
		switch strings.ToUpper(imp) {
		case annotate.ImpactHigh, annotate.ImpactModerate, annotate.ImpactLow, annotate.ImpactModifier:
		default:
			errs = append(errs, fmt.Errorf("unknown impact %q in filter.exclude-impacts", imp))
		}
	}

	switch strings.ToLower(c.Output.Format) {
	case output.FormatTab, output.FormatVCF, output.FormatJSON, "":
	default:
		errs = append(errs, fmt.Errorf("unknown output format %q", c.Output.Format))
	}

	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", c.Workers))
	}

	return errors.Join(errs...)
}

// CallerOptions converts the caller settings.
func (c *Config) CallerOptions() caller.Options {
	return caller.Options{
		Backend:    c.Caller.Backend,
		Reference:  c.Reference,
		Binary:     c.Caller.Binary,
		Calls:      c.Caller.Calls,
		Args:       c.Caller.Args,
		PileupArgs: c.Caller.MpileupArgs,
	}
}

// AnnotatorOptions converts the annotator settings.
func (c *Config) AnnotatorOptions() annotate.Options {
	return annotate.Options{
		Backend:   c.Annotator.Backend,
		Binary:    c.Annotator.Binary,
		Species:   c.Annotator.Species,
		Assembly:  c.Annotator.Assembly,
		CacheDir:  c.Annotator.CacheDir,
		Database:  c.Annotator.Database,
		Reference: c.Reference,
		Args:      c.Annotator.Args,
		TmpDir:    c.Annotator.TmpDir,
	}
}

// UsesBAMs reports whether the caller reads the configured BAMs.
func (c *Config) UsesBAMs() bool {
	return strings.ToLower(c.Caller.Backend) != caller.BackendTabix
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
