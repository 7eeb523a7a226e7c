// Package caller delegates variant calling inside a peak region to an
// external caller, or queries an existing indexed callset.
package caller

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/mutpeak/internal/region"
	"github.com/inodb/mutpeak/internal/toolrun"
	"github.com/inodb/mutpeak/internal/vcf"
)

// Backend names.
const (
	BackendBCFTools  = "bcftools"
	BackendFreeBayes = "freebayes"
	BackendTabix     = "tabix"
)

// Caller calls variants in a region from one or more alignment files.
// A region without variants yields an empty callset, not an error.
type Caller interface {
	Name() string
	Call(ctx context.Context, bams []string, r region.Region) (*vcf.Callset, error)
}

// Options configures a Caller.
type Options struct {
	Backend    string   // bcftools, freebayes or tabix
	Reference  string   // indexed reference FASTA (bcftools, freebayes)
	Binary     string   // tool binary, defaults to the backend name
	Calls      string   // bgzipped, tabix-indexed VCF (tabix backend)
	Args       []string // extra arguments passed to the caller ("bcftools call" for bcftools)
	PileupArgs []string // extra arguments for "bcftools mpileup"
}

// DefaultBinary returns the executable run by backend, or "" when the
// backend runs no external tool.
func DefaultBinary(backend string) string {
	switch strings.ToLower(backend) {
	case BackendBCFTools, "":
		return BackendBCFTools
	case BackendFreeBayes:
		return BackendFreeBayes
	default:
		return ""
	}
}

// New creates the Caller selected by opts.Backend.
func New(opts Options, runner toolrun.Runner, logger *zap.Logger) (Caller, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch strings.ToLower(opts.Backend) {
	case BackendBCFTools, "":
		if opts.Reference == "" {
			return nil, fmt.Errorf("bcftools caller requires a reference FASTA")
		}
		return &BCFTools{
			Binary:      defaultString(opts.Binary, BackendBCFTools),
			Reference:   opts.Reference,
			MpileupArgs: opts.PileupArgs,
			CallArgs:    opts.Args,
			runner:      runner,
			logger:      logger,
		}, nil
	case BackendFreeBayes:
		if opts.Reference == "" {
			return nil, fmt.Errorf("freebayes caller requires a reference FASTA")
		}
		return &FreeBayes{
			Binary:    defaultString(opts.Binary, BackendFreeBayes),
			Reference: opts.Reference,
			Args:      opts.Args,
			runner:    runner,
			logger:    logger,
		}, nil
	case BackendTabix:
		if opts.Calls == "" {
			return nil, fmt.Errorf("tabix caller requires a callset path")
		}
		return NewTabix(opts.Calls, logger), nil
	default:
		return nil, fmt.Errorf("unknown caller backend %q", opts.Backend)
	}
}

// BCFTools calls variants with "bcftools mpileup | bcftools call".
type BCFTools struct {
	Binary      string
	Reference   string
	MpileupArgs []string
	CallArgs    []string

	runner toolrun.Runner
	logger *zap.Logger
}

// Name returns the backend name.
func (b *BCFTools) Name() string { return BackendBCFTools }

// Call runs mpileup over the region and feeds its uncompressed BCF to
// "bcftools call -mv", keeping only variant sites.
func (b *BCFTools) Call(ctx context.Context, bams []string, r region.Region) (*vcf.Callset, error) {
	if len(bams) == 0 {
		return nil, fmt.Errorf("no alignment files")
	}

	mpileupArgs := []string{
		"mpileup",
		"--fasta-ref", b.Reference,
		"--regions", r.String(),
		"--annotate", "FORMAT/AD,FORMAT/DP",
		"--output-type", "u",
	}
	mpileupArgs = append(mpileupArgs, b.MpileupArgs...)
	mpileupArgs = append(mpileupArgs, bams...)

	var pileup bytes.Buffer
	if err := b.runner.Run(ctx, toolrun.Command{
		Name:   b.Binary,
		Args:   mpileupArgs,
		Stdout: &pileup,
	}); err != nil {
		return nil, fmt.Errorf("bcftools mpileup %s: %w", r, err)
	}

	callArgs := []string{"call", "--multiallelic-caller", "--variants-only", "--output-type", "v"}
	callArgs = append(callArgs, b.CallArgs...)
	callArgs = append(callArgs, "-")

	var out bytes.Buffer
	if err := b.runner.Run(ctx, toolrun.Command{
		Name:   b.Binary,
		Args:   callArgs,
		Stdin:  &pileup,
		Stdout: &out,
	}); err != nil {
		return nil, fmt.Errorf("bcftools call %s: %w", r, err)
	}

	cs, err := vcf.ReadCallset(&out)
	if err != nil {
		return nil, fmt.Errorf("parse bcftools output: %w", err)
	}
	b.logger.Debug("bcftools finished", zap.String("region", r.String()), zap.Int("variants", cs.Len()))
	return cs, nil
}

// FreeBayes calls variants with freebayes.
type FreeBayes struct {
	Binary    string
	Reference string
	Args      []string

	runner toolrun.Runner
	logger *zap.Logger
}

// Name returns the backend name.
func (f *FreeBayes) Name() string { return BackendFreeBayes }

// Call runs freebayes restricted to the region.
func (f *FreeBayes) Call(ctx context.Context, bams []string, r region.Region) (*vcf.Callset, error) {
	if len(bams) == 0 {
		return nil, fmt.Errorf("no alignment files")
	}

	args := []string{"--fasta-reference", f.Reference, "--region", r.String()}
	args = append(args, f.Args...)
	for _, b := range bams {
		args = append(args, "--bam", b)
	}

	var out bytes.Buffer
	if err := f.runner.Run(ctx, toolrun.Command{Name: f.Binary, Args: args, Stdout: &out}); err != nil {
		return nil, fmt.Errorf("freebayes %s: %w", r, err)
	}

	cs, err := vcf.ReadCallset(&out)
	if err != nil {
		return nil, fmt.Errorf("parse freebayes output: %w", err)
	}
	f.logger.Debug("freebayes finished", zap.String("region", r.String()), zap.Int("variants", cs.Len()))
	return cs, nil
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
