package annotate

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/mutpeak/internal/toolrun"
	"github.com/inodb/mutpeak/internal/vcf"
)

// Predictor annotates a callset with predicted consequences.
// The result has one entry per input variant, in input order.
type Predictor interface {
	Name() string
	Annotate(ctx context.Context, cs *vcf.Callset) ([]*Annotated, error)
}

// Tool describes how to invoke one consequence predictor.
type Tool interface {
	// Name identifies the tool in logs and errors.
	Name() string
	// InfoKey is the INFO field the tool writes its annotations to.
	InfoKey() string
	// Command builds the invocation for a VCF at inputPath. The tool must
	// write annotated VCF to stdout.
	Command(inputPath string) toolrun.Command
}

// Annotator runs a Tool over a temporary VCF and maps the annotations
// back onto the input variants.
type Annotator struct {
	tool   Tool
	runner toolrun.Runner
	tmpDir string
	logger *zap.Logger
}

// NewAnnotator creates an annotator for tool. Temporary input files are
// created in tmpDir (the system default when empty).
func NewAnnotator(tool Tool, runner toolrun.Runner, tmpDir string) *Annotator {
	return &Annotator{
		tool:   tool,
		runner: runner,
		tmpDir: tmpDir,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for warning and info messages.
func (a *Annotator) SetLogger(l *zap.Logger) {
	a.logger = l
}

// Name returns the underlying tool name.
func (a *Annotator) Name() string {
	return a.tool.Name()
}

// Annotate writes cs to a temporary sites-only VCF, runs the predictor on
// it and parses the result. The temporary file is removed whether or not
// the tool succeeds. Variants the tool drops are returned without
// annotations.
func (a *Annotator) Annotate(ctx context.Context, cs *vcf.Callset) ([]*Annotated, error) {
	if cs.Len() == 0 {
		return nil, nil
	}

	input, err := a.writeInput(cs)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(input); err != nil && !os.IsNotExist(err) {
			a.logger.Warn("failed to remove temporary VCF", zap.String("path", input), zap.Error(err))
		}
	}()

	cmd := a.tool.Command(input)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := a.runner.Run(ctx, cmd); err != nil {
		return nil, fmt.Errorf("%s: %w", a.tool.Name(), err)
	}

	byKey, err := a.parseOutput(&out)
	if err != nil {
		return nil, fmt.Errorf("parse %s output: %w", a.tool.Name(), err)
	}

	results := make([]*Annotated, len(cs.Variants))
	missing := 0
	for i, v := range cs.Variants {
		anns, ok := byKey[v.Key()]
		if !ok {
			missing++
		}
		results[i] = &Annotated{Variant: v, Annotations: anns}
	}
	if missing > 0 {
		a.logger.Warn("variants missing from predictor output",
			zap.String("tool", a.tool.Name()),
			zap.Int("missing", missing),
			zap.Int("total", len(cs.Variants)))
	}
	return results, nil
}

func (a *Annotator) writeInput(cs *vcf.Callset) (string, error) {
	f, err := os.CreateTemp(a.tmpDir, "mutpeak-*.vcf")
	if err != nil {
		return "", fmt.Errorf("create temporary VCF: %w", err)
	}

	if err := vcf.WriteSitesOnly(f, cs); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write temporary VCF: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close temporary VCF: %w", err)
	}
	return f.Name(), nil
}

func (a *Annotator) parseOutput(out *bytes.Buffer) (map[string][]*Annotation, error) {
	annotated, err := vcf.ReadCallset(out)
	if err != nil {
		return nil, err
	}

	key := a.tool.InfoKey()
	var format []string
	if annotated.Header != nil {
		if info, ok := annotated.Header.Infos[key]; ok {
			format = ParseFormat(info.Description)
		}
	}
	if format == nil && annotated.Len() > 0 {
		return nil, fmt.Errorf("no %s INFO header in output", key)
	}

	byKey := make(map[string][]*Annotation, annotated.Len())
	for _, v := range annotated.Variants {
		anns := ParseEntries(v.InfoValue(key), format)
		k := v.Key()
		byKey[k] = append(byKey[k], anns...)
	}
	return byKey, nil
}

// Options configures the predictor built by New.
type Options struct {
	Backend   string   // vep, snpeff or vibe-vep
	Binary    string   // tool binary, defaults per backend
	Species   string   // VEP species
	Assembly  string   // genome assembly (VEP, vibe-vep)
	CacheDir  string   // VEP cache directory
	Database  string   // snpEff database, e.g. GRCz11.99
	Reference string   // optional FASTA for VEP HGVS notation
	Args      []string // extra tool arguments
	TmpDir    string   // directory for temporary input files
}

// Backend names.
const (
	BackendVEP     = "vep"
	BackendSnpEff  = "snpeff"
	BackendVibeVEP = "vibe-vep"
)

// DefaultBinary returns the executable run by backend.
func DefaultBinary(backend string) string {
	switch strings.ToLower(backend) {
	case BackendVEP, "":
		return "vep"
	case BackendSnpEff:
		return "snpEff"
	case BackendVibeVEP:
		return "vibe-vep"
	default:
		return ""
	}
}

// New builds the Annotator selected by opts.Backend.
func New(opts Options, runner toolrun.Runner, logger *zap.Logger) (*Annotator, error) {
	var tool Tool
	switch strings.ToLower(opts.Backend) {
	case BackendVEP, "":
		tool = &VEP{
			Binary:    defaultString(opts.Binary, DefaultBinary(BackendVEP)),
			Species:   opts.Species,
			Assembly:  opts.Assembly,
			CacheDir:  opts.CacheDir,
			Reference: opts.Reference,
			Args:      opts.Args,
		}
	case BackendSnpEff:
		if opts.Database == "" {
			return nil, fmt.Errorf("snpEff requires a database name")
		}
		tool = &SnpEff{
			Binary:   defaultString(opts.Binary, DefaultBinary(BackendSnpEff)),
			Database: opts.Database,
			Args:     opts.Args,
		}
	case BackendVibeVEP:
		tool = &VibeVEP{
			Binary:   defaultString(opts.Binary, DefaultBinary(BackendVibeVEP)),
			Assembly: opts.Assembly,
			Args:     opts.Args,
		}
	default:
		return nil, fmt.Errorf("unknown annotator backend %q", opts.Backend)
	}

	a := NewAnnotator(tool, runner, opts.TmpDir)
	if logger != nil {
		a.SetLogger(logger)
	}
	return a, nil
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
