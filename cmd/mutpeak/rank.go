package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/carbocation/vcfgo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/mutpeak/internal/annotate"
	"github.com/inodb/mutpeak/internal/caller"
	"github.com/inodb/mutpeak/internal/config"
	"github.com/inodb/mutpeak/internal/duckdb"
	"github.com/inodb/mutpeak/internal/output"
	"github.com/inodb/mutpeak/internal/pipeline"
	"github.com/inodb/mutpeak/internal/rank"
	"github.com/inodb/mutpeak/internal/region"
	"github.com/inodb/mutpeak/internal/toolrun"
)

// Tool execution and binary lookup, replaced in tests.
var (
	newRunner = func(l *zap.Logger) toolrun.Runner { return toolrun.NewExecRunner(l) }
	lookPath  = toolrun.LookPath
)

type rankOptions struct {
	peaksFile   string
	regionStr   string
	densityFile string
	name        string
	outputFile  string
}

func newRankCmd() *cobra.Command {
	var opts rankOptions

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Call, annotate, filter and rank variants under peaks",
		Long: `Call variants inside each peak region, annotate their consequences,
drop low-impact variants and rank the rest by peak density.

Peaks come from a YAML peaks file (--peaks) or a single region with a
density table (--region and --density).`,
		Example: `  mutpeak rank --peaks peaks.yaml --reference GRCz11.fa --bam mut.bam
  mutpeak rank --region chr5:1200000-1850000 --density chr5.tsv \
      --reference GRCz11.fa --bam mut1.bam --bam mut2.bam -f vcf -o candidates.vcf
  mutpeak rank --peaks peaks.yaml --caller tabix --calls calls.vcf.gz --store runs.duckdb`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRank(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.peaksFile, "peaks", "", "YAML peaks file")
	f.StringVar(&opts.regionStr, "region", "", "Single peak region, chr:start-end")
	f.StringVar(&opts.densityFile, "density", "", "Density table (position<TAB>density) for --region")
	f.StringVar(&opts.name, "name", "", "Peak name for --region (default: the region)")
	f.StringVarP(&opts.outputFile, "output", "o", "", "Output file (default: stdout)")

	f.String("reference", "", "Indexed reference FASTA")
	f.StringSlice("bam", nil, "Alignment file (repeatable)")
	f.Bool("preflight", true, "Check BAM indexes and read overlap before calling")
	f.String("caller", "", "Variant caller: bcftools, freebayes, tabix")
	f.String("calls", "", "Bgzipped, tabix-indexed callset for the tabix caller")
	f.String("annotator", "", "Consequence predictor: vep, snpeff, vibe-vep")
	f.StringSlice("exclude-impact", nil, "Impact to drop (repeatable, default LOW)")
	f.StringP("output-format", "f", "", "Output format: tab, vcf, json")
	f.IntP("workers", "j", 1, "Peaks processed concurrently (0 = one per CPU)")
	f.String("store", "", "DuckDB file to record the run in")

	for key, flag := range map[string]string{
		"reference":              "reference",
		"bams":                   "bam",
		"preflight":              "preflight",
		"caller.backend":         "caller",
		"caller.calls":           "calls",
		"annotator.backend":      "annotator",
		"filter.exclude-impacts": "exclude-impact",
		"output.format":          "output-format",
		"workers":                "workers",
		"store":                  "store",
	} {
		viper.BindPFlag(key, f.Lookup(flag))
	}

	return cmd
}

func runRank(ctx context.Context, opts rankOptions, stdout io.Writer) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return &usageError{err: err}
	}

	peaks, err := loadPeaks(opts)
	if err != nil {
		return err
	}

	logger, err := newLogger(viper.GetBool("verbose"))
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	p, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	out := stdout
	if opts.outputFile != "" {
		f, err := os.Create(opts.outputFile)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	sink := &candidateSink{format: cfg.Output.Format, out: out}

	run := &duckdb.Run{
		ID:             duckdb.NewRunID(),
		StartedAt:      time.Now(),
		Caller:         p.Caller.Name(),
		Predictor:      p.Predictor.Name(),
		ExcludeImpacts: cfg.Filter.ExcludeImpacts,
		Peaks:          len(peaks),
	}
	logger.Info("starting run",
		zap.String("run", run.ID),
		zap.Int("peaks", len(peaks)),
		zap.String("caller", run.Caller),
		zap.String("predictor", run.Predictor))

	var all []*rank.Candidate
	skipped := 0
	err = p.RunAll(ctx, peaks, cfg.Workers, func(r *pipeline.Result) error {
		if r.Err != nil {
			run.FailedPeaks++
			return nil
		}
		if r.Skipped {
			skipped++
		}
		if err := sink.write(r); err != nil {
			return err
		}
		all = append(all, r.Candidates...)
		return nil
	})
	if err != nil {
		return err
	}
	if err := sink.close(); err != nil {
		return err
	}

	if cfg.Store != "" {
		if err := recordRun(cfg, opts, run, all); err != nil {
			return err
		}
		logger.Info("recorded run", zap.String("run", run.ID), zap.String("store", cfg.Store))
	}

	logger.Info("run complete",
		zap.String("run", run.ID),
		zap.Int("candidates", len(all)),
		zap.Int("skipped_peaks", skipped),
		zap.Int("failed_peaks", run.FailedPeaks))

	if run.FailedPeaks > 0 {
		return fmt.Errorf("%d of %d peaks failed", run.FailedPeaks, len(peaks))
	}
	return nil
}

// candidateSink opens the output writer when the first candidates arrive,
// so VCF output carries the header of the callset they came from.
type candidateSink struct {
	format string
	out    io.Writer
	w      output.CandidateWriter
}

func (s *candidateSink) open(h *vcfgo.Header) error {
	if s.w != nil {
		return nil
	}
	w, err := output.NewWriter(s.format, s.out, h)
	if err != nil {
		return &usageError{err: err}
	}
	if err := w.WriteHeader(); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	s.w = w
	return nil
}

func (s *candidateSink) write(r *pipeline.Result) error {
	if len(r.Candidates) == 0 {
		return nil
	}
	if err := s.open(r.Header); err != nil {
		return err
	}
	for _, c := range r.Candidates {
		if err := s.w.Write(c); err != nil {
			return fmt.Errorf("writing candidate: %w", err)
		}
	}
	return nil
}

// close writes the header of an empty run and flushes.
func (s *candidateSink) close() error {
	if err := s.open(nil); err != nil {
		return err
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flushing output: %w", err)
	}
	return nil
}

// loadPeaks reads peaks from --peaks or builds one from --region/--density.
func loadPeaks(opts rankOptions) ([]*region.Peak, error) {
	switch {
	case opts.peaksFile != "" && opts.regionStr != "":
		return nil, usageErrorf("--peaks and --region are mutually exclusive")
	case opts.peaksFile != "":
		return region.LoadPeaks(opts.peaksFile)
	case opts.regionStr != "":
		if opts.densityFile == "" {
			return nil, usageErrorf("--region requires --density")
		}
		r, err := region.ParseRegion(opts.regionStr)
		if err != nil {
			return nil, &usageError{err: err}
		}
		d, err := region.DensitySpec{Model: region.ModelTable, Path: opts.densityFile}.Build("")
		if err != nil {
			return nil, err
		}
		name := opts.name
		if name == "" {
			name = r.String()
		}
		return []*region.Peak{{Name: name, Region: r, Density: d}}, nil
	default:
		return nil, usageErrorf("either --peaks or --region is required")
	}
}

// buildPipeline resolves tool binaries and wires caller, predictor and
// preflight together.
func buildPipeline(cfg *config.Config, logger *zap.Logger) (*pipeline.Pipeline, error) {
	runner := newRunner(logger)

	callerOpts := cfg.CallerOptions()
	if bin := defaultString(callerOpts.Binary, caller.DefaultBinary(callerOpts.Backend)); bin != "" {
		path, err := lookPath(bin, "caller.binary")
		if err != nil {
			return nil, err
		}
		callerOpts.Binary = path
	}
	c, err := caller.New(callerOpts, runner, logger)
	if err != nil {
		return nil, &usageError{err: err}
	}

	annOpts := cfg.AnnotatorOptions()
	path, err := lookPath(defaultString(annOpts.Binary, annotate.DefaultBinary(annOpts.Backend)), "annotator.binary")
	if err != nil {
		return nil, err
	}
	annOpts.Binary = path
	pred, err := annotate.New(annOpts, runner, logger)
	if err != nil {
		return nil, &usageError{err: err}
	}

	var bams []string
	if cfg.UsesBAMs() {
		bams = cfg.BAMs
	}
	p := pipeline.New(c, pred, bams)
	p.ExcludeImpacts = cfg.Filter.ExcludeImpacts
	if cfg.Preflight && len(bams) > 0 {
		p.Inspector = pipeline.BAMInspector
	}
	p.SetLogger(logger)
	return p, nil
}

// recordRun fingerprints the run inputs and stores the run.
func recordRun(cfg *config.Config, opts rankOptions, run *duckdb.Run, cands []*rank.Candidate) error {
	inputs := []struct{ kind, path string }{
		{duckdb.InputPeaks, opts.peaksFile},
		{duckdb.InputPeaks, opts.densityFile},
	}
	if cfg.UsesBAMs() {
		for _, b := range cfg.BAMs {
			inputs = append(inputs, struct{ kind, path string }{duckdb.InputBAM, b})
		}
	} else {
		inputs = append(inputs, struct{ kind, path string }{duckdb.InputCalls, cfg.Caller.Calls})
	}
	for _, in := range inputs {
		if in.path == "" {
			continue
		}
		fp, err := duckdb.StatFile(in.kind, in.path)
		if err != nil {
			return fmt.Errorf("fingerprint %s: %w", in.path, err)
		}
		run.Inputs = append(run.Inputs, fp)
	}

	store, err := duckdb.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.WriteRun(run, cands); err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
