package duckdb

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/mutpeak/internal/annotate"
	"github.com/inodb/mutpeak/internal/rank"
	"github.com/inodb/mutpeak/internal/vcf"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testCandidates() []*rank.Candidate {
	return []*rank.Candidate{
		{
			Variant: &vcf.Variant{Chrom: "chr5", Pos: 1200, Ref: "C", Alt: "T", Qual: 60},
			Annotations: []*annotate.Annotation{
				{Gene: "mdm2", Consequence: "upstream_gene_variant", Impact: "MODIFIER"},
				{Gene: "tp53", Consequence: "missense_variant", Impact: "MODERATE", Feature: "ENSDART1", HGVSc: "c.10C>T", HGVSp: "p.Arg4Cys"},
			},
			Impact: "MODERATE", Score: 0.8, Rank: 1, Peak: "peak1",
		},
		{
			Variant: &vcf.Variant{Chrom: "chr5", Pos: 1800, Ref: "GA", Alt: "G", Qual: 45},
			Score:   math.NaN(), Rank: 2, Peak: "peak1",
		},
		{
			Variant: &vcf.Variant{Chrom: "chr9", Pos: 700, Ref: "A", Alt: "G", Qual: 30},
			Annotations: []*annotate.Annotation{
				{Gene: "apc", Consequence: "stop_gained", Impact: "HIGH"},
			},
			Impact: "HIGH", Score: 0.1, Rank: 1, Peak: "peak2",
		},
	}
}

func TestOpenClose(t *testing.T) {
	s := openInMemory(t)
	assert.NotNil(t, s.DB())
	assert.Equal(t, "", s.Path())
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.duckdb")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestWriteRunAndCandidates(t *testing.T) {
	s := openInMemory(t)

	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	run := &Run{
		StartedAt:      started,
		Caller:         "bcftools",
		Predictor:      "vep",
		ExcludeImpacts: []string{"LOW"},
		Peaks:          2,
		Inputs: []FileFingerprint{
			{Kind: InputBAM, Path: "/data/mut.bam", Size: 1234, ModTime: started},
			{Kind: InputPeaks, Path: "/data/peaks.yaml", Size: 56, ModTime: started},
		},
	}
	require.NoError(t, s.WriteRun(run, testCandidates()))
	_, err := uuid.Parse(run.ID)
	require.NoError(t, err, "run ID is a UUID")
	assert.Equal(t, 3, run.Candidates)

	cands, err := s.Candidates(run.ID, 0)
	require.NoError(t, err)
	require.Len(t, cands, 3)

	first := cands[0]
	assert.Equal(t, 0, first.PeakIndex)
	assert.Equal(t, "peak1", first.Peak)
	assert.Equal(t, 1, first.Rank)
	assert.Equal(t, "chr5", first.Chrom)
	assert.Equal(t, int64(1200), first.Pos)
	assert.Equal(t, 60.0, first.Qual)
	assert.Equal(t, "MODERATE", first.Impact)
	assert.InDelta(t, 0.8, first.Density, 1e-12)
	assert.Equal(t, "tp53", first.Gene)
	assert.Equal(t, "p.Arg4Cys", first.HGVSp)
	assert.Equal(t, 2, first.Annotations)

	assert.True(t, math.IsNaN(cands[1].Density), "NaN density stored as NULL")
	assert.Equal(t, "", cands[1].Impact)

	assert.Equal(t, 1, cands[2].PeakIndex)
	assert.Equal(t, "apc", cands[2].Gene)

	limited, err := s.Candidates(run.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestGetRun(t *testing.T) {
	s := openInMemory(t)

	mod := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	run := &Run{
		ID:             "3f2c9a4e-0000-4000-8000-000000000001",
		StartedAt:      mod,
		Caller:         "freebayes",
		Predictor:      "snpeff",
		ExcludeImpacts: []string{"LOW", "MODIFIER"},
		Peaks:          3,
		FailedPeaks:    1,
		Inputs:         []FileFingerprint{{Kind: InputBAM, Path: "a.bam", Size: 10, ModTime: mod}},
	}
	require.NoError(t, s.WriteRun(run, nil))

	got, err := s.GetRun("3f2c9a4e")
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.True(t, mod.Equal(got.StartedAt))
	assert.Equal(t, "freebayes", got.Caller)
	assert.Equal(t, "snpeff", got.Predictor)
	assert.Equal(t, []string{"LOW", "MODIFIER"}, got.ExcludeImpacts)
	assert.Equal(t, 3, got.Peaks)
	assert.Equal(t, 1, got.FailedPeaks)
	assert.Equal(t, 0, got.Candidates)
	require.Len(t, got.Inputs, 1)
	assert.Equal(t, "a.bam", got.Inputs[0].Path)
	assert.Equal(t, int64(10), got.Inputs[0].Size)
	assert.True(t, mod.Equal(got.Inputs[0].ModTime))

	_, err = s.GetRun("ffff")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns(t *testing.T) {
	s := openInMemory(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"aaaa-1", "aaaa-2", "bbbb-1"} {
		require.NoError(t, s.WriteRun(&Run{ID: id, StartedAt: base.Add(time.Duration(i) * time.Hour)}, nil))
	}

	runs, err := s.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "bbbb-1", runs[0].ID, "most recent first")
	assert.Equal(t, "aaaa-1", runs[2].ID)

	_, err = s.ResolveRunID("aaaa")
	assert.ErrorIs(t, err, ErrAmbiguousRun)

	id, err := s.ResolveRunID("bb")
	require.NoError(t, err)
	assert.Equal(t, "bbbb-1", id)
}

func TestDeleteRun(t *testing.T) {
	s := openInMemory(t)

	keep := &Run{ID: "keep"}
	drop := &Run{ID: "drop", Inputs: []FileFingerprint{{Kind: InputBAM, Path: "x.bam", ModTime: time.Now()}}}
	require.NoError(t, s.WriteRun(keep, testCandidates()))
	require.NoError(t, s.WriteRun(drop, testCandidates()))

	require.NoError(t, s.DeleteRun("drop"))

	_, err := s.GetRun("drop")
	assert.ErrorIs(t, err, ErrRunNotFound)
	cands, err := s.Candidates("drop", 0)
	require.NoError(t, err)
	assert.Empty(t, cands)

	cands, err = s.Candidates("keep", 0)
	require.NoError(t, err)
	assert.Len(t, cands, 3)

	var inputs int
	require.NoError(t, s.DB().QueryRow(`SELECT count(*) FROM inputs WHERE run_id = 'drop'`).Scan(&inputs))
	assert.Equal(t, 0, inputs)

	assert.ErrorIs(t, s.DeleteRun("missing"), ErrRunNotFound)
}

func TestStatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peaks.yaml")
	require.NoError(t, os.WriteFile(path, []byte("peaks: []\n"), 0o644))

	fp, err := StatFile(InputPeaks, path)
	require.NoError(t, err)
	assert.Equal(t, InputPeaks, fp.Kind)
	assert.Equal(t, path, fp.Path)
	assert.Equal(t, int64(10), fp.Size)
	assert.False(t, fp.ModTime.IsZero())

	_, err = StatFile(InputBAM, filepath.Join(t.TempDir(), "missing.bam"))
	assert.Error(t, err)
}
