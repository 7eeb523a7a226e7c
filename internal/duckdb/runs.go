package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/mutpeak/internal/rank"
)

var (
	// ErrRunNotFound is returned when no run matches an ID or prefix.
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousRun is returned when an ID prefix matches several runs.
	ErrAmbiguousRun = errors.New("run ID prefix is ambiguous")
)

// Run describes one invocation of the ranking pipeline.
type Run struct {
	ID             string
	StartedAt      time.Time
	Caller         string
	Predictor      string
	ExcludeImpacts []string
	Peaks          int
	FailedPeaks    int
	Candidates     int
	Inputs         []FileFingerprint
}

// StoredCandidate is a candidate row as persisted, flattened to the
// annotation carrying its impact.
type StoredCandidate struct {
	RunID       string
	PeakIndex   int
	Peak        string
	Rank        int
	Chrom       string
	Pos         int64
	Ref         string
	Alt         string
	Qual        float64
	Impact      string
	Density     float64 // NaN when undefined
	Gene        string
	Consequence string
	Feature     string
	HGVSc       string
	HGVSp       string
	Annotations int
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// WriteRun stores run and its candidates. Candidates are expected in peak
// order; peak_index follows the order in which peaks first appear. An
// empty run.ID is replaced with a new one. Candidates and Inputs are
// batch-inserted with the Appender API.
func (s *Store) WriteRun(run *Run, cands []*rank.Candidate) error {
	if run.ID == "" {
		run.ID = NewRunID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Candidates = len(cands)

	if _, err := s.db.Exec(`INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.Caller, run.Predictor,
		strings.Join(run.ExcludeImpacts, ","),
		int64(run.Peaks), int64(run.FailedPeaks), int64(run.Candidates),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	if err := appendRows(conn, "candidates", candidateRows(run.ID, cands)); err != nil {
		return fmt.Errorf("append candidates: %w", err)
	}
	if err := appendRows(conn, "inputs", inputRows(run.ID, run.Inputs)); err != nil {
		return fmt.Errorf("append inputs: %w", err)
	}
	return nil
}

func candidateRows(runID string, cands []*rank.Candidate) [][]driver.Value {
	peakIndex := make(map[string]int)
	rows := make([][]driver.Value, 0, len(cands))
	for _, c := range cands {
		idx, ok := peakIndex[c.Peak]
		if !ok {
			idx = len(peakIndex)
			peakIndex[c.Peak] = idx
		}

		var density driver.Value
		if !math.IsNaN(c.Score) && !math.IsInf(c.Score, 0) {
			density = c.Score
		}
		var gene, consequence, feature, hgvsc, hgvsp string
		if ann := c.Worst(); ann != nil {
			gene, consequence, feature = ann.Gene, ann.Consequence, ann.Feature
			hgvsc, hgvsp = ann.HGVSc, ann.HGVSp
		}

		v := c.Variant
		rows = append(rows, []driver.Value{
			runID, int64(idx), c.Peak, int64(c.Rank),
			v.Chrom, v.Pos, v.Ref, v.Alt, v.Qual,
			c.Impact, density,
			gene, consequence, feature, hgvsc, hgvsp,
			int64(len(c.Annotations)),
		})
	}
	return rows
}

func inputRows(runID string, inputs []FileFingerprint) [][]driver.Value {
	rows := make([][]driver.Value, 0, len(inputs))
	for _, in := range inputs {
		rows = append(rows, []driver.Value{runID, in.Kind, in.Path, in.Size, in.ModTime.UTC()})
	}
	return rows
}

func appendRows(conn *sql.Conn, table string, rows [][]driver.Value) error {
	if len(rows) == 0 {
		return nil
	}

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, row := range rows {
		if err := appender.AppendRow(row...); err != nil {
			return err
		}
	}
	return appender.Flush()
}

// ListRuns returns all runs, most recent first. Inputs are not loaded.
func (s *Store) ListRuns() ([]Run, error) {
	rows, err := s.db.Query(`SELECT
		id, started_at, caller, predictor, exclude_impacts, peaks, failed_peaks, candidates
		FROM runs ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns the run whose ID equals or starts with idOrPrefix,
// including its inputs.
func (s *Store) GetRun(idOrPrefix string) (*Run, error) {
	id, err := s.ResolveRunID(idOrPrefix)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRow(`SELECT
		id, started_at, caller, predictor, exclude_impacts, peaks, failed_peaks, candidates
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT kind, path, size, mod_time FROM inputs WHERE run_id = ? ORDER BY kind, path`, id)
	if err != nil {
		return nil, fmt.Errorf("query inputs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var fp FileFingerprint
		if err := rows.Scan(&fp.Kind, &fp.Path, &fp.Size, &fp.ModTime); err != nil {
			return nil, fmt.Errorf("scan input: %w", err)
		}
		run.Inputs = append(run.Inputs, fp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inputs: %w", err)
	}
	return run, nil
}

// ResolveRunID expands an ID prefix to a full run ID.
func (s *Store) ResolveRunID(prefix string) (string, error) {
	if prefix == "" {
		return "", ErrRunNotFound
	}
	rows, err := s.db.Query(`SELECT id FROM runs WHERE starts_with(id, ?) LIMIT 2`, prefix)
	if err != nil {
		return "", fmt.Errorf("query run id: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate run ids: %w", err)
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%s: %w", prefix, ErrRunNotFound)
	case 1:
		return ids[0], nil
	default:
		for _, id := range ids {
			if id == prefix {
				return id, nil
			}
		}
		return "", fmt.Errorf("%s: %w", prefix, ErrAmbiguousRun)
	}
}

// Candidates returns the stored candidates of a run in peak then rank
// order. A limit <= 0 returns all of them.
func (s *Store) Candidates(runID string, limit int) ([]StoredCandidate, error) {
	query := `SELECT
		run_id, peak_index, peak, peak_rank, chrom, pos, ref, alt, qual,
		impact, density, gene, consequence, feature, hgvsc, hgvsp, annotations
		FROM candidates WHERE run_id = ?
		ORDER BY peak_index, peak_rank`
	args := []any{runID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, int64(limit))
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var out []StoredCandidate
	for rows.Next() {
		var c StoredCandidate
		var peakIndex, rank, anns int64
		var density sql.NullFloat64
		if err := rows.Scan(
			&c.RunID, &peakIndex, &c.Peak, &rank, &c.Chrom, &c.Pos, &c.Ref, &c.Alt, &c.Qual,
			&c.Impact, &density, &c.Gene, &c.Consequence, &c.Feature, &c.HGVSc, &c.HGVSp, &anns,
		); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c.PeakIndex = int(peakIndex)
		c.Rank = int(rank)
		c.Annotations = int(anns)
		c.Density = math.NaN()
		if density.Valid {
			c.Density = density.Float64
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}

// DeleteRun removes a run with its candidates and inputs.
func (s *Store) DeleteRun(idOrPrefix string) error {
	id, err := s.ResolveRunID(idOrPrefix)
	if err != nil {
		return err
	}
	for _, stmt := range []string{
		`DELETE FROM candidates WHERE run_id = ?`,
		`DELETE FROM inputs WHERE run_id = ?`,
		`DELETE FROM runs WHERE id = ?`,
	} {
		if _, err := s.db.Exec(stmt, id); err != nil {
			return fmt.Errorf("delete run %s: %w", id, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var exclude string
	var peaks, failed, cands int64
	if err := row.Scan(&r.ID, &r.StartedAt, &r.Caller, &r.Predictor, &exclude, &peaks, &failed, &cands); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if exclude != "" {
		r.ExcludeImpacts = strings.Split(exclude, ",")
	}
	r.Peaks = int(peaks)
	r.FailedPeaks = int(failed)
	r.Candidates = int(cands)
	return &r, nil
}
