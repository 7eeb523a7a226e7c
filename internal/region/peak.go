package region

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"
)

// Density model names accepted in peak files.
const (
	ModelTable    = "table"
	ModelKDE      = "kde"
	ModelGaussian = "gaussian"
)

// Peak is a candidate region produced by peak detection, together with the
// density function used to rank variants inside it.
type Peak struct {
	Name    string
	Region  Region
	Density Density
}

// Score evaluates the peak density at pos.
func (p *Peak) Score(pos float64) float64 {
	return p.Density.Score(pos)
}

// peakFile is the on-disk layout of a peaks YAML file.
type peakFile struct {
	Peaks []peakEntry `yaml:"peaks"`
}

type peakEntry struct {
	Name    string      `yaml:"name"`
	Chrom   string      `yaml:"chrom"`
	Start   int64       `yaml:"start"`
	End     int64       `yaml:"end"`
	Density DensitySpec `yaml:"density"`
}

// DensitySpec describes how to build a Density.
type DensitySpec struct {
	Model string `yaml:"model"`

	// table and kde
	Positions []float64 `yaml:"positions"`
	Values    []float64 `yaml:"values"`
	Path      string    `yaml:"path"`

	// kde
	Weights   []float64 `yaml:"weights"`
	Bandwidth float64   `yaml:"bandwidth"`

	// gaussian
	Amplitude float64 `yaml:"amplitude"`
	Mean      float64 `yaml:"mean"`
	SD        float64 `yaml:"sd"`
}

// Build constructs the Density. Relative table paths are resolved against
// baseDir.
func (s DensitySpec) Build(baseDir string) (Density, error) {
	positions, values := s.Positions, s.Values
	if s.Path != "" {
		path := s.Path
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		var err error
		positions, values, err = ReadDensityTable(path)
		if err != nil {
			return nil, err
		}
	}

	switch strings.ToLower(s.Model) {
	case ModelTable, "":
		return NewTableDensity(positions, values)
	case ModelKDE:
		weights := s.Weights
		if weights == nil && s.Path != "" {
			weights = values
		}
		return NewKernelDensity(positions, weights, s.Bandwidth)
	case ModelGaussian:
		return NewGaussianDensity(s.Amplitude, s.Mean, s.SD)
	default:
		return nil, fmt.Errorf("unknown density model %q", s.Model)
	}
}

// LoadPeaks reads peaks from a YAML file.
func LoadPeaks(path string) ([]*Peak, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open peaks file: %w", err)
	}
	defer f.Close()

	return ReadPeaks(f, filepath.Dir(path))
}

// ReadPeaks decodes peaks from r. baseDir resolves relative density table paths.
func ReadPeaks(r io.Reader, baseDir string) ([]*Peak, error) {
	var pf peakFile
	if err := yaml.NewDecoder(r).Decode(&pf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("peaks file is empty")
		}
		return nil, fmt.Errorf("decode peaks file: %w", err)
	}
	if len(pf.Peaks) == 0 {
		return nil, fmt.Errorf("peaks file lists no peaks")
	}

	peaks := make([]*Peak, 0, len(pf.Peaks))
	for i, e := range pf.Peaks {
		reg := Region{Chrom: e.Chrom, Start: e.Start, End: e.End}
		if err := reg.Validate(); err != nil {
			return nil, fmt.Errorf("peak %d: %w", i+1, err)
		}
		d, err := e.Density.Build(baseDir)
		if err != nil {
			return nil, fmt.Errorf("peak %d (%s): %w", i+1, reg, err)
		}
		name := e.Name
		if name == "" {
			name = reg.String()
		}
		peaks = append(peaks, &Peak{Name: name, Region: reg, Density: d})
	}
	return peaks, nil
}

// densityRow is one line of a density table.
type densityRow struct {
	Position float64 `csv:"position"`
	Density  float64 `csv:"density"`
}

// ReadDensityTable reads a tab-separated table with "position" and
// "density" header columns. Lines starting with '#' are skipped.
func ReadDensityTable(path string) (positions, values []float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open density table: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comma = '\t'
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	var rows []*densityRow
	if err := gocsv.UnmarshalCSV(cr, &rows); err != nil {
		return nil, nil, fmt.Errorf("read density table %s: %w", path, err)
	}
	for _, r := range rows {
		positions = append(positions, r.Position)
		values = append(values, r.Density)
	}
	return positions, values, nil
}
