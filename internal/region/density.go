package region

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat/distuv"
)

// Density maps a genomic position to a peak density score.
type Density interface {
	Score(pos float64) float64
}

// DensityFunc adapts an ordinary function to the Density interface.
type DensityFunc func(pos float64) float64

// Score calls f(pos).
func (f DensityFunc) Score(pos float64) float64 {
	return f(pos)
}

// TableDensity linearly interpolates between tabulated density values.
// Positions outside the tabulated domain have no defined density and
// score NaN.
type TableDensity struct {
	min, max float64
	pl       interp.PiecewiseLinear
}

// NewTableDensity builds a TableDensity from (position, density) points.
// Points are sorted by position; duplicate positions are rejected.
func NewTableDensity(positions, values []float64) (*TableDensity, error) {
	if len(positions) != len(values) {
		return nil, fmt.Errorf("density table: %d positions but %d values", len(positions), len(values))
	}
	if len(positions) < 2 {
		return nil, fmt.Errorf("density table: need at least 2 points, got %d", len(positions))
	}

	idx := make([]int, len(positions))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return positions[idx[a]] < positions[idx[b]] })

	xs := make([]float64, len(idx))
	ys := make([]float64, len(idx))
	for i, j := range idx {
		xs[i] = positions[j]
		ys[i] = values[j]
		if i > 0 && xs[i] == xs[i-1] {
			return nil, fmt.Errorf("density table: duplicate position %g", xs[i])
		}
	}

	d := &TableDensity{min: xs[0], max: xs[len(xs)-1]}
	if err := d.pl.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("density table: %w", err)
	}
	return d, nil
}

// Score returns the interpolated density at pos.
func (d *TableDensity) Score(pos float64) float64 {
	if pos < d.min || pos > d.max || math.IsNaN(pos) {
		return math.NaN()
	}
	return d.pl.Predict(pos)
}

// KernelDensity is a Gaussian kernel density estimate over weighted
// sample positions.
type KernelDensity struct {
	positions []float64
	weights   []float64
	total     float64
	bandwidth float64
}

// NewKernelDensity builds a kernel density estimate. weights may be nil,
// in which case every position has weight 1.
func NewKernelDensity(positions, weights []float64, bandwidth float64) (*KernelDensity, error) {
	if len(positions) == 0 {
		return nil, fmt.Errorf("kernel density: no positions")
	}
	if bandwidth <= 0 {
		return nil, fmt.Errorf("kernel density: bandwidth must be positive, got %g", bandwidth)
	}
	if weights != nil && len(weights) != len(positions) {
		return nil, fmt.Errorf("kernel density: %d positions but %d weights", len(positions), len(weights))
	}

	d := &KernelDensity{positions: positions, bandwidth: bandwidth}
	if weights == nil {
		d.weights = make([]float64, len(positions))
		for i := range d.weights {
			d.weights[i] = 1
		}
	} else {
		d.weights = weights
	}
	for _, w := range d.weights {
		if w < 0 {
			return nil, fmt.Errorf("kernel density: negative weight %g", w)
		}
		d.total += w
	}
	if d.total == 0 {
		return nil, fmt.Errorf("kernel density: weights sum to zero")
	}
	return d, nil
}

// Score returns the estimated density at pos.
func (d *KernelDensity) Score(pos float64) float64 {
	var sum float64
	for i, p := range d.positions {
		if d.weights[i] == 0 {
			continue
		}
		k := distuv.Normal{Mu: p, Sigma: d.bandwidth}
		sum += d.weights[i] * k.Prob(pos)
	}
	return sum / d.total
}

// GaussianDensity is a fitted Gaussian peak curve.
type GaussianDensity struct {
	Amplitude float64
	normal    distuv.Normal
}

// NewGaussianDensity returns amplitude * N(mean, sd) evaluated pointwise.
func NewGaussianDensity(amplitude, mean, sd float64) (*GaussianDensity, error) {
	if sd <= 0 {
		return nil, fmt.Errorf("gaussian density: sd must be positive, got %g", sd)
	}
	if amplitude == 0 {
		amplitude = 1
	}
	return &GaussianDensity{
		Amplitude: amplitude,
		normal:    distuv.Normal{Mu: mean, Sigma: sd},
	}, nil
}

// Score returns the curve height at pos.
func (d *GaussianDensity) Score(pos float64) float64 {
	return d.Amplitude * d.normal.Prob(pos)
}
