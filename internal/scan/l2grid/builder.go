package l2grid

import (
	"fmt"
	"math"

	"github.com/banshee-data/scanmesh/internal/monitoring"
	"github.com/banshee-data/scanmesh/internal/scan"
)

// Config holds the caller-supplied range parameters. There are no defaults
// here; see internal/config for the application defaults.
type Config struct {
	// CenterDistance is the distance from the rangefinder to the rotation
	// axis. radius = CenterDistance - sample.
	CenterDistance float64
	// MaxDistance is the largest radius kept. Larger radii are far-range
	// returns and become missing cells.
	MaxDistance float64
}

// Validate checks the parameters are usable.
func (c Config) Validate() error {
	if math.IsNaN(c.CenterDistance) || math.IsInf(c.CenterDistance, 0) {
		return fmt.Errorf("%w: center distance %v", scan.ErrInvalidConfig, c.CenterDistance)
	}
	if !(c.MaxDistance > 0) || math.IsInf(c.MaxDistance, 0) {
		return fmt.Errorf("%w: max distance %v", scan.ErrInvalidConfig, c.MaxDistance)
	}
	return nil
}

// BuildStats reports what the builder changed.
type BuildStats struct {
	ClampedSamples int `json:"clamped_samples"`
	ClampedRadii   int `json:"clamped_radii"`
	MissingCells   int `json:"missing_cells"`
}

// Build converts slices into a radius grid. Row i is slice i, column j is
// angular bin j. Negative samples are clamped to 0 before inversion, radii
// above MaxDistance are marked missing and radii below 0 are clamped to 0.
func Build(slices []scan.Slice, cfg Config) (*scan.RadiusGrid, BuildStats, error) {
	var stats BuildStats
	if err := cfg.Validate(); err != nil {
		return nil, stats, err
	}
	if len(slices) == 0 || len(slices[0]) == 0 {
		return nil, stats, scan.ErrEmptyScan
	}
	cols := len(slices[0])
	for i, s := range slices {
		if len(s) != cols {
			return nil, stats, fmt.Errorf("%w: slice %d has %d samples, want %d", scan.ErrNonRectangularScan, i, len(s), cols)
		}
	}

	g, err := scan.NewRadiusGrid(len(slices), cols)
	if err != nil {
		return nil, stats, err
	}
	for i, s := range slices {
		for j, sample := range s {
			if sample < 0 {
				sample = 0
				stats.ClampedSamples++
			}
			r := cfg.CenterDistance - sample
			switch {
			case r > cfg.MaxDistance:
				g.SetMissing(i, j)
				stats.MissingCells++
			case r < 0:
				g.Set(i, j, 0)
				stats.ClampedRadii++
			default:
				g.Set(i, j, r)
			}
		}
	}

	monitoring.Logf("[l2grid] %dx%d grid: %d missing, %d clamped samples, %d clamped radii",
		len(slices), cols, stats.MissingCells, stats.ClampedSamples, stats.ClampedRadii)
	return g, stats, nil
}
