// Package monitor renders diagnostic views of a radius grid: a PNG heatmap
// for the CLI and an interactive HTML heatmap for the HTTP server.
package monitor

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/scanmesh/internal/scan"
)

// ErrNoValidCells is returned when a grid has nothing to draw.
var ErrNoValidCells = errors.New("monitor: grid has no valid cells")

// GridSummary describes the valid radii of a grid.
type GridSummary struct {
	Rows    int     `json:"rows"`
	Cols    int     `json:"cols"`
	Valid   int     `json:"valid"`
	Missing int     `json:"missing"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
}

// Summarize computes GridSummary over the valid cells of g. Statistics are
// zero when no cell is valid.
func Summarize(g *scan.RadiusGrid) GridSummary {
	rows, cols := g.Dims()
	s := GridSummary{Rows: rows, Cols: cols}
	vals := validValues(g)
	s.Valid = len(vals)
	s.Missing = rows*cols - s.Valid
	if len(vals) == 0 {
		return s
	}
	s.Min = floats.Min(vals)
	s.Max = floats.Max(vals)
	s.Mean, s.StdDev = stat.MeanStdDev(vals, nil)
	if math.IsNaN(s.StdDev) {
		s.StdDev = 0
	}
	return s
}

func validValues(g *scan.RadiusGrid) []float64 {
	rows, cols := g.Dims()
	vals := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if r, ok := g.At(i, j); ok {
				vals = append(vals, r)
			}
		}
	}
	return vals
}
