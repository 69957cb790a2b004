package l4surface

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/scanmesh/internal/monitoring"
	"github.com/banshee-data/scanmesh/internal/scan"
)

// MissingRowPolicy decides what a row with no valid radius becomes.
type MissingRowPolicy int

const (
	// CarryPreviousRow copies the previous row's filled points column by
	// column. Row 0 collapses to the axis.
	CarryPreviousRow MissingRowPolicy = iota
	// CollapseToOrigin puts every point of the row on the axis.
	CollapseToOrigin
	// FailOnMissingRow returns scan.ErrAllMissingRow.
	FailOnMissingRow
)

// ParseMissingRowPolicy maps a config string onto a MissingRowPolicy.
func ParseMissingRowPolicy(s string) (MissingRowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "carry":
		return CarryPreviousRow, nil
	case "origin":
		return CollapseToOrigin, nil
	case "fail":
		return FailOnMissingRow, nil
	default:
		return CarryPreviousRow, fmt.Errorf("%w: unknown missing row policy %q", scan.ErrInvalidConfig, s)
	}
}

// Options configures Project.
type Options struct {
	// ZDelta is the vertical spacing between consecutive rows.
	ZDelta     float64
	MissingRow MissingRowPolicy
}

// Stats reports fill activity.
type Stats struct {
	FilledCells     int `json:"filled_cells"`
	AllMissingRows  int `json:"all_missing_rows"`
	LookAheadSeeded int `json:"look_ahead_seeded"`
}

// Project maps a radius grid onto a closed vertex grid.
//
// Cell (i, j) lands at angle 2πj/cols and height i*ZDelta. Missing cells
// take the (x, y) of the most recent valid cell to their left in the same
// row; cells before the first valid one take that first valid point. The
// returned grid has one extra column (a copy of column 0) and one extra row
// (the cap: every point at the mean x, y of the last row, one ZDelta
// higher).
func Project(g *scan.RadiusGrid, opts Options) (*scan.VertexGrid, Stats, error) {
	var stats Stats
	if !(opts.ZDelta > 0) || math.IsInf(opts.ZDelta, 0) {
		return nil, stats, fmt.Errorf("%w: z delta %v", scan.ErrInvalidConfig, opts.ZDelta)
	}

	rows, cols := g.Dims()
	vg, err := scan.NewVertexGrid(rows+1, cols+1)
	if err != nil {
		return nil, stats, err
	}

	cos, sin := angleTable(cols)
	xy := make([]r3.Vec, cols)
	var prev []r3.Vec
	for i := 0; i < rows; i++ {
		z := float64(i) * opts.ZDelta
		if err := projectRow(g, i, cos, sin, prev, opts.MissingRow, xy, &stats); err != nil {
			return nil, stats, err
		}
		for j, p := range xy {
			vg.Set(i, j, r3.Vec{X: p.X, Y: p.Y, Z: z})
		}
		vg.Set(i, cols, vg.At(i, 0))
		prev = vg.Row(i)[:cols]
	}

	setCap(vg, rows, opts.ZDelta)

	if stats.FilledCells > 0 {
		monitoring.Logf("[l4surface] filled %d cells (%d rows seeded by look-ahead, %d rows empty)",
			stats.FilledCells, stats.LookAheadSeeded, stats.AllMissingRows)
	}
	return vg, stats, nil
}

func angleTable(cols int) (cos, sin []float64) {
	cos = make([]float64, cols)
	sin = make([]float64, cols)
	for j := 0; j < cols; j++ {
		theta := 2 * math.Pi * float64(j) / float64(cols)
		cos[j] = math.Cos(theta)
		sin[j] = math.Sin(theta)
	}
	return cos, sin
}

// projectRow writes the filled (x, y) of row i into out. Z is ignored.
func projectRow(g *scan.RadiusGrid, i int, cos, sin []float64, prev []r3.Vec, policy MissingRowPolicy, out []r3.Vec, stats *Stats) error {
	first := -1
	for j := range out {
		if g.Valid(i, j) {
			first = j
			break
		}
	}

	if first < 0 {
		stats.AllMissingRows++
		stats.FilledCells += len(out)
		switch {
		case policy == FailOnMissingRow:
			return fmt.Errorf("%w: row %d", scan.ErrAllMissingRow, i)
		case policy == CarryPreviousRow && prev != nil:
			for j := range out {
				out[j] = r3.Vec{X: prev[j].X, Y: prev[j].Y}
			}
		default:
			for j := range out {
				out[j] = r3.Vec{}
			}
		}
		return nil
	}

	r, _ := g.At(i, first)
	last := r3.Vec{X: r * cos[first], Y: r * sin[first]}
	if first > 0 {
		stats.LookAheadSeeded++
	}
	for j := range out {
		r, ok := g.At(i, j)
		if !ok {
			out[j] = last
			stats.FilledCells++
			continue
		}
		last = r3.Vec{X: r * cos[j], Y: r * sin[j]}
		out[j] = last
	}
	return nil
}

// setCap fills the last row with the centroid of the closed row below it.
func setCap(vg *scan.VertexGrid, capRow int, zDelta float64) {
	rim := vg.Row(capRow - 1)
	xs := make([]float64, len(rim))
	ys := make([]float64, len(rim))
	for j, p := range rim {
		xs[j] = p.X
		ys[j] = p.Y
	}
	apex := r3.Vec{
		X: stat.Mean(xs, nil),
		Y: stat.Mean(ys, nil),
		Z: rim[0].Z + zDelta,
	}
	for j := range rim {
		vg.Set(capRow, j, apex)
	}
}
