package l3profile

import (
	"fmt"
	"math"

	"github.com/banshee-data/scanmesh/internal/scan"
)

// MaxResampleFactor is the largest accepted upsampling factor.
const MaxResampleFactor = 64

// Resample upsamples every column of g from n rows to n*factor rows. Target
// rows are spaced evenly over [0, n-1] in source row units and each is
// linearly interpolated from its two neighbouring source rows. factor == 1
// returns a copy of g.
func Resample(g *scan.RadiusGrid, factor int) (*scan.RadiusGrid, error) {
	if factor < 1 || factor > MaxResampleFactor {
		return nil, fmt.Errorf("%w: got %d (want 1..%d)", scan.ErrInvalidResampleFactor, factor, MaxResampleFactor)
	}
	if factor == 1 {
		return g.Clone(), nil
	}

	rows, cols := g.Dims()
	if factor > scan.MaxGridCells/(rows*cols) {
		return nil, fmt.Errorf("%w: %dx%d grid times %d exceeds %d cells",
			scan.ErrInvalidResampleFactor, rows, cols, factor, scan.MaxGridCells)
	}
	outRows := rows * factor
	out, err := scan.NewRadiusGrid(outRows, cols)
	if err != nil {
		return nil, err
	}
	for k := 0; k < outRows; k++ {
		pos := targetPosition(k, rows, outRows)
		for j := 0; j < cols; j++ {
			if r, ok := sampleColumn(g, j, pos); ok {
				out.Set(k, j, r)
			} else {
				out.SetMissing(k, j)
			}
		}
	}
	return out, nil
}

// targetPosition returns the source-row coordinate of output row k.
func targetPosition(k, rows, outRows int) float64 {
	if rows == 1 || outRows == 1 {
		return 0
	}
	return float64(k) * float64(rows-1) / float64(outRows-1)
}

// sampleColumn linearly interpolates column j at fractional row pos. Outside
// [0, rows-1] the first or last segment is extended.
func sampleColumn(g *scan.RadiusGrid, j int, pos float64) (float64, bool) {
	rows, _ := g.Dims()
	if rows == 1 {
		return g.At(0, j)
	}

	a := int(math.Floor(pos))
	if a < 0 {
		a = 0
	}
	if a > rows-2 {
		a = rows - 2
	}
	t := pos - float64(a)

	lo, loOK := g.At(a, j)
	hi, hiOK := g.At(a+1, j)
	if (!loOK && t != 1) || (!hiOK && t != 0) {
		return 0, false
	}
	switch t {
	case 0:
		return lo, true
	case 1:
		return hi, true
	}
	return lo + t*(hi-lo), true
}
