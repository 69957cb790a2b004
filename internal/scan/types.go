package scan

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Sentinel is the reserved sample value separating two slices in the
// scanner's output stream.
const Sentinel = 9999.0

// MaxGridCells caps the size of any intermediate grid.
const MaxGridCells = 1 << 22

// Slice is one full angular sweep of distance samples at one height level.
type Slice []float64

// RadiusGrid is a dense rows x cols matrix of radii. Rows are height levels,
// columns are angular bins. Every cell is either a valid radius or explicitly
// missing; the value stored under a missing cell is meaningless and is never
// returned by At.
type RadiusGrid struct {
	values *mat.Dense
	valid  []bool
	rows   int
	cols   int
}

// NewRadiusGrid returns a rows x cols grid with every cell missing.
func NewRadiusGrid(rows, cols int) (*RadiusGrid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: radius grid shape %dx%d", ErrInvalidConfig, rows, cols)
	}
	return &RadiusGrid{
		values: mat.NewDense(rows, cols, nil),
		valid:  make([]bool, rows*cols),
		rows:   rows,
		cols:   cols,
	}, nil
}

// RadiusGridFromRows builds a grid from row-major values. Every cell is
// valid. Rows must all have the same length.
func RadiusGridFromRows(rows [][]float64) (*RadiusGrid, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyScan
	}
	g, err := NewRadiusGrid(len(rows), len(rows[0]))
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		if len(row) != g.cols {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrNonRectangularScan, i, len(row), g.cols)
		}
		for j, v := range row {
			g.Set(i, j, v)
		}
	}
	return g, nil
}

// Dims returns the number of rows and columns.
func (g *RadiusGrid) Dims() (rows, cols int) { return g.rows, g.cols }

// At returns the radius at (i, j) and whether the cell is valid.
func (g *RadiusGrid) At(i, j int) (float64, bool) {
	if !g.valid[i*g.cols+j] {
		return 0, false
	}
	return g.values.At(i, j), true
}

// Valid reports whether the cell at (i, j) holds a radius.
func (g *RadiusGrid) Valid(i, j int) bool { return g.valid[i*g.cols+j] }

// Set stores a valid radius at (i, j).
func (g *RadiusGrid) Set(i, j int, r float64) {
	g.values.Set(i, j, r)
	g.valid[i*g.cols+j] = true
}

// SetMissing marks the cell at (i, j) as missing.
func (g *RadiusGrid) SetMissing(i, j int) {
	g.values.Set(i, j, 0)
	g.valid[i*g.cols+j] = false
}

// MissingCount returns the number of missing cells.
func (g *RadiusGrid) MissingCount() int {
	n := 0
	for _, ok := range g.valid {
		if !ok {
			n++
		}
	}
	return n
}

// RowValidCount returns the number of valid cells in row i.
func (g *RadiusGrid) RowValidCount(i int) int {
	n := 0
	for _, ok := range g.valid[i*g.cols : (i+1)*g.cols] {
		if ok {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the grid.
func (g *RadiusGrid) Clone() *RadiusGrid {
	valid := make([]bool, len(g.valid))
	copy(valid, g.valid)
	return &RadiusGrid{
		values: mat.DenseCopyOf(g.values),
		valid:  valid,
		rows:   g.rows,
		cols:   g.cols,
	}
}

// Rows returns the grid as row-major slices with missing cells reported
// through the second return value.
func (g *RadiusGrid) Rows() (values [][]float64, valid [][]bool) {
	values = make([][]float64, g.rows)
	valid = make([][]bool, g.rows)
	for i := 0; i < g.rows; i++ {
		values[i] = make([]float64, g.cols)
		valid[i] = make([]bool, g.cols)
		for j := 0; j < g.cols; j++ {
			values[i][j], valid[i][j] = g.At(i, j)
		}
	}
	return values, valid
}

// VertexGrid is the projected surface: (dataRows+1) x (cols+1) points where
// the last column repeats column 0 and the last row is the cap.
type VertexGrid struct {
	points []r3.Vec
	rows   int
	cols   int
}

// NewVertexGrid allocates a rows x cols grid of points at the origin.
func NewVertexGrid(rows, cols int) (*VertexGrid, error) {
	if rows < 2 || cols < 2 {
		return nil, fmt.Errorf("%w: vertex grid shape %dx%d", ErrInvalidConfig, rows, cols)
	}
	return &VertexGrid{
		points: make([]r3.Vec, rows*cols),
		rows:   rows,
		cols:   cols,
	}, nil
}

// Dims returns the number of vertex rows and columns, including the cap row
// and the closing column.
func (v *VertexGrid) Dims() (rows, cols int) { return v.rows, v.cols }

// At returns the point at (i, j).
func (v *VertexGrid) At(i, j int) r3.Vec { return v.points[i*v.cols+j] }

// Set stores the point at (i, j).
func (v *VertexGrid) Set(i, j int, p r3.Vec) { v.points[i*v.cols+j] = p }

// Row returns a copy of row i.
func (v *VertexGrid) Row(i int) []r3.Vec {
	row := make([]r3.Vec, v.cols)
	copy(row, v.points[i*v.cols:(i+1)*v.cols])
	return row
}

// Mesh is an ordered triangle soup. Vertices are stored by value; there is
// no shared index buffer.
type Mesh struct {
	Triangles []r3.Triangle
}

// Len returns the number of triangles.
func (m *Mesh) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Triangles)
}
