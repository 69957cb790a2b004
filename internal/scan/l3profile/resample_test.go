package l3profile

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/scanmesh/internal/scan"
)

func mustGrid(t *testing.T, rows [][]float64) *scan.RadiusGrid {
	t.Helper()
	g, err := scan.RadiusGridFromRows(rows)
	require.NoError(t, err)
	return g
}

func column(g *scan.RadiusGrid, j int) ([]float64, []bool) {
	rows, _ := g.Dims()
	vals := make([]float64, rows)
	valid := make([]bool, rows)
	for i := 0; i < rows; i++ {
		vals[i], valid[i] = g.At(i, j)
	}
	return vals, valid
}

func TestResample_InvalidFactor(t *testing.T) {
	g := mustGrid(t, [][]float64{{1}})
	for _, f := range []int{0, -1, MaxResampleFactor + 1, 1 << 40, math.MaxInt} {
		_, err := Resample(g, f)
		assert.True(t, errors.Is(err, scan.ErrInvalidResampleFactor), "factor %d: %v", f, err)
	}
}

func TestResample_CellBudget(t *testing.T) {
	g, err := scan.NewRadiusGrid(2, 1<<16)
	require.NoError(t, err)

	_, err = Resample(g, 32)
	assert.True(t, errors.Is(err, scan.ErrInvalidResampleFactor), "got %v", err)

	out, err := Resample(g, 16)
	require.NoError(t, err)
	rows, _ := out.Dims()
	assert.Equal(t, 32, rows)
}

func TestResample_IdentityCopies(t *testing.T) {
	g := mustGrid(t, [][]float64{{1, 2}, {3, 4}})
	out, err := Resample(g, 1)
	require.NoError(t, err)
	assert.NotSame(t, g, out)
	assert.Equal(t, g.Clone(), out)

	out.Set(0, 0, 42)
	r, _ := g.At(0, 0)
	assert.Equal(t, 1.0, r, "input grid must not be shared with the output")
}

func TestResample_Linear(t *testing.T) {
	g := mustGrid(t, [][]float64{{0, 10}, {2, 10}, {4, 10}})
	out, err := Resample(g, 2)
	require.NoError(t, err)

	rows, cols := out.Dims()
	require.Equal(t, 6, rows)
	require.Equal(t, 2, cols)

	vals, valid := column(out, 0)
	assert.InDeltaSlice(t, []float64{0, 0.8, 1.6, 2.4, 3.2, 4}, vals, 1e-12)
	assert.Equal(t, []bool{true, true, true, true, true, true}, valid)

	vals, _ = column(out, 1)
	assert.InDeltaSlice(t, []float64{10, 10, 10, 10, 10, 10}, vals, 1e-12)
}

func TestResample_EndpointsMatchSource(t *testing.T) {
	g := mustGrid(t, [][]float64{{1.5}, {7.25}, {3}, {9}})
	out, err := Resample(g, 3)
	require.NoError(t, err)

	vals, _ := column(out, 0)
	assert.Equal(t, 1.5, vals[0])
	assert.Equal(t, 9.0, vals[len(vals)-1])
}

func TestResample_MissingPropagates(t *testing.T) {
	g := mustGrid(t, [][]float64{{1}, {2}, {3}})
	g.SetMissing(1, 0)

	out, err := Resample(g, 2)
	require.NoError(t, err)

	vals, valid := column(out, 0)
	assert.Equal(t, []bool{true, false, false, false, false, true}, valid)
	assert.Equal(t, 1.0, vals[0])
	assert.Equal(t, 3.0, vals[5])
}

func TestResample_SingleRow(t *testing.T) {
	g := mustGrid(t, [][]float64{{4, 5}})
	out, err := Resample(g, 3)
	require.NoError(t, err)

	rows, _ := out.Dims()
	require.Equal(t, 3, rows)
	for i := 0; i < rows; i++ {
		r, ok := out.At(i, 1)
		assert.True(t, ok)
		assert.Equal(t, 5.0, r)
	}
}

func TestSampleColumn_Extrapolates(t *testing.T) {
	g := mustGrid(t, [][]float64{{0}, {2}})

	r, ok := sampleColumn(g, 0, -1)
	assert.True(t, ok)
	assert.InDelta(t, -2.0, r, 1e-12)

	r, ok = sampleColumn(g, 0, 2)
	assert.True(t, ok)
	assert.InDelta(t, 4.0, r, 1e-12)
}
