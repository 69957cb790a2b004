package l3profile

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/scanmesh/internal/scan"
)

func TestSmooth_ZeroSigmaIsIdentity(t *testing.T) {
	g := mustGrid(t, [][]float64{{1, 2, 3}, {4, 5, 6}})
	g.SetMissing(1, 1)

	out, err := Smooth(g, SmoothOptions{Sigma: 0})
	require.NoError(t, err)
	assert.Equal(t, g, out)
	assert.NotSame(t, g, out)
}

func TestSmooth_InvalidSigma(t *testing.T) {
	g := mustGrid(t, [][]float64{{1}})
	for _, s := range []float64{-1, math.NaN(), math.Inf(1), MaxSigma + 0.5, 2000} {
		_, err := Smooth(g, SmoothOptions{Sigma: s})
		assert.True(t, errors.Is(err, scan.ErrInvalidConfig), "sigma %v: %v", s, err)
	}
}

func TestSmooth_WorkBudget(t *testing.T) {
	g, err := scan.NewRadiusGrid(1024, 1024)
	require.NoError(t, err)
	_, err = Smooth(g, SmoothOptions{Sigma: MaxSigma})
	assert.True(t, errors.Is(err, scan.ErrInvalidConfig), "got %v", err)

	small := mustGrid(t, [][]float64{{1, 2}, {3, 4}})
	_, err = Smooth(small, SmoothOptions{Sigma: MaxSigma})
	assert.NoError(t, err)
}

func TestSmooth_MissingDoesNotContaminate(t *testing.T) {
	rows := make([][]float64, 6)
	for i := range rows {
		rows[i] = []float64{5, 5, 5, 5, 5, 5, 5, 5}
	}
	g := mustGrid(t, rows)
	g.SetMissing(2, 3)
	g.SetMissing(0, 0)

	out, err := Smooth(g, SmoothOptions{Sigma: 1.25})
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		for j := 0; j < 8; j++ {
			r, ok := out.At(i, j)
			if (i == 2 && j == 3) || (i == 0 && j == 0) {
				assert.False(t, ok, "cell (%d,%d) must stay missing", i, j)
				continue
			}
			require.True(t, ok, "cell (%d,%d) must stay valid", i, j)
			assert.InDelta(t, 5.0, r, 1e-12, "cell (%d,%d)", i, j)
		}
	}
}

func TestSmooth_Symmetric(t *testing.T) {
	g := mustGrid(t, [][]float64{{0, 3, 6}})
	out, err := Smooth(g, SmoothOptions{Sigma: 0.25})
	require.NoError(t, err)

	r, ok := out.At(0, 1)
	require.True(t, ok)
	assert.InDelta(t, 3.0, r, 1e-12)
}

func TestSmooth_SeamHandling(t *testing.T) {
	g := mustGrid(t, [][]float64{{0, 0, 0, 9}})

	reflected, err := Smooth(g, SmoothOptions{Sigma: 0.5})
	require.NoError(t, err)
	r, _ := reflected.At(0, 0)
	assert.Equal(t, 0.0, r, "reflect padding must not see the far column")

	wrapped, err := Smooth(g, SmoothOptions{Sigma: 0.5, WrapColumns: true})
	require.NoError(t, err)
	r, _ = wrapped.At(0, 0)
	assert.Greater(t, r, 0.0, "periodic padding must see across the seam")
}

func TestGaussianKernel(t *testing.T) {
	k := gaussianKernel(1.25)
	require.Len(t, k, 11)
	assert.InDelta(t, 1.0, floats.Sum(k), 1e-12)
	assert.Equal(t, k[0], k[10])
	assert.Equal(t, floats.Max(k), k[5])
}

func TestReflectIndex(t *testing.T) {
	tests := []struct{ i, n, want int }{
		{-1, 4, 0},
		{-2, 4, 1},
		{4, 4, 3},
		{5, 4, 2},
		{8, 4, 0},
		{-5, 4, 3},
		{3, 1, 0},
	}
	for _, tt := range tests {
		if got := reflectIndex(tt.i, tt.n); got != tt.want {
			t.Errorf("reflectIndex(%d, %d) = %d, want %d", tt.i, tt.n, got, tt.want)
		}
	}
	if got := wrapIndex(-1, 4); got != 3 {
		t.Errorf("wrapIndex(-1, 4) = %d, want 3", got)
	}
}
