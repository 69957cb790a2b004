package l2grid

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/scanmesh/internal/monitoring"
	"github.com/banshee-data/scanmesh/internal/scan"
)

func init() {
	monitoring.SetLogger(nil)
}

func TestBuild_Inversion(t *testing.T) {
	g, stats, err := Build([]scan.Slice{{1.0, 2.0}, {1.5, 2.5}}, Config{CenterDistance: 5, MaxDistance: 20})
	require.NoError(t, err)

	values, valid := g.Rows()
	if diff := cmp.Diff([][]float64{{4, 3}, {3.5, 2.5}}, values); diff != "" {
		t.Errorf("radii mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]bool{{true, true}, {true, true}}, valid); diff != "" {
		t.Errorf("validity mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, BuildStats{}, stats)
}

func TestBuild_NegativeSampleClamped(t *testing.T) {
	g, stats, err := Build([]scan.Slice{{-3, 1}}, Config{CenterDistance: 6.5, MaxDistance: 20})
	require.NoError(t, err)

	r, ok := g.At(0, 0)
	require.True(t, ok)
	assert.Equal(t, 6.5, r)
	assert.Equal(t, 1, stats.ClampedSamples)
}

func TestBuild_FarRangeIsMissingNotClamped(t *testing.T) {
	g, stats, err := Build([]scan.Slice{{0, 1, 2}}, Config{CenterDistance: 25, MaxDistance: 24})
	require.NoError(t, err)

	_, ok := g.At(0, 0)
	assert.False(t, ok, "radius 25 > 24 must be missing")
	r, ok := g.At(0, 1)
	assert.True(t, ok)
	assert.Equal(t, 24.0, r, "radius equal to the ceiling is kept")
	assert.Equal(t, 1, stats.MissingCells)
	assert.Equal(t, 1, g.MissingCount())
}

func TestBuild_NegativeRadiusClamped(t *testing.T) {
	g, stats, err := Build([]scan.Slice{{10}}, Config{CenterDistance: 6.5, MaxDistance: 20})
	require.NoError(t, err)

	r, ok := g.At(0, 0)
	require.True(t, ok)
	assert.Equal(t, 0.0, r)
	assert.Equal(t, 1, stats.ClampedRadii)
}

func TestBuild_Errors(t *testing.T) {
	cfg := Config{CenterDistance: 6.5, MaxDistance: 20}

	_, _, err := Build(nil, cfg)
	assert.True(t, errors.Is(err, scan.ErrEmptyScan))

	_, _, err = Build([]scan.Slice{{1, 2}, {1}}, cfg)
	assert.True(t, errors.Is(err, scan.ErrNonRectangularScan))

	_, _, err = Build([]scan.Slice{{1}}, Config{CenterDistance: 6.5, MaxDistance: 0})
	assert.True(t, errors.Is(err, scan.ErrInvalidConfig))
}
