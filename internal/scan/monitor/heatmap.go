package monitor

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/scanmesh/internal/scan"
)

// gridXYZ adapts a RadiusGrid to plotter.GridXYZ. Columns are angular bins
// in degrees, rows are height levels; missing cells are NaN.
type gridXYZ struct {
	g *scan.RadiusGrid
}

func (p gridXYZ) Dims() (c, r int) {
	rows, cols := p.g.Dims()
	return cols, rows
}

func (p gridXYZ) Z(c, r int) float64 {
	if v, ok := p.g.At(r, c); ok {
		return v
	}
	return math.NaN()
}

func (p gridXYZ) X(c int) float64 {
	_, cols := p.g.Dims()
	return 360 * float64(c) / float64(cols)
}

func (p gridXYZ) Y(r int) float64 { return float64(r) }

// HeatmapPlot builds a heatmap of g: angle on X, row on Y, radius as colour.
// Missing cells are drawn in light grey.
func HeatmapPlot(g *scan.RadiusGrid, title string) (*plot.Plot, error) {
	rows, cols := g.Dims()
	if rows < 2 || cols < 2 {
		return nil, fmt.Errorf("monitor: %dx%d grid is too small to plot", rows, cols)
	}
	sum := Summarize(g)
	if sum.Valid == 0 {
		return nil, ErrNoValidCells
	}

	hm := plotter.NewHeatMap(gridXYZ{g: g}, palette.Heat(16, 1))
	hm.Min, hm.Max = sum.Min, sum.Max
	if hm.Max == hm.Min {
		hm.Max = hm.Min + 1
	}
	hm.NaN = color.Gray{Y: 220}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Angle (deg)"
	p.Y.Label.Text = "Row"
	p.Add(hm)
	return p, nil
}

// WriteHeatmapPNG renders the heatmap of g as PNG to w.
func WriteHeatmapPNG(w io.Writer, g *scan.RadiusGrid, title string) error {
	p, err := HeatmapPlot(g, title)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(8*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render heatmap: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write heatmap: %w", err)
	}
	return nil
}
