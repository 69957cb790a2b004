package monitor

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/scanmesh/internal/scan"
)

// EchartsAssetsHost is where rendered pages load the echarts runtime from.
var EchartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// RenderHeatmapHTML writes a self-contained HTML page with an interactive
// heatmap of g. Missing cells are left blank.
func RenderHeatmapHTML(w io.Writer, g *scan.RadiusGrid, title string) error {
	sum := Summarize(g)
	if sum.Valid == 0 {
		return ErrNoValidCells
	}
	rows, cols := g.Dims()

	angles := make([]string, cols)
	for j := range angles {
		angles[j] = fmt.Sprintf("%.1f", 360*float64(j)/float64(cols))
	}
	levels := make([]string, rows)
	for i := range levels {
		levels[i] = fmt.Sprintf("%d", i)
	}

	data := make([]opts.HeatMapData, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			var v interface{} = "-"
			if r, ok := g.At(i, j); ok {
				v = r
			}
			data = append(data, opts.HeatMapData{Value: [3]interface{}{j, i, v}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1000px", Height: "700px", AssetsHost: EchartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("%dx%d missing=%d mean=%.3f sd=%.3f", rows, cols, sum.Missing, sum.Mean, sum.StdDev),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: angles, Name: "Angle (deg)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: levels, Name: "Row", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(sum.Min),
			Max:        float32(sum.Max),
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	hm.AddSeries("radius", data)

	if err := hm.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
