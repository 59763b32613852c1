package plot

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/hydro.report/internal/pfb"
)

// viridis is the visual map gradient for HTML heatmaps.
var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

func axisLabels(n int, origin, step float64) []string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = strconv.FormatFloat(origin+(float64(i)+0.5)*step, 'g', 6, 64)
	}
	return labels
}

// sliceChart builds an echarts heatmap of one slice of g.
func sliceChart(g *pfb.Grid, s Slice, title string) (*charts.HeatMap, error) {
	d, err := cut(g, s)
	if err != nil {
		return nil, err
	}
	cols, rows := d.Dims()
	data := make([]opts.HeatMapData, 0, cols*rows)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			data = append(data, opts.HeatMapData{Value: [3]interface{}{c, r, d.Z(c, r)}})
		}
	}
	lo, hi := finiteRange(d.m.RawMatrix().Data)

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%dx%d cells", cols, rows)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: d.xLabel, Data: axisLabels(cols, d.x0, d.dx)}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: d.yLabel, Data: axisLabels(rows, d.y0, d.dy)}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	hm.AddSeries(s.String(), data)
	return hm, nil
}

// RenderSliceHTML writes an interactive heatmap of one slice of g.
func RenderSliceHTML(w io.Writer, g *pfb.Grid, s Slice, title string) error {
	hm, err := sliceChart(g, s, title)
	if err != nil {
		return err
	}
	return hm.Render(w)
}

// seriesChart builds an echarts line chart sharing one step axis.
func seriesChart(title, yLabel string, series []Series) (*charts.Line, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("no series to plot")
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Timestep"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: yLabel}),
	)
	for _, s := range series {
		if len(s.Steps) != len(s.Values) {
			return nil, fmt.Errorf("series %s: %d steps for %d values", s.Name, len(s.Steps), len(s.Values))
		}
		data := make([]opts.LineData, len(s.Steps))
		for n, step := range s.Steps {
			data[n] = opts.LineData{Value: []interface{}{step, s.Values[n]}}
		}
		line.AddSeries(s.Name, data)
	}
	return line, nil
}

// RenderSeriesHTML writes an interactive line chart of the series.
func RenderSeriesHTML(w io.Writer, title, yLabel string, series ...Series) error {
	line, err := seriesChart(title, yLabel, series)
	if err != nil {
		return err
	}
	return line.Render(w)
}

// RenderReportHTML writes one page holding a heatmap per slice and,
// when series are given, a line chart of them.
func RenderReportHTML(w io.Writer, title string, g *pfb.Grid, slices []Slice, series []Series) error {
	page := components.NewPage()
	page.PageTitle = title
	for _, s := range slices {
		hm, err := sliceChart(g, s, fmt.Sprintf("%s, %s", title, s))
		if err != nil {
			return err
		}
		page.AddCharts(hm)
	}
	if len(series) > 0 {
		line, err := seriesChart(title, "", series)
		if err != nil {
			return err
		}
		page.AddCharts(line)
	}
	return page.Render(w)
}
