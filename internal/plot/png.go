package plot

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/hydro.report/internal/pfb"
)

// Size is the page size of a saved plot in inches.
type Size struct {
	Width, Height float64
}

// DefaultSize matches a wide notebook cell.
var DefaultSize = Size{Width: 14, Height: 6}

func (s Size) lengths() (vg.Length, vg.Length) {
	if s.Width <= 0 || s.Height <= 0 {
		s = DefaultSize
	}
	return vg.Length(s.Width) * vg.Inch, vg.Length(s.Height) * vg.Inch
}

// save writes p to out; the extension picks the image format.
func save(p *plot.Plot, size Size, out string) error {
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	w, h := size.lengths()
	if err := p.Save(w, h, out); err != nil {
		return fmt.Errorf("save plot %s: %w", out, err)
	}
	return nil
}

// finiteRange returns the range of the finite values of m, widened when
// every value is equal so a palette can still be spread across it.
func finiteRange(values []float64) (lo, hi float64) {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0, 1
	}
	lo, hi = floats.Min(finite), floats.Max(finite)
	if lo == hi {
		hi = lo + 1
	}
	return lo, hi
}

// HeatmapPlot returns a heatmap of one slice of g.
func HeatmapPlot(g *pfb.Grid, s Slice, title string) (*plot.Plot, error) {
	d, err := cut(g, s)
	if err != nil {
		return nil, err
	}
	h := plotter.NewHeatMap(d, palette.Heat(64, 1))
	h.Min, h.Max = finiteRange(d.m.RawMatrix().Data)
	h.NaN = color.Transparent

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = d.xLabel
	p.Y.Label.Text = d.yLabel
	p.Add(h)
	return p, nil
}

// SliceHeatmap writes a heatmap of one slice of field at step to out.
func SliceHeatmap(run Run, field string, step int, s Slice, out string, size Size) error {
	g, err := run.Read(field, step)
	if err != nil {
		return err
	}
	p, err := HeatmapPlot(g, s, fmt.Sprintf("%s %s step %d, %s", run.Name, field, step, s))
	if err != nil {
		return err
	}
	return save(p, size, out)
}

// TimeSeries writes a line plot of one or more series to out.
func TimeSeries(out, title, yLabel string, size Size, series ...Series) error {
	if len(series) == 0 {
		return fmt.Errorf("no series to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Timestep"
	p.Y.Label.Text = yLabel

	colors := generateColors(len(series))
	for i, s := range series {
		if len(s.Steps) != len(s.Values) {
			return fmt.Errorf("series %s: %d steps for %d values", s.Name, len(s.Steps), len(s.Values))
		}
		pts := make(plotter.XYs, 0, len(s.Steps))
		for n, step := range s.Steps {
			pts = append(pts, plotter.XY{X: float64(step), Y: s.Values[n]})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("series %s: %w", s.Name, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return save(p, size, out)
}

// generateColors creates a palette of distinct colors for series lines
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255),
		uint8(hueToRGB(p, q, h) * 255),
		uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	switch {
	case t < 0:
		t++
	case t > 1:
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	default:
		return p
	}
}
