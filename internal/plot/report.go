package plot

import (
	"fmt"
	"io"

	"github.com/banshee-data/hydro.report/internal/pfb"
)

// Report is one field of a run: every layer at a chosen step plus the
// per-step statistics of the field.
type Report struct {
	Title     string
	Field     string
	Grid      *pfb.Grid
	Slices    []Slice
	Steps     []int
	Summaries []pfb.Summary
}

// BuildReport reads field at step and the summaries of every step of it.
// Layers are listed top down.
func BuildReport(run Run, field string, step int) (*Report, error) {
	g, err := run.Read(field, step)
	if err != nil {
		return nil, err
	}
	steps, sums, err := Summaries(run, field)
	if err != nil {
		return nil, err
	}
	r := &Report{
		Title:     fmt.Sprintf("%s %s step %d", run.Name, field, step),
		Field:     field,
		Grid:      g,
		Slices:    make([]Slice, 0, g.NZ),
		Steps:     steps,
		Summaries: sums,
	}
	for k := g.NZ - 1; k >= 0; k-- {
		r.Slices = append(r.Slices, Slice{Axis: Layer, Index: k})
	}
	return r, nil
}

// Mean is the series of per-step means.
func (r *Report) Mean() Series {
	s := Series{Name: r.Field + " mean", Steps: r.Steps, Values: make([]float64, len(r.Summaries))}
	for i, sum := range r.Summaries {
		s.Values[i] = sum.Mean
	}
	return s
}

// Render writes the report as an HTML page.
func (r *Report) Render(w io.Writer) error {
	return RenderReportHTML(w, r.Title, r.Grid, r.Slices, []Series{r.Mean()})
}
