package plot

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/banshee-data/hydro.report/internal/hydro"
	"github.com/banshee-data/hydro.report/internal/pfb"
)

// Series is a value sampled at successive output timesteps.
type Series struct {
	Name   string
	Steps  []int
	Values []float64
}

// Cell addresses one grid cell by (layer, row, column).
type Cell struct {
	K, J, I int
}

func (c Cell) String() string { return fmt.Sprintf("(%d,%d,%d)", c.K, c.J, c.I) }

// FieldSeries samples one cell of field across every output timestep.
func FieldSeries(run Run, field string, c Cell) (Series, error) {
	steps, err := run.Steps(field)
	if err != nil {
		return Series{}, err
	}
	s := Series{Name: fmt.Sprintf("%s %s", field, c), Steps: steps, Values: make([]float64, 0, len(steps))}
	for _, step := range steps {
		g, err := run.Read(field, step)
		if err != nil {
			return Series{}, err
		}
		if !g.InBounds(c.K, c.J, c.I) {
			return Series{}, fmt.Errorf("cell %s outside %dx%dx%d grid at step %d", c, g.NZ, g.NY, g.NX, step)
		}
		s.Values = append(s.Values, g.At(c.K, c.J, c.I))
	}
	return s, nil
}

// StorageSeries returns total subsurface storage at every pressure output
// timestep. It needs the run's static porosity and specific_storage files
// and a saturation file per step; the mask file is used when present.
func StorageSeries(run Run) (Series, error) {
	porosity, err := run.Read("porosity", 0)
	if err != nil {
		return Series{}, fmt.Errorf("storage needs porosity output: %w", err)
	}
	ss, err := run.Read("specific_storage", 0)
	if err != nil {
		return Series{}, fmt.Errorf("storage needs specific_storage output: %w", err)
	}
	mask, err := run.Read("mask", 0)
	if errors.Is(err, fs.ErrNotExist) {
		mask = nil
	} else if err != nil {
		return Series{}, err
	}

	steps, err := run.Steps("press")
	if err != nil {
		return Series{}, err
	}
	s := Series{Name: "subsurface storage", Steps: steps, Values: make([]float64, 0, len(steps))}
	for _, step := range steps {
		press, err := run.Read("press", step)
		if err != nil {
			return Series{}, err
		}
		satur, err := run.Read("satur", step)
		if err != nil {
			return Series{}, err
		}
		v, err := hydro.SubsurfaceStorage(porosity, press, satur, ss, mask)
		if err != nil {
			return Series{}, fmt.Errorf("step %d: %w", step, err)
		}
		s.Values = append(s.Values, v)
	}
	return s, nil
}

// Summaries returns per-step statistics of field, for quick inspection of
// an output sequence.
func Summaries(run Run, field string) ([]int, []pfb.Summary, error) {
	steps, err := run.Steps(field)
	if err != nil {
		return nil, nil, err
	}
	out := make([]pfb.Summary, 0, len(steps))
	for _, step := range steps {
		g, err := run.Read(field, step)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, g.Summarize())
	}
	return steps, out, nil
}
