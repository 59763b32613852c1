package plot

import (
	"fmt"
	"path/filepath"

	"github.com/banshee-data/hydro.report/internal/pfb"
	"github.com/banshee-data/hydro.report/internal/simrun"
)

// Run locates the output files of one simulator run.
type Run struct {
	Dir  string
	Name string
}

// Path returns the output file of field at step.
func (r Run) Path(field string, step int) string {
	return filepath.Join(r.Dir, simrun.OutputFile(r.Name, field, step))
}

// Read loads the output grid of field at step.
func (r Run) Read(field string, step int) (*pfb.Grid, error) {
	return pfb.Read(r.Path(field, step))
}

// Steps returns the timesteps written for field, in order.
func (r Run) Steps(field string) ([]int, error) {
	outs, err := simrun.ListOutputs(r.Dir, r.Name, field)
	if err != nil {
		return nil, err
	}
	if len(outs) == 0 {
		return nil, fmt.Errorf("no %s outputs for run %s in %s", field, r.Name, r.Dir)
	}
	steps := make([]int, len(outs))
	for n, o := range outs {
		steps[n] = o.Step
	}
	return steps, nil
}
