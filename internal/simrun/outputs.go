package simrun

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// StaticFields are output fields written once per run, without a timestep.
var StaticFields = []string{
	"perm_x", "perm_y", "perm_z",
	"porosity", "specific_storage", "mask",
	"slope_x", "slope_y", "mannings", "dz_mult",
}

// IsStaticField reports whether field is written without a timestep.
func IsStaticField(field string) bool {
	return slices.Contains(StaticFields, field)
}

// OutputFile returns the file name the simulator writes for field at step:
// <name>.out.<field>.<step, zero-padded to 5>.pfb. Static fields ignore step.
func OutputFile(name, field string, step int) string {
	if IsStaticField(field) {
		return fmt.Sprintf("%s.out.%s.pfb", name, field)
	}
	return fmt.Sprintf("%s.out.%s.%05d.pfb", name, field, step)
}

// Output is one timestep file of a field.
type Output struct {
	Step int
	Path string
}

// ListOutputs returns the timestep files of field for run name in dir,
// sorted by step.
func ListOutputs(dir, name, field string) ([]Output, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list outputs: %w", err)
	}
	prefix := name + ".out." + field + "."
	var outs []Output
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasPrefix(n, prefix) || !strings.HasSuffix(n, ".pfb") {
			continue
		}
		step, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(n, prefix), ".pfb"))
		if err != nil || step < 0 {
			continue
		}
		outs = append(outs, Output{Step: step, Path: filepath.Join(dir, n)})
	}
	slices.SortFunc(outs, func(a, b Output) int { return a.Step - b.Step })
	return outs, nil
}
