package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/hydro.report/internal/keytree"
	"github.com/banshee-data/hydro.report/internal/monitoring"
	"github.com/banshee-data/hydro.report/internal/pfb"
	"github.com/banshee-data/hydro.report/internal/security"
)

// Span is an inclusive index range along one axis. All selects the whole
// axis.
type Span struct {
	Lo, Hi int
	All    bool
}

func spanOf(axis string, v []int) (Span, error) {
	switch len(v) {
	case 0:
		return Span{All: true}, nil
	case 1:
		v = []int{v[0], v[0]}
	case 2:
	default:
		return Span{}, fmt.Errorf("%s: want [lo, hi], got %d values", axis, len(v))
	}
	if v[0] < 0 || v[1] < v[0] {
		return Span{}, fmt.Errorf("%s: bad range [%d, %d]", axis, v[0], v[1])
	}
	return Span{Lo: v[0], Hi: v[1]}, nil
}

func (s Span) bounds(n int) (int, int) {
	if s.All {
		return 0, n - 1
	}
	return s.Lo, s.Hi
}

// Region paints Class over a box of cells.
type Region struct {
	Name               string
	Class              float64
	Layers, Rows, Cols Span
}

// Box resolves r against a grid of the given shape.
func (r Region) Box(layers, rows, cols int) pfb.Box {
	var b pfb.Box
	b.K0, b.K1 = r.Layers.bounds(layers)
	b.J0, b.J1 = r.Rows.bounds(rows)
	b.I0, b.I1 = r.Cols.bounds(cols)
	return b
}

// Indicator describes one indicator grid file. Regions are painted in
// order, so later regions win where they overlap.
type Indicator struct {
	File        string
	Background  float64
	Distributed bool
	Regions     []Region
}

func (ib *indicatorBlock) indicator() (Indicator, error) {
	if ib.File == "" || strings.ContainsAny(ib.File, `\`) || filepath.IsAbs(ib.File) {
		return Indicator{}, fmt.Errorf("file must be a relative path")
	}
	ind := Indicator{File: ib.File, Background: ib.Background, Distributed: ib.Distributed}
	seen := make(map[string]bool, len(ib.Regions))
	for _, rb := range ib.Regions {
		if seen[rb.Name] {
			return Indicator{}, fmt.Errorf("duplicate region %q", rb.Name)
		}
		seen[rb.Name] = true
		r := Region{Name: rb.Name, Class: rb.Class}
		var err error
		if r.Layers, err = spanOf("layers", rb.Layers); err != nil {
			return Indicator{}, fmt.Errorf("region %q: %w", rb.Name, err)
		}
		if r.Rows, err = spanOf("rows", rb.Rows); err != nil {
			return Indicator{}, fmt.Errorf("region %q: %w", rb.Name, err)
		}
		if r.Cols, err = spanOf("cols", rb.Cols); err != nil {
			return Indicator{}, fmt.Errorf("region %q: %w", rb.Name, err)
		}
		ind.Regions = append(ind.Regions, r)
	}
	return ind, nil
}

// Grid paints the indicator onto a grid sized by geo.
func (ind Indicator) Grid(geo pfb.Geometry) (*pfb.Grid, error) {
	g := geo.NewGrid()
	g.Fill(ind.Background)
	layers, rows, cols := g.Shape()
	for _, r := range ind.Regions {
		if err := g.SetBox(r.Box(layers, rows, cols), r.Class); err != nil {
			return nil, fmt.Errorf("region %q: %w", r.Name, err)
		}
	}
	return g, nil
}

// Apply sets the scenario's keys on t. Either every key applies or t is
// left unchanged.
func (s *Scenario) Apply(t *keytree.Tree) error {
	patch := keytree.New()
	patch.DeclareValuedPrefix(s.ValuedPrefixes...)
	for _, e := range s.Keys {
		if err := patch.Set(e.Key, e.Value); err != nil {
			return fmt.Errorf("scenario %s: %w", s.RunName, err)
		}
	}
	if err := t.Merge(patch); err != nil {
		return fmt.Errorf("scenario %s: %w", s.RunName, err)
	}
	return nil
}

// Tree loads the base database, if any, and applies the scenario's keys.
// A base with a .yaml or .yml extension is read as nested YAML.
func (s *Scenario) Tree() (*keytree.Tree, error) {
	t := keytree.New()
	if s.Base != "" {
		var err error
		switch strings.ToLower(filepath.Ext(s.Base)) {
		case ".yaml", ".yml":
			t, err = keytree.ReadYAMLFile(s.Base)
		default:
			t, err = keytree.ReadFile(s.Base)
		}
		if err != nil {
			return nil, fmt.Errorf("scenario %s: base: %w", s.RunName, err)
		}
	}
	if err := s.Apply(t); err != nil {
		return nil, err
	}
	return t, nil
}

// WriteIndicators writes every indicator grid into dir, sized by the
// computational grid in t. Distributed indicators use the process topology
// in t. dir is created if needed and files must stay inside it. It returns
// the written paths.
func (s *Scenario) WriteIndicators(t *keytree.Tree, dir string) ([]string, error) {
	if len(s.Indicators) == 0 {
		return nil, nil
	}
	geo, err := pfb.GeometryFromTree(t)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for _, ind := range s.Indicators {
		g, err := ind.Grid(geo)
		if err != nil {
			return paths, fmt.Errorf("indicator %s: %w", ind.File, err)
		}
		l := pfb.SingleLayout
		if ind.Distributed {
			if l, err = pfb.LayoutFromTree(t); err != nil {
				return paths, fmt.Errorf("indicator %s: %w", ind.File, err)
			}
		}
		path := filepath.Join(dir, ind.File)
		if err := security.WithinDir(path, dir); err != nil {
			return paths, fmt.Errorf("indicator %s: %w", ind.File, err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return paths, fmt.Errorf("indicator %s: %w", ind.File, err)
		}
		if err := pfb.Write(path, g, l); err != nil {
			return paths, err
		}
		monitoring.Logf("scenario %s: wrote indicator %s (%d regions, layout %s)", s.RunName, path, len(ind.Regions), l)
		paths = append(paths, path)
	}
	return paths, nil
}
