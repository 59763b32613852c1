package pfb

import (
	"fmt"

	"github.com/banshee-data/hydro.report/internal/keytree"
)

// Geometry is the computational grid declared by a key tree.
type Geometry struct {
	X0, Y0, Z0 float64
	DX, DY, DZ float64
	NX, NY, NZ int
}

// GeometryFromTree reads ComputationalGrid.* from t. Lower corner
// coordinates default to zero; extents and spacing are required.
func GeometryFromTree(t *keytree.Tree) (Geometry, error) {
	var g Geometry
	var err error
	ints := []struct {
		key string
		dst *int
	}{
		{"ComputationalGrid.NX", &g.NX},
		{"ComputationalGrid.NY", &g.NY},
		{"ComputationalGrid.NZ", &g.NZ},
	}
	for _, f := range ints {
		if *f.dst, err = t.GetInt(f.key); err != nil {
			return Geometry{}, fmt.Errorf("computational grid: %w", err)
		}
		if *f.dst < 1 {
			return Geometry{}, fmt.Errorf("computational grid: %s = %d, want positive", f.key, *f.dst)
		}
	}
	reals := []struct {
		key      string
		dst      *float64
		optional bool
	}{
		{"ComputationalGrid.Lower.X", &g.X0, true},
		{"ComputationalGrid.Lower.Y", &g.Y0, true},
		{"ComputationalGrid.Lower.Z", &g.Z0, true},
		{"ComputationalGrid.DX", &g.DX, false},
		{"ComputationalGrid.DY", &g.DY, false},
		{"ComputationalGrid.DZ", &g.DZ, false},
	}
	for _, f := range reals {
		if f.optional {
			*f.dst, err = t.FloatOr(f.key, 0)
		} else {
			*f.dst, err = t.GetFloat(f.key)
		}
		if err != nil {
			return Geometry{}, fmt.Errorf("computational grid: %w", err)
		}
	}
	return g, nil
}

// NewGrid returns an all-zero grid with g's extents and geometry.
func (g Geometry) NewGrid() *Grid {
	out := New(g.NZ, g.NY, g.NX)
	out.X0, out.Y0, out.Z0 = g.X0, g.Y0, g.Z0
	out.DX, out.DY, out.DZ = g.DX, g.DY, g.DZ
	return out
}

// LayoutFromTree reads Process.Topology.P/Q/R from t, each defaulting to 1.
func LayoutFromTree(t *keytree.Tree) (Layout, error) {
	var l Layout
	var err error
	if l.P, err = t.IntOr("Process.Topology.P", 1); err != nil {
		return Layout{}, fmt.Errorf("process topology: %w", err)
	}
	if l.Q, err = t.IntOr("Process.Topology.Q", 1); err != nil {
		return Layout{}, fmt.Errorf("process topology: %w", err)
	}
	if l.R, err = t.IntOr("Process.Topology.R", 1); err != nil {
		return Layout{}, fmt.Errorf("process topology: %w", err)
	}
	if l.P < 1 || l.Q < 1 || l.R < 1 {
		return Layout{}, fmt.Errorf("process topology %s: parts must be positive", l)
	}
	return l, nil
}

// CheckExtents returns ErrShapeMismatch unless g's shape equals the
// computational grid declared in t.
func CheckExtents(t *keytree.Tree, g *Grid) error {
	geo, err := GeometryFromTree(t)
	if err != nil {
		return err
	}
	return g.CheckShape(geo.NZ, geo.NY, geo.NX)
}
