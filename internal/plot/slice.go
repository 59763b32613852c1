package plot

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/hydro.report/internal/pfb"
)

// Axis selects the direction a slice is taken across.
type Axis int

const (
	// Layer slices are horizontal: fixed k, columns by rows.
	Layer Axis = iota
	// Row slices are vertical: fixed j, columns by layers.
	Row
	// Column slices are vertical: fixed i, rows by layers.
	Column
)

func (a Axis) String() string {
	switch a {
	case Layer:
		return "layer"
	case Row:
		return "row"
	case Column:
		return "column"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// ParseAxis accepts layer, row or column (or z, y, x).
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "layer", "z":
		return Layer, nil
	case "row", "y":
		return Row, nil
	case "column", "col", "x":
		return Column, nil
	default:
		return 0, fmt.Errorf("unknown slice axis %q", s)
	}
}

// Slice is one 2-D cut through a grid.
type Slice struct {
	Axis  Axis
	Index int
}

func (s Slice) String() string { return fmt.Sprintf("%s %d", s.Axis, s.Index) }

// sliceData is a 2-D cut with the geometry needed to place its cells.
type sliceData struct {
	m              *mat.Dense // rows are the vertical plot axis
	x0, dx, y0, dy float64
	xLabel, yLabel string
}

func cut(g *pfb.Grid, s Slice) (*sliceData, error) {
	var limit int
	switch s.Axis {
	case Layer:
		limit = g.NZ
	case Row:
		limit = g.NY
	case Column:
		limit = g.NX
	default:
		return nil, fmt.Errorf("unknown slice axis %v", s.Axis)
	}
	if s.Index < 0 || s.Index >= limit {
		return nil, fmt.Errorf("%s index %d outside [0, %d)", s.Axis, s.Index, limit)
	}

	switch s.Axis {
	case Layer:
		return &sliceData{m: g.Layer(s.Index), x0: g.X0, dx: spacing(g.DX), y0: g.Y0, dy: spacing(g.DY), xLabel: "x", yLabel: "y"}, nil
	case Row:
		return &sliceData{m: g.Row(s.Index), x0: g.X0, dx: spacing(g.DX), y0: g.Z0, dy: spacing(g.DZ), xLabel: "x", yLabel: "z"}, nil
	default:
		return &sliceData{m: g.Column(s.Index), x0: g.Y0, dx: spacing(g.DY), y0: g.Z0, dy: spacing(g.DZ), xLabel: "y", yLabel: "z"}, nil
	}
}

// spacing falls back to unit cells for files that carry no spacing.
func spacing(d float64) float64 {
	if d > 0 {
		return d
	}
	return 1
}

// Dims, Z, X and Y implement plotter.GridXYZ. X and Y are cell centres.
func (d *sliceData) Dims() (c, r int) {
	r, c = d.m.Dims()
	return c, r
}

func (d *sliceData) Z(c, r int) float64 { return d.m.At(r, c) }

func (d *sliceData) X(c int) float64 { return d.x0 + (float64(c)+0.5)*d.dx }

func (d *sliceData) Y(r int) float64 { return d.y0 + (float64(r)+0.5)*d.dy }
