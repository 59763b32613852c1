package pfb

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrShapeMismatch is returned when a grid's extents differ from the
// extents it is used against.
var ErrShapeMismatch = errors.New("grid shape mismatch")

// Grid is a 3-D field indexed (layer k, row j, column i) over NZ×NY×NX
// cells. Data is stored x-fastest: index (k*NY+j)*NX+i.
type Grid struct {
	X0, Y0, Z0 float64
	DX, DY, DZ float64
	NX, NY, NZ int
	Data       []float64
}

// New returns an all-zero grid of the given shape with unit spacing.
func New(layers, rows, cols int) *Grid {
	if layers < 0 || rows < 0 || cols < 0 {
		panic(fmt.Sprintf("pfb: negative grid shape %dx%dx%d", layers, rows, cols))
	}
	return &Grid{
		DX: 1, DY: 1, DZ: 1,
		NX: cols, NY: rows, NZ: layers,
		Data: make([]float64, layers*rows*cols),
	}
}

// Shape returns (layers, rows, columns).
func (g *Grid) Shape() (int, int, int) { return g.NZ, g.NY, g.NX }

// Len returns the number of cells.
func (g *Grid) Len() int { return g.NX * g.NY * g.NZ }

// Index returns the flat offset of cell (k, j, i).
func (g *Grid) Index(k, j, i int) int { return (k*g.NY+j)*g.NX + i }

// InBounds reports whether (k, j, i) addresses a cell.
func (g *Grid) InBounds(k, j, i int) bool {
	return k >= 0 && k < g.NZ && j >= 0 && j < g.NY && i >= 0 && i < g.NX
}

// At returns the value at (k, j, i).
func (g *Grid) At(k, j, i int) float64 { return g.Data[g.Index(k, j, i)] }

// Set stores v at (k, j, i).
func (g *Grid) Set(k, j, i int, v float64) { g.Data[g.Index(k, j, i)] = v }

// Fill sets every cell to v.
func (g *Grid) Fill(v float64) {
	for n := range g.Data {
		g.Data[n] = v
	}
}

// Box is an inclusive index range over the three axes.
type Box struct {
	K0, K1 int
	J0, J1 int
	I0, I1 int
}

// SetBox sets every cell inside b to v. Used to paint indicator regions.
func (g *Grid) SetBox(b Box, v float64) error {
	if b.K0 > b.K1 || b.J0 > b.J1 || b.I0 > b.I1 ||
		!g.InBounds(b.K0, b.J0, b.I0) || !g.InBounds(b.K1, b.J1, b.I1) {
		return fmt.Errorf("box k[%d,%d] j[%d,%d] i[%d,%d] outside %dx%dx%d grid",
			b.K0, b.K1, b.J0, b.J1, b.I0, b.I1, g.NZ, g.NY, g.NX)
	}
	for k := b.K0; k <= b.K1; k++ {
		for j := b.J0; j <= b.J1; j++ {
			row := g.Index(k, j, 0)
			for i := b.I0; i <= b.I1; i++ {
				g.Data[row+i] = v
			}
		}
	}
	return nil
}

// SameShape reports whether g and o have identical extents.
func (g *Grid) SameShape(o *Grid) bool {
	return g.NX == o.NX && g.NY == o.NY && g.NZ == o.NZ
}

// CheckShape returns ErrShapeMismatch unless g is layers×rows×cols.
func (g *Grid) CheckShape(layers, rows, cols int) error {
	if g.NZ != layers || g.NY != rows || g.NX != cols {
		return fmt.Errorf("%w: grid is %dx%dx%d, want %dx%dx%d",
			ErrShapeMismatch, g.NZ, g.NY, g.NX, layers, rows, cols)
	}
	return nil
}

// Equal reports whether g and o have the same shape and identical values.
// Geometry (origin and spacing) is not compared.
func (g *Grid) Equal(o *Grid) bool {
	if !g.SameShape(o) || len(g.Data) != len(o.Data) {
		return false
	}
	for n := range g.Data {
		if g.Data[n] != o.Data[n] && !(math.IsNaN(g.Data[n]) && math.IsNaN(o.Data[n])) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of g.
func (g *Grid) Clone() *Grid {
	c := *g
	c.Data = append([]float64(nil), g.Data...)
	return &c
}

// Layer returns the NY×NX horizontal slice at layer k.
func (g *Grid) Layer(k int) *mat.Dense {
	m := mat.NewDense(max(g.NY, 1), max(g.NX, 1), nil)
	for j := 0; j < g.NY; j++ {
		for i := 0; i < g.NX; i++ {
			m.Set(j, i, g.At(k, j, i))
		}
	}
	return m
}

// Row returns the NZ×NX vertical slice at row j.
func (g *Grid) Row(j int) *mat.Dense {
	m := mat.NewDense(max(g.NZ, 1), max(g.NX, 1), nil)
	for k := 0; k < g.NZ; k++ {
		for i := 0; i < g.NX; i++ {
			m.Set(k, i, g.At(k, j, i))
		}
	}
	return m
}

// Column returns the NZ×NY vertical slice at column i.
func (g *Grid) Column(i int) *mat.Dense {
	m := mat.NewDense(max(g.NZ, 1), max(g.NY, 1), nil)
	for k := 0; k < g.NZ; k++ {
		for j := 0; j < g.NY; j++ {
			m.Set(k, j, g.At(k, j, i))
		}
	}
	return m
}

// Summary holds basic statistics over a grid's finite values.
type Summary struct {
	Count    int
	Min, Max float64
	Mean     float64
	StdDev   float64
	Sum      float64
}

// Summarize returns statistics over every finite value in g.
func (g *Grid) Summarize() Summary {
	finite := make([]float64, 0, len(g.Data))
	for _, v := range g.Data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return Summary{}
	}
	s := Summary{
		Count: len(finite),
		Min:   floats.Min(finite),
		Max:   floats.Max(finite),
		Sum:   floats.Sum(finite),
	}
	s.Mean, s.StdDev = stat.MeanStdDev(finite, nil)
	if len(finite) == 1 {
		s.StdDev = 0
	}
	return s
}
