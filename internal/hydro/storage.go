// Package hydro computes water balance quantities from simulator output
// grids.
package hydro

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/hydro.report/internal/pfb"
)

// ErrMissingGrid reports a nil input grid where one is required.
var ErrMissingGrid = errors.New("missing grid")

// required checks grids against their names, in order.
func required(names []string, grids ...*pfb.Grid) error {
	for n, g := range grids {
		if g == nil {
			return fmt.Errorf("%w: %s", ErrMissingGrid, names[n])
		}
	}
	return nil
}

// sameShape compares others against ref; nil others are skipped.
func sameShape(ref *pfb.Grid, others ...*pfb.Grid) error {
	for _, o := range others {
		if o == nil {
			continue
		}
		if !ref.SameShape(o) {
			return fmt.Errorf("%w: %dx%dx%d vs %dx%dx%d", pfb.ErrShapeMismatch,
				ref.NZ, ref.NY, ref.NX, o.NZ, o.NY, o.NX)
		}
	}
	return nil
}

func active(mask *pfb.Grid, n int) bool {
	return mask == nil || mask.Data[n] > 0
}

// SubsurfaceStorage returns the water volume held in the subsurface over
// cells where mask is positive: the pore-water term φ·S·V plus the
// compressible term p·S·Ss·V. A nil mask counts every cell.
func SubsurfaceStorage(porosity, pressure, saturation, specificStorage, mask *pfb.Grid) (float64, error) {
	if err := required([]string{"porosity", "pressure", "saturation", "specific storage"},
		porosity, pressure, saturation, specificStorage); err != nil {
		return 0, err
	}
	if err := sameShape(pressure, porosity, saturation, specificStorage, mask); err != nil {
		return 0, err
	}
	vol := pressure.DX * pressure.DY * pressure.DZ
	terms := make([]float64, 0, len(pressure.Data))
	for n, p := range pressure.Data {
		if !active(mask, n) {
			continue
		}
		s := saturation.Data[n]
		terms = append(terms, porosity.Data[n]*s*vol+p*s*specificStorage.Data[n]*vol)
	}
	return floats.Sum(terms), nil
}

// SurfaceStorage returns the ponded water volume on the top layer: positive
// pressure head times the cell's plan area.
func SurfaceStorage(pressure, mask *pfb.Grid) (float64, error) {
	if err := required([]string{"pressure"}, pressure); err != nil {
		return 0, err
	}
	if err := sameShape(pressure, mask); err != nil {
		return 0, err
	}
	area := pressure.DX * pressure.DY
	top := pressure.NZ - 1
	var total float64
	for j := 0; j < pressure.NY; j++ {
		for i := 0; i < pressure.NX; i++ {
			n := pressure.Index(top, j, i)
			if active(mask, n) {
				total += math.Max(pressure.Data[n], 0) * area
			}
		}
	}
	return total, nil
}

// WaterTableDepth returns a single-layer grid of the depth below the top of
// the domain to the water table in each column. The water table sits in
// the uppermost fully saturated cell, at its centre less its pressure head.
// Columns with no saturated cell report the full domain thickness.
func WaterTableDepth(pressure, saturation *pfb.Grid) (*pfb.Grid, error) {
	if err := required([]string{"pressure", "saturation"}, pressure, saturation); err != nil {
		return nil, err
	}
	if err := sameShape(pressure, saturation); err != nil {
		return nil, err
	}
	out := pfb.New(1, pressure.NY, pressure.NX)
	out.X0, out.Y0 = pressure.X0, pressure.Y0
	out.DX, out.DY = pressure.DX, pressure.DY
	out.Z0, out.DZ = pressure.Z0+float64(pressure.NZ)*pressure.DZ, 0

	thickness := float64(pressure.NZ) * pressure.DZ
	for j := 0; j < pressure.NY; j++ {
		for i := 0; i < pressure.NX; i++ {
			depth := thickness
			for k := pressure.NZ - 1; k >= 0; k-- {
				if saturation.At(k, j, i) < 1 {
					continue
				}
				centre := (float64(pressure.NZ-1-k) + 0.5) * pressure.DZ
				depth = math.Min(math.Max(centre-pressure.At(k, j, i), 0), thickness)
				break
			}
			out.Set(0, j, i, depth)
		}
	}
	return out, nil
}
