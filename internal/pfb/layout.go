package pfb

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// DistExt is appended to a grid file's name to form its offset sidecar.
const DistExt = ".dist"

// Layout is the process topology a file is partitioned by. Each axis is
// split into P, Q and R parts along x, y and z.
type Layout struct {
	P, Q, R int
}

// SingleLayout writes the whole grid as one subgrid.
var SingleLayout = Layout{P: 1, Q: 1, R: 1}

// Parts returns the number of subgrids the layout produces.
func (l Layout) Parts() int { return l.P * l.Q * l.R }

// Distributed reports whether the layout has more than one partition.
func (l Layout) Distributed() bool { return l.Parts() > 1 }

func (l Layout) String() string { return fmt.Sprintf("%dx%dx%d", l.P, l.Q, l.R) }

// Validate checks that every partition of a NX×NY×NZ grid gets at least one
// cell along each axis.
func (l Layout) Validate(nx, ny, nz int) error {
	if l.P < 1 || l.Q < 1 || l.R < 1 {
		return fmt.Errorf("invalid topology %s: parts must be positive", l)
	}
	if l.P > nx || l.Q > ny || l.R > nz {
		return fmt.Errorf("topology %s does not fit grid %dx%dx%d", l, nx, ny, nz)
	}
	return nil
}

// Subgrid is one partition of a grid file: its lower corner, its extents and
// its refinement levels. Offset is the byte offset of its header when read
// from or planned for a file.
type Subgrid struct {
	IX, IY, IZ int
	NX, NY, NZ int
	RX, RY, RZ int
	Offset     int64
}

// Len returns the number of cells in the subgrid.
func (s Subgrid) Len() int { return s.NX * s.NY * s.NZ }

// split returns the start and length of part q when n cells are divided into
// p parts. The first n%p parts get one extra cell.
func split(n, p, q int) (start, size int) {
	base, extra := n/p, n%p
	size = base
	if q < extra {
		size++
	}
	return q*base + min(q, extra), size
}

// Subgrids returns the partitions of a NX×NY×NZ grid in file order (x
// fastest, then y, then z) with their header offsets.
func (l Layout) Subgrids(nx, ny, nz int) ([]Subgrid, error) {
	if err := l.Validate(nx, ny, nz); err != nil {
		return nil, err
	}
	subs := make([]Subgrid, 0, l.Parts())
	offset := int64(headerSize)
	for r := 0; r < l.R; r++ {
		iz, snz := split(nz, l.R, r)
		for q := 0; q < l.Q; q++ {
			iy, sny := split(ny, l.Q, q)
			for p := 0; p < l.P; p++ {
				ix, snx := split(nx, l.P, p)
				s := Subgrid{IX: ix, IY: iy, IZ: iz, NX: snx, NY: sny, NZ: snz, Offset: offset}
				subs = append(subs, s)
				offset += subgridHeaderSize + int64(s.Len())*8
			}
		}
	}
	return subs, nil
}

// writeDist writes the sidecar: one header offset per line, then the total
// file length.
func writeDist(path string, subs []Subgrid, total int64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dist file: %w", err)
	}
	bw := bufio.NewWriter(f)
	for _, s := range subs {
		fmt.Fprintf(bw, "%d\n", s.Offset)
	}
	fmt.Fprintf(bw, "%d\n", total)
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write dist file %s: %w", path, err)
	}
	return f.Close()
}

// ReadDist returns the offsets listed in the .dist sidecar of the grid at
// path. The last value is the grid file's length.
func ReadDist(path string) ([]int64, error) {
	raw, err := os.ReadFile(path + DistExt)
	if err != nil {
		return nil, fmt.Errorf("read dist file: %w", err)
	}
	var offsets []int64
	for n, line := range strings.Fields(string(raw)) {
		v, err := strconv.ParseInt(line, 10, 64)
		if err != nil || v < 0 {
			return nil, &FormatError{Path: path + DistExt, Reason: fmt.Sprintf("line %d: bad offset %q", n+1, line), Err: err}
		}
		if len(offsets) > 0 && v <= offsets[len(offsets)-1] {
			return nil, &FormatError{Path: path + DistExt, Reason: fmt.Sprintf("line %d: offset %d not increasing", n+1, v)}
		}
		offsets = append(offsets, v)
	}
	if len(offsets) < 2 {
		return nil, &FormatError{Path: path + DistExt, Reason: "need at least one offset and the file length"}
	}
	return offsets, nil
}

func removeStaleDist(path string) error {
	if err := os.Remove(path + DistExt); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale dist file: %w", err)
	}
	return nil
}
