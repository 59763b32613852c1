package pfb

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

const (
	headerSize        = 3*8 + 3*4 + 3*8 + 4
	subgridHeaderSize = 9 * 4
	// maxCells bounds the declared grid size so a corrupt header cannot
	// trigger a huge allocation.
	maxCells = 1 << 31
)

// Header is the file-level metadata of a grid file plus its subgrid table.
type Header struct {
	X0, Y0, Z0 float64
	NX, NY, NZ int
	DX, DY, DZ float64
	Subgrids   []Subgrid
}

// Layout infers the topology of the subgrid table, assuming it was written
// by a regular P×Q×R partition.
func (h *Header) Layout() Layout {
	var l Layout
	for _, s := range h.Subgrids {
		if s.IY == 0 && s.IZ == 0 {
			l.P++
		}
		if s.IX == 0 && s.IZ == 0 {
			l.Q++
		}
		if s.IX == 0 && s.IY == 0 {
			l.R++
		}
	}
	return l
}

// Encode writes g to w partitioned by layout.
func Encode(w io.Writer, g *Grid, layout Layout) error {
	if len(g.Data) != g.Len() {
		return fmt.Errorf("%w: %d values for %dx%dx%d grid", ErrShapeMismatch, len(g.Data), g.NZ, g.NY, g.NX)
	}
	subs, err := layout.Subgrids(g.NX, g.NY, g.NZ)
	if err != nil {
		return err
	}
	return encode(w, g, subs)
}

func encode(w io.Writer, g *Grid, subs []Subgrid) error {
	bw := bufio.NewWriter(w)
	var hdr [headerSize]byte
	be := binary.BigEndian
	be.PutUint64(hdr[0:], math.Float64bits(g.X0))
	be.PutUint64(hdr[8:], math.Float64bits(g.Y0))
	be.PutUint64(hdr[16:], math.Float64bits(g.Z0))
	be.PutUint32(hdr[24:], uint32(g.NX))
	be.PutUint32(hdr[28:], uint32(g.NY))
	be.PutUint32(hdr[32:], uint32(g.NZ))
	be.PutUint64(hdr[36:], math.Float64bits(g.DX))
	be.PutUint64(hdr[44:], math.Float64bits(g.DY))
	be.PutUint64(hdr[52:], math.Float64bits(g.DZ))
	be.PutUint32(hdr[60:], uint32(len(subs)))
	if _, err := bw.Write(hdr[:]); err != nil {
		return err
	}

	var sh [subgridHeaderSize]byte
	var cell [8]byte
	for _, s := range subs {
		for n, v := range []int{s.IX, s.IY, s.IZ, s.NX, s.NY, s.NZ, s.RX, s.RY, s.RZ} {
			be.PutUint32(sh[n*4:], uint32(int32(v)))
		}
		if _, err := bw.Write(sh[:]); err != nil {
			return err
		}
		for k := s.IZ; k < s.IZ+s.NZ; k++ {
			for j := s.IY; j < s.IY+s.NY; j++ {
				row := g.Index(k, j, 0)
				for i := s.IX; i < s.IX+s.NX; i++ {
					be.PutUint64(cell[:], math.Float64bits(g.Data[row+i]))
					if _, err := bw.Write(cell[:]); err != nil {
						return err
					}
				}
			}
		}
	}
	return bw.Flush()
}

// Write encodes g to path. A distributed layout also writes the .dist
// sidecar; a single layout removes any stale one.
func Write(path string, g *Grid, layout Layout) error {
	if len(g.Data) != g.Len() {
		return fmt.Errorf("%w: %d values for %dx%dx%d grid", ErrShapeMismatch, len(g.Data), g.NZ, g.NY, g.NX)
	}
	subs, err := layout.Subgrids(g.NX, g.NY, g.NZ)
	if err != nil {
		return err
	}
	// Encode next to path and rename over it; a failed write leaves any
	// existing file intact.
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create grid file: %w", err)
	}
	if err := encode(f, g, subs); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write grid file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close grid file %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace grid file %s: %w", path, err)
	}
	if !layout.Distributed() {
		return removeStaleDist(path)
	}
	last := subs[len(subs)-1]
	total := last.Offset + subgridHeaderSize + int64(last.Len())*8
	return writeDist(path+DistExt, subs, total)
}

// countingReader tracks the offset reached so errors can report it.
type countingReader struct {
	r   io.Reader
	off int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.off += int64(n)
	return n, err
}

func readHeader(cr *countingReader, path string) (*Header, int, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(cr, hdr[:]); err != nil {
		return nil, 0, &FormatError{Path: path, Offset: cr.off, Reason: "short file header", Err: err}
	}
	be := binary.BigEndian
	h := &Header{
		X0: math.Float64frombits(be.Uint64(hdr[0:])),
		Y0: math.Float64frombits(be.Uint64(hdr[8:])),
		Z0: math.Float64frombits(be.Uint64(hdr[16:])),
		NX: int(int32(be.Uint32(hdr[24:]))),
		NY: int(int32(be.Uint32(hdr[28:]))),
		NZ: int(int32(be.Uint32(hdr[32:]))),
		DX: math.Float64frombits(be.Uint64(hdr[36:])),
		DY: math.Float64frombits(be.Uint64(hdr[44:])),
		DZ: math.Float64frombits(be.Uint64(hdr[52:])),
	}
	count := int(int32(be.Uint32(hdr[60:])))
	if h.NX < 1 || h.NY < 1 || h.NZ < 1 || int64(h.NX)*int64(h.NY)*int64(h.NZ) > maxCells {
		return nil, 0, &FormatError{Path: path, Reason: fmt.Sprintf("bad extents %dx%dx%d", h.NX, h.NY, h.NZ)}
	}
	if count < 1 || count > h.NX*h.NY*h.NZ {
		return nil, 0, &FormatError{Path: path, Offset: 60, Reason: fmt.Sprintf("bad subgrid count %d", count)}
	}
	return h, count, nil
}

func readSubgridHeader(cr *countingReader, h *Header, path string) (Subgrid, error) {
	start := cr.off
	var sh [subgridHeaderSize]byte
	if _, err := io.ReadFull(cr, sh[:]); err != nil {
		return Subgrid{}, &FormatError{Path: path, Offset: start, Reason: "short subgrid header", Err: err}
	}
	var v [9]int
	for n := range v {
		v[n] = int(int32(binary.BigEndian.Uint32(sh[n*4:])))
	}
	s := Subgrid{IX: v[0], IY: v[1], IZ: v[2], NX: v[3], NY: v[4], NZ: v[5], RX: v[6], RY: v[7], RZ: v[8], Offset: start}
	if s.IX < 0 || s.IY < 0 || s.IZ < 0 || s.NX < 1 || s.NY < 1 || s.NZ < 1 ||
		s.IX+s.NX > h.NX || s.IY+s.NY > h.NY || s.IZ+s.NZ > h.NZ {
		return Subgrid{}, &FormatError{Path: path, Offset: start, Reason: fmt.Sprintf(
			"subgrid at (%d,%d,%d) size %dx%dx%d outside %dx%dx%d grid",
			s.IX, s.IY, s.IZ, s.NX, s.NY, s.NZ, h.NX, h.NY, h.NZ)}
	}
	return s, nil
}

// Decode parses a grid file of any subgrid layout from r. Cell storage
// grows with the data actually read, so a header declaring extents the
// input cannot back fails without a large allocation.
func Decode(r io.Reader) (*Grid, error) {
	return decode(r, "", -1)
}

// decode parses a grid file. A non-negative size is the total input length
// and is checked against the header before any cell data is read.
func decode(r io.Reader, path string, size int64) (*Grid, error) {
	cr := &countingReader{r: bufio.NewReader(r)}
	h, count, err := readHeader(cr, path)
	if err != nil {
		return nil, err
	}
	cells := h.NX * h.NY * h.NZ
	if size >= 0 {
		if need := int64(headerSize) + int64(count)*subgridHeaderSize + int64(cells)*8; size < need {
			return nil, &FormatError{Path: path, Offset: size, Reason: fmt.Sprintf(
				"%dx%dx%d grid with %d subgrids needs %d bytes, file has %d", h.NX, h.NY, h.NZ, count, need, size)}
		}
	}

	subs := make([]Subgrid, 0, min(count, 1024))
	var vals []float64
	filled := 0
	var buf []byte
	for n := 0; n < count; n++ {
		s, err := readSubgridHeader(cr, h, path)
		if err != nil {
			return nil, err
		}
		if filled += s.Len(); filled > cells {
			return nil, &FormatError{Path: path, Offset: s.Offset, Reason: fmt.Sprintf(
				"subgrids cover more than %d cells", cells)}
		}
		if need := s.NX * 8; cap(buf) < need {
			buf = make([]byte, need)
		}
		row := buf[:s.NX*8]
		for k := 0; k < s.NZ*s.NY; k++ {
			at := cr.off
			if _, err := io.ReadFull(cr, row); err != nil {
				return nil, &FormatError{Path: path, Offset: at, Reason: fmt.Sprintf("short data in subgrid %d", n), Err: err}
			}
			for i := 0; i < s.NX; i++ {
				vals = append(vals, math.Float64frombits(binary.BigEndian.Uint64(row[i*8:])))
			}
		}
		subs = append(subs, s)
	}
	if filled != cells {
		return nil, &FormatError{Path: path, Offset: cr.off, Reason: fmt.Sprintf(
			"subgrids cover %d of %d cells", filled, cells)}
	}
	var one [1]byte
	end := cr.off
	n, err := io.ReadFull(cr, one[:])
	if n > 0 {
		return nil, &FormatError{Path: path, Offset: end, Reason: "trailing bytes after last subgrid"}
	}
	if !errors.Is(err, io.EOF) {
		return nil, &FormatError{Path: path, Offset: end, Reason: "read past last subgrid", Err: err}
	}

	g := &Grid{
		X0: h.X0, Y0: h.Y0, Z0: h.Z0,
		DX: h.DX, DY: h.DY, DZ: h.DZ,
		NX: h.NX, NY: h.NY, NZ: h.NZ,
		Data: make([]float64, cells),
	}
	covered := make([]bool, cells)
	next := 0
	for n, s := range subs {
		for k := s.IZ; k < s.IZ+s.NZ; k++ {
			for j := s.IY; j < s.IY+s.NY; j++ {
				base := g.Index(k, j, 0)
				for i := 0; i < s.NX; i++ {
					idx := base + s.IX + i
					if covered[idx] {
						return nil, &FormatError{Path: path, Offset: s.Offset, Reason: fmt.Sprintf(
							"subgrid %d overlaps cell (%d,%d,%d)", n, k, j, s.IX+i)}
					}
					covered[idx] = true
					g.Data[idx] = vals[next]
					next++
				}
			}
		}
	}
	return g, nil
}

// Read parses the grid file at path.
func Read(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open grid file: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat grid file: %w", err)
	}
	return decode(f, path, info.Size())
}

// ReadHeader returns the header and subgrid table of the grid file at path
// without loading cell data.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open grid file: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat grid file: %w", err)
	}

	cr := &countingReader{r: f}
	h, count, err := readHeader(cr, path)
	if err != nil {
		return nil, err
	}
	for n := 0; n < count; n++ {
		s, err := readSubgridHeader(cr, h, path)
		if err != nil {
			return nil, err
		}
		end := cr.off + int64(s.Len())*8
		if end > info.Size() {
			return nil, &FormatError{Path: path, Offset: s.Offset, Reason: fmt.Sprintf("subgrid %d data runs past end of file", n)}
		}
		if _, err := f.Seek(end, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seek grid file %s: %w", path, err)
		}
		cr.off = end
		h.Subgrids = append(h.Subgrids, s)
	}
	if cr.off != info.Size() {
		return nil, &FormatError{Path: path, Offset: cr.off, Reason: "trailing bytes after last subgrid"}
	}
	return h, nil
}

// Redistribute rewrites the grid file at path under a new layout.
func Redistribute(path string, layout Layout) error {
	g, err := Read(path)
	if err != nil {
		return err
	}
	return Write(path, g, layout)
}
