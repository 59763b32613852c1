package pfb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func rampGrid(layers, rows, cols int) *Grid {
	g := New(layers, rows, cols)
	g.X0, g.Y0, g.Z0 = 10, 20, 30
	g.DX, g.DY, g.DZ = 1.5, 2.5, 0.5
	for n := range g.Data {
		g.Data[n] = float64(n) * 0.25
	}
	return g
}

func TestIndicatorRoundTrip(t *testing.T) {
	g := New(10, 1, 20)
	if err := g.SetBox(Box{K0: 2, K1: 2, J0: 0, J1: 0, I0: 0, I1: 19}, 1); err != nil {
		t.Fatalf("SetBox failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "IndicatorFile.pfb")
	if err := Write(path, g, SingleLayout); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	for k := 0; k < 10; k++ {
		for i := 0; i < 20; i++ {
			want := 0.0
			if k == 2 {
				want = 1
			}
			if v := got.At(k, 0, i); v != want {
				t.Errorf("At(%d,0,%d) = %v, want %v", k, i, v, want)
			}
		}
	}
	if !got.Equal(g) {
		t.Error("read grid differs from written grid")
	}
	if _, err := os.Stat(path + DistExt); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("single layout wrote a dist sidecar: %v", err)
	}
}

func TestRoundTripLayouts(t *testing.T) {
	layouts := []Layout{
		SingleLayout,
		{P: 2, Q: 1, R: 1},
		{P: 3, Q: 2, R: 1},
		{P: 2, Q: 3, R: 4},
		{P: 5, Q: 3, R: 4},
	}
	for _, l := range layouts {
		t.Run(l.String(), func(t *testing.T) {
			g := rampGrid(4, 3, 5)
			var buf bytes.Buffer
			if err := Encode(&buf, g, l); err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			got, err := Decode(&buf)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if diff := cmp.Diff(g, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRoundTripSpecialValues(t *testing.T) {
	g := New(1, 1, 4)
	copy(g.Data, []float64{math.Inf(1), math.Copysign(0, -1), math.SmallestNonzeroFloat64, math.NaN()})
	var buf bytes.Buffer
	if err := Encode(&buf, g, SingleLayout); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !got.Equal(g) {
		t.Errorf("got %v, want %v", got.Data, g.Data)
	}
	if !math.Signbit(got.Data[1]) {
		t.Error("negative zero lost its sign")
	}
}

func TestEncodeHeaderBytes(t *testing.T) {
	g := New(1, 1, 1)
	g.Data[0] = 1
	var buf bytes.Buffer
	if err := Encode(&buf, g, SingleLayout); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	raw := buf.Bytes()
	if len(raw) != headerSize+subgridHeaderSize+8 {
		t.Fatalf("file is %d bytes, want %d", len(raw), headerSize+subgridHeaderSize+8)
	}
	// NX, NY, NZ and the subgrid count are big-endian int32.
	for _, off := range []int{24, 28, 32, 60} {
		if got := raw[off : off+4]; !bytes.Equal(got, []byte{0, 0, 0, 1}) {
			t.Errorf("bytes at %d = %v, want 1", off, got)
		}
	}
	// DX = 1.0
	if got := raw[36:44]; !bytes.Equal(got, []byte{0x3f, 0xf0, 0, 0, 0, 0, 0, 0}) {
		t.Errorf("DX bytes = %x", got)
	}
	if got := raw[len(raw)-8:]; !bytes.Equal(got, []byte{0x3f, 0xf0, 0, 0, 0, 0, 0, 0}) {
		t.Errorf("cell bytes = %x", got)
	}
}

func TestDistSidecar(t *testing.T) {
	g := rampGrid(2, 3, 4)
	path := filepath.Join(t.TempDir(), "press.pfb")
	l := Layout{P: 2, Q: 1, R: 2}
	if err := Write(path, g, l); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	offsets, err := ReadDist(path)
	if err != nil {
		t.Fatalf("ReadDist failed: %v", err)
	}
	// Four subgrids of 2x3x1 cells: 36 header bytes plus 48 data bytes each.
	want := []int64{64, 148, 232, 316, 400}
	if diff := cmp.Diff(want, offsets); diff != "" {
		t.Errorf("dist offsets mismatch (-want +got):\n%s", diff)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != offsets[len(offsets)-1] {
		t.Errorf("file size %d, dist says %d", info.Size(), offsets[len(offsets)-1])
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	for n, s := range h.Subgrids {
		if s.Offset != offsets[n] {
			t.Errorf("subgrid %d header at %d, dist says %d", n, s.Offset, offsets[n])
		}
	}
	if got := h.Layout(); got != l {
		t.Errorf("Layout() = %v, want %v", got, l)
	}

	// Rewriting as a single subgrid removes the stale sidecar.
	if err := Redistribute(path, SingleLayout); err != nil {
		t.Fatalf("Redistribute failed: %v", err)
	}
	if _, err := os.Stat(path + DistExt); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("stale dist sidecar left behind: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if diff := cmp.Diff(g, got); diff != "" {
		t.Errorf("redistributed grid mismatch (-want +got):\n%s", diff)
	}
}

func TestSubgridsPartition(t *testing.T) {
	subs, err := Layout{P: 3, Q: 1, R: 1}.Subgrids(10, 1, 1)
	if err != nil {
		t.Fatalf("Subgrids failed: %v", err)
	}
	var starts, sizes []int
	for _, s := range subs {
		starts = append(starts, s.IX)
		sizes = append(sizes, s.NX)
	}
	if diff := cmp.Diff([]int{0, 4, 7}, starts); diff != "" {
		t.Errorf("starts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{4, 3, 3}, sizes); diff != "" {
		t.Errorf("sizes mismatch (-want +got):\n%s", diff)
	}
}

func TestLayoutValidate(t *testing.T) {
	tests := []struct {
		name   string
		layout Layout
		ok     bool
	}{
		{"single", SingleLayout, true},
		{"exact fit", Layout{P: 4, Q: 3, R: 2}, true},
		{"zero part", Layout{P: 0, Q: 1, R: 1}, false},
		{"too many x parts", Layout{P: 5, Q: 1, R: 1}, false},
		{"too many z parts", Layout{P: 1, Q: 1, R: 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.layout.Validate(4, 3, 2)
			if (err == nil) != tt.ok {
				t.Errorf("Validate(%v) error = %v, want ok=%v", tt.layout, err, tt.ok)
			}
		})
	}
}

func TestEncodeShapeMismatch(t *testing.T) {
	g := New(2, 2, 2)
	g.Data = g.Data[:7]
	err := Encode(&bytes.Buffer{}, g, SingleLayout)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}

func encodeRaw(t *testing.T, g *Grid, subs []Subgrid) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := encode(&buf, g, subs); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	return buf.Bytes()
}

// withExtent overwrites the int32 header field at off.
func withExtent(raw []byte, off int, v uint32) []byte {
	out := append([]byte(nil), raw...)
	binary.BigEndian.PutUint32(out[off:], v)
	return out
}

func TestDecodeMalformed(t *testing.T) {
	g := New(1, 1, 2)
	whole := encodeRaw(t, g, []Subgrid{{NX: 2, NY: 1, NZ: 1}})
	wide := encodeRaw(t, New(1, 1, 3), []Subgrid{{IX: 1, NX: 2, NY: 1, NZ: 1}})

	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"short header", whole[:40]},
		{"short subgrid header", whole[:headerSize+10]},
		{"short data", whole[:len(whole)-3]},
		{"trailing bytes", append(append([]byte(nil), whole...), 0)},
		{"overlap", encodeRaw(t, g, []Subgrid{{NX: 2, NY: 1, NZ: 1}, {IX: 1, NX: 1, NY: 1, NZ: 1}})},
		{"missing coverage", encodeRaw(t, g, []Subgrid{{NX: 1, NY: 1, NZ: 1}})},
		{"outside extents", withExtent(wide, 24, 2)},
		{"zero extents", withExtent(whole, 32, 0)},
		{"zero subgrids", withExtent(whole, 60, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(tt.raw))
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FormatError, got %v", err)
			}
		})
	}
}

// hugeHeader is a bare file header declaring a 512x1024x2048 grid in one
// subgrid, optionally followed by that subgrid's header and no data.
func hugeHeader(withSubgrid bool) []byte {
	raw := make([]byte, headerSize, headerSize+subgridHeaderSize)
	be := binary.BigEndian
	be.PutUint32(raw[24:], 2048)
	be.PutUint32(raw[28:], 1024)
	be.PutUint32(raw[32:], 512)
	be.PutUint32(raw[60:], 1)
	if withSubgrid {
		var sh [subgridHeaderSize]byte
		for n, v := range []uint32{0, 0, 0, 2048, 1024, 512, 0, 0, 0} {
			be.PutUint32(sh[n*4:], v)
		}
		raw = append(raw, sh[:]...)
	}
	return raw
}

func TestDecodeHugeExtentsTruncated(t *testing.T) {
	for _, withSubgrid := range []bool{false, true} {
		raw := hugeHeader(withSubgrid)
		var fe *FormatError
		if _, err := Decode(bytes.NewReader(raw)); !errors.As(err, &fe) {
			t.Errorf("Decode(%d bytes): expected *FormatError, got %v", len(raw), err)
		}

		path := filepath.Join(t.TempDir(), "huge.pfb")
		if err := os.WriteFile(path, raw, 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		if _, err := Read(path); !errors.As(err, &fe) || fe.Path != path {
			t.Errorf("Read(%d bytes): expected *FormatError for %s, got %v", len(raw), path, err)
		}
	}
}

func TestWriteKeepsExistingFileOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "press.pfb")
	g := rampGrid(2, 3, 4)
	if err := Write(path, g, SingleLayout); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temporary file left behind: %v", err)
	}

	// A directory in the way of the temporary file makes the next write fail.
	if err := os.Mkdir(path+".tmp", 0755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	if err := Write(path, rampGrid(1, 1, 1), SingleLayout); err == nil {
		t.Fatal("expected Write to fail")
	}
	if err := Redistribute(path, Layout{P: 2, Q: 1, R: 1}); err == nil {
		t.Fatal("expected Redistribute to fail")
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read after failed write: %v", err)
	}
	if diff := cmp.Diff(g, got); diff != "" {
		t.Errorf("grid changed after failed write (-want +got):\n%s", diff)
	}
}

func TestReadReportsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pfb")
	if err := os.WriteFile(path, []byte("not a grid"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := Read(path)
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FormatError, got %v", err)
	}
	if fe.Path != path {
		t.Errorf("FormatError.Path = %q, want %q", fe.Path, path)
	}

	if _, err := ReadHeader(path); !errors.As(err, &fe) || fe.Path != path {
		t.Errorf("ReadHeader error = %v, want FormatError for %s", err, path)
	}

	if _, err := Read(filepath.Join(t.TempDir(), "missing.pfb")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestReadHeaderTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.pfb")
	raw := encodeRaw(t, rampGrid(2, 2, 2), []Subgrid{{NX: 2, NY: 2, NZ: 2}})
	if err := os.WriteFile(path, raw[:len(raw)-8], 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	var fe *FormatError
	if _, err := ReadHeader(path); !errors.As(err, &fe) {
		t.Errorf("expected *FormatError, got %v", err)
	}
}

func TestReadDistMalformed(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"garbage":        "64\nabc\n",
		"decreasing":     "64\n32\n100\n",
		"only one value": "64\n",
	} {
		path := filepath.Join(dir, name+".pfb")
		if err := os.WriteFile(path+DistExt, []byte(body), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		var fe *FormatError
		if _, err := ReadDist(path); !errors.As(err, &fe) {
			t.Errorf("%s: expected *FormatError, got %v", name, err)
		}
	}
}
