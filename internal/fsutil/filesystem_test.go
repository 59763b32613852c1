package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, fsys FileSystem, root string) {
	t.Helper()
	dir := filepath.Join(root, "run", "tilted_v")
	require.NoError(t, fsys.MkdirAll(dir, 0o755))
	assert.True(t, fsys.Exists(dir))
	assert.True(t, fsys.Exists(filepath.Join(root, "run")))

	db := filepath.Join(dir, "tilted_v.pfidb")
	assert.False(t, fsys.Exists(db))
	w, err := fsys.Create(db)
	require.NoError(t, err)
	_, err = w.Write([]byte("1\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("3\nA.B\n1\n2\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.True(t, fsys.Exists(db))

	data, err := fsys.ReadFile(db)
	require.NoError(t, err)
	assert.Equal(t, "1\n3\nA.B\n1\n2\n", string(data))

	out := filepath.Join(dir, "tilted_v.out.press.00000.pfb")
	require.NoError(t, fsys.WriteFile(out, []byte{1, 2, 3}, 0o644))
	data, err = fsys.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	_, err = fsys.ReadFile(filepath.Join(dir, "absent"))
	assert.True(t, errors.Is(err, fs.ErrNotExist), "got %v", err)
}

func TestOSFileSystem(t *testing.T) {
	exercise(t, OSFileSystem{}, t.TempDir())
}

func TestMemoryFileSystem(t *testing.T) {
	m := NewMemoryFileSystem()
	exercise(t, m, "/work")
	assert.Equal(t, []string{"tilted_v.out.press.00000.pfb", "tilted_v.pfidb"}, m.Files("/work/run/tilted_v"))
	assert.Empty(t, m.Files("/work"))
}

func TestMemoryFileSystemIsolation(t *testing.T) {
	m := NewMemoryFileSystem()
	data := []byte("abc")
	require.NoError(t, m.WriteFile("f", data, 0o644))
	data[0] = 'x'
	got, err := m.ReadFile("f")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
	got[1] = 'y'
	again, _ := m.ReadFile("./f")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryFileSystemConflicts(t *testing.T) {
	m := NewMemoryFileSystem()
	require.NoError(t, m.MkdirAll("/work/out", 0o755))
	_, err := m.Create("/work/out")
	assert.ErrorIs(t, err, fs.ErrExist)

	require.NoError(t, m.WriteFile("/work/file", nil, 0o644))
	assert.ErrorIs(t, m.MkdirAll("/work/file", 0o755), fs.ErrExist)
}

func TestCreateTruncates(t *testing.T) {
	m := NewMemoryFileSystem()
	require.NoError(t, m.WriteFile("db", []byte("old contents"), 0o644))
	w, err := m.Create("db")
	require.NoError(t, err)
	data, err := m.ReadFile("db")
	require.NoError(t, err)
	assert.Empty(t, data)
	_, _ = w.Write([]byte("new"))
	require.NoError(t, w.Close())
	data, _ = m.ReadFile("db")
	assert.Equal(t, "new", string(data))
}
