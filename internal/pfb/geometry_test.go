package pfb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/hydro.report/internal/keytree"
)

func gridTree(t *testing.T) *keytree.Tree {
	t.Helper()
	tree := keytree.New()
	for k, v := range map[string]keytree.Value{
		"ComputationalGrid.Lower.X": keytree.Number(0),
		"ComputationalGrid.Lower.Y": keytree.Number(0),
		"ComputationalGrid.DX":      keytree.Number(10),
		"ComputationalGrid.DY":      keytree.Number(10),
		"ComputationalGrid.DZ":      keytree.Number(0.2),
		"ComputationalGrid.NX":      keytree.Int(20),
		"ComputationalGrid.NY":      keytree.Int(1),
		"ComputationalGrid.NZ":      keytree.Int(10),
	} {
		require.NoError(t, tree.Set(k, v))
	}
	return tree
}

func TestGeometryFromTree(t *testing.T) {
	tree := gridTree(t)
	geo, err := GeometryFromTree(tree)
	require.NoError(t, err)
	assert.Equal(t, Geometry{DX: 10, DY: 10, DZ: 0.2, NX: 20, NY: 1, NZ: 10}, geo)

	g := geo.NewGrid()
	assert.NoError(t, CheckExtents(tree, g))
	assert.Equal(t, 0.2, g.DZ)
	assert.Len(t, g.Data, 200)

	assert.ErrorIs(t, CheckExtents(tree, New(1, 10, 20)), ErrShapeMismatch)
}

func TestGeometryFromTreeErrors(t *testing.T) {
	tree := gridTree(t)
	require.NoError(t, tree.Delete("ComputationalGrid.DZ"))
	_, err := GeometryFromTree(tree)
	assert.ErrorIs(t, err, keytree.ErrKeyNotFound)

	tree = gridTree(t)
	require.NoError(t, tree.Set("ComputationalGrid.NX", keytree.Number(2.5)))
	_, err = GeometryFromTree(tree)
	assert.ErrorIs(t, err, keytree.ErrTypeMismatch)

	tree = gridTree(t)
	require.NoError(t, tree.Set("ComputationalGrid.NY", keytree.Int(0)))
	_, err = GeometryFromTree(tree)
	assert.Error(t, err)
}

func TestLayoutFromTree(t *testing.T) {
	tree := keytree.New()
	l, err := LayoutFromTree(tree)
	require.NoError(t, err)
	assert.Equal(t, SingleLayout, l)

	require.NoError(t, tree.Set("Process.Topology.P", keytree.Int(2)))
	require.NoError(t, tree.Set("Process.Topology.R", keytree.Int(3)))
	l, err = LayoutFromTree(tree)
	require.NoError(t, err)
	assert.Equal(t, Layout{P: 2, Q: 1, R: 3}, l)
	assert.True(t, l.Distributed())
	assert.Equal(t, 6, l.Parts())

	require.NoError(t, tree.Set("Process.Topology.Q", keytree.String("two")))
	_, err = LayoutFromTree(tree)
	assert.ErrorIs(t, err, keytree.ErrTypeMismatch)
}
