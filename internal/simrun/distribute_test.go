package simrun

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/hydro.report/internal/keytree"
	"github.com/banshee-data/hydro.report/internal/pfb"
)

func TestDistribute(t *testing.T) {
	tree := runTree(t)
	require.NoError(t, tree.Set("ComputationalGrid.NX", keytree.Int(4)))
	require.NoError(t, tree.Set("ComputationalGrid.NY", keytree.Int(1)))
	require.NoError(t, tree.Set("ComputationalGrid.NZ", keytree.Int(6)))
	for _, k := range []string{"DX", "DY", "DZ"} {
		require.NoError(t, tree.Set("ComputationalGrid."+k, keytree.Number(1)))
	}

	path := filepath.Join(t.TempDir(), "IndicatorFile.pfb")
	g := pfb.New(6, 1, 4)
	g.Fill(2)
	require.NoError(t, pfb.Write(path, g, pfb.SingleLayout))

	r, _, _ := newTestRunner(t)
	require.NoError(t, r.Distribute(tree, path))

	h, err := pfb.ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, pfb.Layout{P: 2, Q: 1, R: 3}, h.Layout())
	offsets, err := pfb.ReadDist(path)
	require.NoError(t, err)
	assert.Len(t, offsets, 7)

	require.NoError(t, tree.Set("ComputationalGrid.NX", keytree.Int(5)))
	assert.ErrorIs(t, r.Distribute(tree, path), pfb.ErrShapeMismatch)
}

func TestMetricsWriteTextfile(t *testing.T) {
	r, exec, _ := newTestRunner(t)
	exec.produce = []string{"v.out.press.00000.pfb"}
	_, err := r.Run("v", runTree(t), "/work")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "hydro.prom")
	require.NoError(t, r.Metrics.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, `hydro_runs_total{status="succeeded"} 1`), text)
	assert.Contains(t, text, "hydro_run_duration_seconds_sum 90")
}
