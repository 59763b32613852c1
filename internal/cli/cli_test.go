package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/hydro.report/internal/config"
	"github.com/banshee-data/hydro.report/internal/db"
	"github.com/banshee-data/hydro.report/internal/keytree"
	"github.com/banshee-data/hydro.report/internal/pfb"
	"github.com/banshee-data/hydro.report/internal/simrun"
	"github.com/banshee-data/hydro.report/internal/testutil"
)

// fakeSimulator writes the initial pressure file of the run it is asked
// to execute, or fails with exitCode.
type fakeSimulator struct {
	exitCode int
	commands []simrun.Command
}

func (f *fakeSimulator) Execute(cmd simrun.Command) (simrun.Result, error) {
	f.commands = append(f.commands, cmd)
	if f.exitCode != 0 {
		return simrun.Result{ExitCode: f.exitCode, Output: "solver diverged\n"}, nil
	}
	name := cmd.Args[len(cmd.Args)-2]
	g := pfb.New(testutil.HillslopeNZ, testutil.HillslopeNY, testutil.HillslopeNX)
	if err := pfb.Write(filepath.Join(cmd.Dir, simrun.OutputFile(name, "press", 0)), g, pfb.SingleLayout); err != nil {
		return simrun.Result{}, err
	}
	return simrun.Result{Output: "ok\n"}, nil
}

type harness struct {
	t   *testing.T
	app *App
	out *bytes.Buffer
	err *bytes.Buffer
	dir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	testutil.MuteLogs(t)
	for _, k := range []string{"PARFLOW_DIR", "HYDRO_PARFLOW_DIR", "HYDRO_DB_PATH", "HYDRO_WORK_DIR", "HYDRO_LOG_LEVEL", "HYDRO_PLOT_FORMAT"} {
		t.Setenv(k, "")
	}
	h := &harness{t: t, out: &bytes.Buffer{}, err: &bytes.Buffer{}, dir: t.TempDir()}
	h.app = NewApp(h.out, h.err)
	return h
}

// run executes one command line against a fresh command tree.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	h.out.Reset()
	h.err.Reset()
	h.app.Viper = config.NewViper()
	root := NewRootCommand(h.app)
	root.SetArgs(append([]string{"--db", filepath.Join(h.dir, "runs.db"), "-C", filepath.Join(h.dir, "work")}, args...))
	err := root.Execute()
	return h.out.String(), err
}

func (h *harness) path(parts ...string) string {
	return filepath.Join(append([]string{h.dir}, parts...)...)
}

func (h *harness) writeScenario() string {
	h.t.Helper()
	require.NoError(h.t, testutil.HillslopeTree(h.t).WriteFile(h.path("base.pfidb")))
	src := `
run_name = "tilted_v"
base     = "base.pfidb"
keys = {
  "Geom.box2.Porosity.Value" = 0.05
  "Process.Topology.P"       = 2
}
indicator "IndicatorFile.pfb" {
  background = 0
  region "box2" {
    class  = 1
    layers = [2, 2]
  }
}
`
	p := h.path("tilted_v.hcl")
	require.NoError(h.t, os.WriteFile(p, []byte(src), 0o644))
	return p
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	out, err := h.run("version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "hydro-report dev"), out)
}

func TestKeysCommands(t *testing.T) {
	h := newHarness(t)
	dbPath := h.path("run.pfidb")

	_, err := h.run("keys", "set", dbPath, "Geom.box2.Porosity.Value=0.05", "Geom.domain.Porosity.Value=0.25", "Solver=Richards")
	require.NoError(t, err)

	out, err := h.run("keys", "get", dbPath, "Geom.box2.Porosity.Value")
	require.NoError(t, err)
	assert.Equal(t, "0.05\n", out)

	out, err = h.run("keys", "show", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Geom.domain.Porosity.Value")
	assert.Contains(t, out, "Richards")

	out, err = h.run("keys", "show", dbPath, "--prefix", "Geom.box2", "--format", "pfidb")
	require.NoError(t, err)
	assert.Equal(t, "1\n14\nPorosity.Value\n4\n0.05\n", out)

	out, err = h.run("keys", "show", dbPath, "-f", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Porosity:\n")

	jsonPath := h.path("run.json")
	out, err = h.run("keys", "export", dbPath, jsonPath)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 3 keys")
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Value": 0.05`)

	yamlPath := h.path("run.yaml")
	_, err = h.run("keys", "export", dbPath, yamlPath)
	require.NoError(t, err)
	t2, err := keytree.ReadYAMLFile(yamlPath)
	require.NoError(t, err)
	orig, err := keytree.ReadFile(dbPath)
	require.NoError(t, err)
	assert.True(t, orig.Equal(t2))

	_, err = h.run("keys", "set", dbPath, "--unset", "Solver", "TimeStep.Value=1")
	require.NoError(t, err)
	out, err = h.run("keys", "get", dbPath, "TimeStep.Value")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)
	_, err = h.run("keys", "get", dbPath, "Solver")
	assert.ErrorIs(t, err, keytree.ErrKeyNotFound)

	_, err = h.run("keys", "show", dbPath, "--format", "xml")
	assert.Error(t, err)
}

func TestKeysSetIsAtomic(t *testing.T) {
	h := newHarness(t)
	dbPath := h.path("run.pfidb")
	_, err := h.run("keys", "set", dbPath, "Geom.box2=leaf")
	require.NoError(t, err)
	before, err := os.ReadFile(dbPath)
	require.NoError(t, err)

	_, err = h.run("keys", "set", dbPath, "A=1", "Geom.box2.Porosity.Value=0.05")
	assert.ErrorIs(t, err, keytree.ErrKeyCollision)
	_, err = h.run("keys", "set", dbPath, "no-equals-sign")
	assert.Error(t, err)

	after, err := os.ReadFile(dbPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestScenarioApplyAndGridCommands(t *testing.T) {
	h := newHarness(t)
	scen := h.writeScenario()

	out, err := h.run("scenario", "apply", scen, "--indicators")
	require.NoError(t, err)
	dbPath := h.path("work", "tilted_v.pfidb")
	indPath := h.path("work", "IndicatorFile.pfb")
	assert.Contains(t, out, dbPath)
	assert.Contains(t, out, indPath)

	out, err = h.run("keys", "get", dbPath, "Geom.box2.Porosity.Value")
	require.NoError(t, err)
	assert.Equal(t, "0.05\n", out)

	out, err = h.run("grid", "info", indPath)
	require.NoError(t, err)
	assert.Contains(t, out, "20 x 1 x 10 (200 cells)")
	assert.Contains(t, out, "1x1x1 (1 subgrids)")

	out, err = h.run("grid", "stats", indPath, "--layers")
	require.NoError(t, err)
	assert.Contains(t, out, "layer 2")
	assert.Regexp(t, `all\s+200\s+0\s+1\s+0\.1`, out)

	// The scenario asks for two processes along x.
	out, err = h.run("grid", "dist", dbPath, indPath)
	require.NoError(t, err)
	assert.Contains(t, out, "2x1x1")
	offsets, err := pfb.ReadDist(indPath + pfb.DistExt)
	require.NoError(t, err)
	assert.Len(t, offsets, 3)

	_, err = h.run("grid", "dist", "-", indPath, "--layout", "1x1x2")
	require.NoError(t, err)
	hdr, err := pfb.ReadHeader(indPath)
	require.NoError(t, err)
	assert.Equal(t, pfb.Layout{P: 1, Q: 1, R: 2}, hdr.Layout())

	_, err = h.run("grid", "dist", "-", indPath, "--layout", "2x2")
	assert.Error(t, err)

	out, err = h.run("grid", "indicator", scen, "-o", h.path("indicators"))
	require.NoError(t, err)
	assert.Contains(t, out, h.path("indicators", "IndicatorFile.pfb"))
}

func TestRunRecordsHistory(t *testing.T) {
	h := newHarness(t)
	sim := &fakeSimulator{}
	h.app.Executor = sim
	scen := h.writeScenario()
	metrics := h.path("metrics.prom")

	out, err := h.run("--metrics-file", metrics, "--parflow-dir", "/opt/parflow", "run", scen)
	require.NoError(t, err)
	assert.Contains(t, out, "succeeded")

	require.Len(t, sim.commands, 1)
	assert.Equal(t, []string{"/opt/parflow/bin/run", "tilted_v", "2"}, sim.commands[0].Args)
	assert.FileExists(t, h.path("work", "tilted_v.pfidb"))
	assert.FileExists(t, h.path("work", "IndicatorFile.pfb"))

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `hydro_runs_total{status="succeeded"} 1`)

	store, err := db.NewDB(h.path("runs.db"))
	require.NoError(t, err)
	runs, err := store.ListRuns("tilted_v", 0)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.Len(t, runs, 1)
	id := runs[0].ID.String()

	out, err = h.run("history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "tilted_v")

	out, err = h.run("history", "show", id, "--keys")
	require.NoError(t, err)
	assert.Contains(t, out, "Geom.box2.Porosity.Value")
	assert.Contains(t, out, "FileVersion")

	_, err = h.run("history", "show", "not-a-uuid")
	assert.Error(t, err)
}

func TestRunFailurePassesExitCode(t *testing.T) {
	h := newHarness(t)
	h.app.Executor = &fakeSimulator{exitCode: 3}
	dbPath := h.path("hill slope.pfidb")
	require.NoError(t, testutil.HillslopeTree(t).WriteFile(dbPath))

	out, err := h.run("run", dbPath, "--command", "mpirun -np 1 parflow")
	var exitErr *simrun.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "hill_slope")
	assert.Equal(t, "solver diverged\n", h.err.String())
}

func TestRunNeedsSimulator(t *testing.T) {
	h := newHarness(t)
	dbPath := h.path("run.pfidb")
	require.NoError(t, testutil.HillslopeTree(t).WriteFile(dbPath))
	_, err := h.run("run", dbPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PARFLOW_DIR")
}

func TestHistoryDisabled(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("--db", "", "history", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}

func TestServeStopsWithContext(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("--db", "", "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")

	h.app.Viper = config.NewViper()
	root := NewRootCommand(h.app)
	root.SetArgs([]string{"--db", h.path("runs.db"), "serve", "--listen", "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, root.ExecuteContext(ctx))
	assert.Equal(t, "127.0.0.1:0", h.app.Settings.Listen)
}

func TestMigrateCommands(t *testing.T) {
	h := newHarness(t)
	out, err := h.run("migrate", "version")
	require.NoError(t, err)
	assert.Equal(t, "schema version 0 (clean)\n", out)

	out, err = h.run("migrate", "up")
	require.NoError(t, err)
	assert.Equal(t, "schema version 2 (clean)\n", out)

	out, err = h.run("migrate", "down")
	require.NoError(t, err)
	assert.Equal(t, "schema version 1 (clean)\n", out)
}

// writeOutputs writes two timesteps of pressure and saturation plus the
// static fields storage needs.
func writeOutputs(t *testing.T, dir, name string) {
	t.Helper()
	write := func(field string, step int, v float64) {
		g := pfb.New(2, 1, 3)
		g.DX, g.DY, g.DZ = 1, 1, 0.5
		g.Fill(v)
		require.NoError(t, pfb.Write(filepath.Join(dir, simrun.OutputFile(name, field, step)), g, pfb.SingleLayout))
	}
	write("porosity", 0, 0.25)
	write("specific_storage", 0, 0)
	for step := 0; step < 2; step++ {
		write("press", step, float64(step))
		write("satur", step, 0.5)
	}
}

func TestPlotCommands(t *testing.T) {
	h := newHarness(t)
	runDir := h.path("out")
	require.NoError(t, os.MkdirAll(runDir, 0o755))
	writeOutputs(t, runDir, "hill")

	out, err := h.run("plot", "slice", runDir, "hill", "--step", "1", "--axis", "row")
	require.NoError(t, err)
	png := strings.TrimSpace(out)
	assert.Equal(t, filepath.Join(runDir, "hill.press.00001.row0.png"), png)
	data, err := os.ReadFile(png)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	html := h.path("slice.html")
	_, err = h.run("plot", "slice", runDir, "hill", "--format", "html", "-o", html)
	require.NoError(t, err)
	data, err = os.ReadFile(html)
	require.NoError(t, err)
	assert.Contains(t, string(data), "echarts")

	_, err = h.run("plot", "series", runDir, "hill", "--cell", "0,0,1", "--cell", "1,0,2")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(runDir, "hill.press.series.png"))

	_, err = h.run("plot", "series", runDir, "hill")
	assert.Error(t, err)
	_, err = h.run("plot", "series", runDir, "hill", "--cell", "0,0")
	assert.Error(t, err)

	_, err = h.run("plot", "storage", runDir, "hill", "--format", "html")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(runDir, "hill.storage.html"))

	out, err = h.run("plot", "report", runDir, "hill")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(runDir, "hill.press.report.html"))
	assert.Regexp(t, `1\s+1\s+1\s+1`, out)

	_, err = h.run("plot", "slice", runDir, "hill", "--format", "svg")
	assert.Error(t, err)
}

func TestParseHelpers(t *testing.T) {
	l, err := parseLayout("2X1x3")
	require.NoError(t, err)
	assert.Equal(t, pfb.Layout{P: 2, Q: 1, R: 3}, l)
	for _, bad := range []string{"", "2x1", "0x1x1", "ax1x1"} {
		_, err := parseLayout(bad)
		assert.Error(t, err, bad)
	}

	c, err := parseCell("3, 0, 19")
	require.NoError(t, err)
	assert.Equal(t, 19, c.I)
	_, err = parseCell("1,-1,0")
	assert.Error(t, err)

	e, err := parseAssignment("Solver.MaxIter=2500")
	require.NoError(t, err)
	assert.Equal(t, "Solver.MaxIter", e.Key)
	assert.True(t, e.Value.Equal(keytree.Int(2500)))
	e, err = parseAssignment("Patch.top.BCPressure.Type=OverlandFlow")
	require.NoError(t, err)
	assert.True(t, e.Value.Equal(keytree.String("OverlandFlow")))
	_, err = parseAssignment("=1")
	assert.Error(t, err)
}
