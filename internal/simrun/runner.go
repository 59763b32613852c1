// Package simrun invokes the external simulator on a finished key tree and
// checks that it produced its outputs.
package simrun

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/banshee-data/hydro.report/internal/fsutil"
	"github.com/banshee-data/hydro.report/internal/keytree"
	"github.com/banshee-data/hydro.report/internal/monitoring"
	"github.com/banshee-data/hydro.report/internal/pfb"
)

// DefaultFileVersion is written when the tree does not set FileVersion.
const DefaultFileVersion = 4

// Run statuses.
const (
	StatusSucceeded     = "succeeded"
	StatusFailed        = "failed"
	StatusMissingOutput = "missing_output"
	StatusDryRun        = "dry_run"
)

// Record describes one simulator invocation.
type Record struct {
	ID         uuid.UUID
	Name       string
	WorkDir    string
	Command    string
	Status     string
	ExitCode   int
	Error      string
	Output     string
	StartedAt  time.Time
	FinishedAt time.Time
	Keys       []keytree.Entry
	Outputs    []string
}

// Duration returns the wall time of the run.
func (r *Record) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// RunStore persists run records.
type RunStore interface {
	RecordRun(rec *Record) error
}

// Runner writes a key database, invokes the simulator on it and checks
// the expected outputs exist.
type Runner struct {
	// ParflowDir locates bin/run. Ignored when Command is set.
	ParflowDir string
	// Command replaces "sh $PARFLOW_DIR/bin/run"; the run name and process
	// count are appended.
	Command []string
	// ExtraOutputs are file names, relative to the working directory, that
	// must exist after a successful run.
	ExtraOutputs []string

	Executor Executor
	FS       fsutil.FileSystem
	Clock    clockwork.Clock
	Store    RunStore
	Metrics  *Metrics
}

// NewRunner returns a runner using the local executor, the OS filesystem and
// the real clock.
func NewRunner(parflowDir string) *Runner {
	return &Runner{
		ParflowDir: parflowDir,
		Executor:   NewLocalExecutor(false),
		FS:         fsutil.OSFileSystem{},
		Clock:      clockwork.NewRealClock(),
	}
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\ `) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Prepare returns the tree as it will be handed to the simulator: a copy of
// tree with FileVersion defaulted.
func Prepare(tree *keytree.Tree) (*keytree.Tree, error) {
	t := tree.Clone()
	if !t.Has("FileVersion") {
		if err := t.Set("FileVersion", keytree.Int(DefaultFileVersion)); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ExpectedOutputs returns the output files a successful run of tree must
// leave in its working directory: the initial pressure file unless
// Solver.PrintPressure is False.
func ExpectedOutputs(name string, tree *keytree.Tree) ([]string, error) {
	enabled, err := tree.BoolOr("Solver.PrintPressure", true)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, nil
	}
	start, err := tree.IntOr("TimingInfo.StartCount", 0)
	if err != nil {
		return nil, err
	}
	return []string{OutputFile(name, "press", start)}, nil
}

func (r *Runner) command(name string, procs int, workDir string) (Command, error) {
	var base []string
	var env []string
	switch {
	case len(r.Command) > 0:
		base = r.Command
	case r.ParflowDir != "":
		base = []string{"sh", filepath.Join(r.ParflowDir, "bin", "run")}
		env = []string{"PARFLOW_DIR=" + r.ParflowDir}
	default:
		return Command{}, errors.New("PARFLOW_DIR is not set and no run command was configured")
	}
	args := append(append([]string(nil), base[1:]...), name, strconv.Itoa(procs))
	return Command{Path: base[0], Args: args, Dir: workDir, Env: env}, nil
}

// Run writes <name>.pfidb into workDir, runs the simulator there and
// blocks until it exits. A non-zero exit is an *ExitError and a zero exit
// with missing outputs a *MissingOutputError. The returned record
// describes the invocation whenever the process was started, including
// on those errors.
func (r *Runner) Run(name string, tree *keytree.Tree, workDir string) (*Record, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	t, err := Prepare(tree)
	if err != nil {
		return nil, err
	}
	layout, err := pfb.LayoutFromTree(t)
	if err != nil {
		return nil, err
	}
	expected, err := ExpectedOutputs(name, t)
	if err != nil {
		return nil, err
	}
	expected = append(expected, r.ExtraOutputs...)
	cmd, err := r.command(name, layout.Parts(), workDir)
	if err != nil {
		return nil, err
	}

	if err := r.FS.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}
	if err := r.writeDatabase(t, filepath.Join(workDir, name+keytree.DatabaseExt)); err != nil {
		return nil, err
	}

	rec := &Record{
		ID:      uuid.New(),
		Name:    name,
		WorkDir: workDir,
		Command: cmd.String(),
		Keys:    t.Entries(),
	}
	monitoring.Logf("run %s: %s in %s", rec.ID, rec.Command, workDir)

	rec.StartedAt = r.Clock.Now()
	res, err := r.Executor.Execute(cmd)
	rec.FinishedAt = r.Clock.Now()
	rec.Output = res.Output
	rec.ExitCode = res.ExitCode
	if err != nil {
		// The process never ran; nothing to record.
		return nil, err
	}

	var runErr error
	found := 0
	switch {
	case res.ExitCode != 0:
		rec.Status = StatusFailed
		runErr = &ExitError{Command: rec.Command, Code: res.ExitCode, Output: res.Output}
	case r.isDryRun():
		rec.Status = StatusDryRun
	default:
		var missing []string
		for _, f := range expected {
			p := filepath.Join(workDir, f)
			if r.FS.Exists(p) {
				rec.Outputs = append(rec.Outputs, p)
				found++
			} else {
				missing = append(missing, p)
			}
		}
		if len(missing) > 0 {
			rec.Status = StatusMissingOutput
			runErr = &MissingOutputError{Paths: missing}
		} else {
			rec.Status = StatusSucceeded
		}
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	monitoring.Logf("run %s: %s after %s", rec.ID, rec.Status, rec.Duration())

	r.Metrics.observe(rec, found)
	if r.Store != nil {
		if err := r.Store.RecordRun(rec); err != nil {
			monitoring.Logf("run %s: failed to record run: %v", rec.ID, err)
		}
	}
	return rec, runErr
}

func (r *Runner) isDryRun() bool {
	le, ok := r.Executor.(*LocalExecutor)
	return ok && le.DryRun
}

func (r *Runner) writeDatabase(t *keytree.Tree, path string) error {
	w, err := r.FS.Create(path)
	if err != nil {
		return fmt.Errorf("create key database: %w", err)
	}
	if err := t.Serialize(w); err != nil {
		w.Close()
		return fmt.Errorf("write key database %s: %w", path, err)
	}
	return w.Close()
}

// Distribute rewrites the grid file at path under the process topology of
// tree, after checking its extents against the declared computational
// grid.
func (r *Runner) Distribute(tree *keytree.Tree, path string) error {
	layout, err := pfb.LayoutFromTree(tree)
	if err != nil {
		return err
	}
	g, err := pfb.Read(path)
	if err != nil {
		return err
	}
	if err := pfb.CheckExtents(tree, g); err != nil {
		return fmt.Errorf("distribute %s: %w", path, err)
	}
	monitoring.Logf("distributing %s as %s", path, layout)
	return pfb.Write(path, g, layout)
}
