package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/banshee-data/hydro.report/internal/db"
	"github.com/banshee-data/hydro.report/internal/monitoring"
	"github.com/banshee-data/hydro.report/internal/simrun"
)

// openHistory opens the run history database, or returns nil when history
// is disabled.
func (app *App) openHistory() (*db.DB, error) {
	if app.Settings.DBPath == "" {
		return nil, nil
	}
	return db.NewDB(app.Settings.DBPath)
}

func (app *App) newRunner() *simrun.Runner {
	s := app.Settings
	r := simrun.NewRunner(s.ParflowDir)
	r.ExtraOutputs = s.ExtraOutputs
	if app.Executor != nil {
		r.Executor = app.Executor
	} else {
		exec := simrun.NewLocalExecutor(s.DryRun)
		exec.SetLogger(monitoring.DebugLogger{})
		r.Executor = exec
	}
	r.Metrics = simrun.NewMetrics()
	return r
}

func newRunCommand(app *App) *cobra.Command {
	var name string
	var command string
	cmd := &cobra.Command{
		Use:   "run INPUT",
		Short: "Run the simulator on a scenario or key database",
		Long: `run writes <name>.pfidb into work_dir, writes any indicator grids the
scenario describes, invokes the simulator there and waits for it. The run
is recorded in the history database and its metrics written to
metrics_file when set. A simulator exiting non-zero sets the exit status.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := loadInput(args[0], name)
			if err != nil {
				return err
			}
			r := app.newRunner()
			if command != "" {
				r.Command = strings.Fields(command)
			} else if _, err := app.Settings.RequireParflowDir(); err != nil {
				return err
			}

			history, err := app.openHistory()
			if err != nil {
				return err
			}
			if history != nil {
				defer history.Close()
				r.Store = history
			}

			// Recorded runs are looked up later from other directories.
			workDir, err := filepath.Abs(app.Settings.WorkDir)
			if err != nil {
				return err
			}
			if in.scenario != nil {
				if _, err := in.scenario.WriteIndicators(in.tree, workDir); err != nil {
					return err
				}
			}

			rec, runErr := r.Run(in.name, in.tree, workDir)
			if app.Settings.MetricsFile != "" {
				if err := r.Metrics.WriteTextfile(app.Settings.MetricsFile); err != nil {
					monitoring.Logf("write metrics %s: %v", app.Settings.MetricsFile, err)
				}
			}
			if rec != nil {
				printRecord(app, rec)
			}
			var exitErr *simrun.ExitError
			if errors.As(runErr, &exitErr) && exitErr.Output != "" {
				fmt.Fprint(app.Err, exitErr.Output)
			}
			return runErr
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "run name (default run_name or the database's base name)")
	cmd.Flags().StringVar(&command, "command", "", "simulator command replacing \"sh $PARFLOW_DIR/bin/run\"")
	return cmd
}

func printRecord(app *App, rec *simrun.Record) {
	fmt.Fprintf(app.Out, "run %s %s\n", rec.ID, rec.Status)
	fmt.Fprintf(app.Out, "  name      %s\n", rec.Name)
	fmt.Fprintf(app.Out, "  dir       %s\n", rec.WorkDir)
	fmt.Fprintf(app.Out, "  command   %s\n", rec.Command)
	fmt.Fprintf(app.Out, "  exit      %d\n", rec.ExitCode)
	fmt.Fprintf(app.Out, "  duration  %s\n", rec.Duration())
	for _, o := range rec.Outputs {
		fmt.Fprintf(app.Out, "  output    %s\n", o)
	}
	if rec.Error != "" {
		fmt.Fprintf(app.Out, "  error     %s\n", rec.Error)
	}
}
