// Package cli implements the hydro-report command tree.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/banshee-data/hydro.report/internal/config"
	"github.com/banshee-data/hydro.report/internal/monitoring"
	"github.com/banshee-data/hydro.report/internal/simrun"
	"github.com/banshee-data/hydro.report/internal/version"
)

// App is the state shared by every command.
type App struct {
	Out io.Writer
	Err io.Writer

	// Viper merges defaults, the settings file, the environment and flags.
	Viper    *viper.Viper
	Settings *config.Settings

	// Executor replaces the local process executor when set.
	Executor simrun.Executor
}

// NewApp returns an App writing to the given streams.
func NewApp(out, errOut io.Writer) *App {
	return &App{Out: out, Err: errOut, Viper: config.NewViper()}
}

// option is a persistent flag bound to a settings key.
type option struct {
	name, key, shorthand, usage string
	defaultVal                  interface{}
}

var options = []option{
	{name: "config", usage: "settings file (json, yaml or toml)", defaultVal: ""},
	{name: "parflow-dir", key: "parflow_dir", usage: "simulator installation directory (default $PARFLOW_DIR)", defaultVal: ""},
	{name: "work-dir", key: "work_dir", shorthand: "C", usage: "directory runs and outputs are written to", defaultVal: "."},
	{name: "db", key: "db_path", usage: "run history database; empty disables history", defaultVal: config.DefaultDBPath},
	{name: "metrics-file", key: "metrics_file", usage: "write run metrics in Prometheus text format to this file", defaultVal: ""},
	{name: "log-level", key: "log_level", usage: "quiet, info or debug", defaultVal: config.LogInfo},
	{name: "verbose", shorthand: "v", usage: "shorthand for --log-level debug", defaultVal: false},
	{name: "dry-run", key: "dry_run", usage: "log simulator commands instead of running them", defaultVal: false},
}

func bindOptions(v *viper.Viper, set *pflag.FlagSet) {
	for _, o := range options {
		switch d := o.defaultVal.(type) {
		case string:
			set.StringP(o.name, o.shorthand, d, o.usage)
		case bool:
			set.BoolP(o.name, o.shorthand, d, o.usage)
		default:
			panic("invalid option type for " + o.name)
		}
		if o.key != "" {
			_ = v.BindPFlag(o.key, set.Lookup(o.name))
		}
	}
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "hydro-report",
		Short: "Configure, run and plot groundwater simulations.",
		Long: `hydro-report edits simulator key databases, writes and inspects PFB grid
files, runs the simulator, keeps a history of runs and plots their outputs.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.loadSettings(cmd)
		},
	}
	root.SetOut(app.Out)
	root.SetErr(app.Err)
	bindOptions(app.Viper, root.PersistentFlags())

	root.AddCommand(
		newKeysCommand(app),
		newGridCommand(app),
		newScenarioCommand(app),
		newRunCommand(app),
		newPlotCommand(app),
		newHistoryCommand(app),
		newServeCommand(app),
		newMigrateCommand(app),
		newVersionCommand(app),
	)
	return root
}

func (app *App) loadSettings(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if verbose, _ := flags.GetBool("verbose"); verbose {
		app.Viper.Set("log_level", config.LogDebug)
	}
	path, _ := flags.GetString("config")
	s, err := config.Load(app.Viper, path)
	if err != nil {
		return err
	}
	app.Settings = s
	monitoring.SetLevel(s.LogLevel)
	return nil
}

func newVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(app.Out, "hydro-report %s\n", version.String())
		},
	}
}

// Execute runs the command line and returns the process exit code. A
// simulator that exits non-zero passes its code through.
func Execute(args []string) int {
	monitoring.SetLogger(monitoring.NewLogger(os.Stderr, ""))
	app := NewApp(os.Stdout, os.Stderr)
	root := NewRootCommand(app)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "hydro-report: %v\n", err)
	var exitErr *simrun.ExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	return 1
}
