package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/banshee-data/hydro.report/internal/db"
)

func (app *App) requireHistory() (*db.DB, error) {
	h, err := app.openHistory()
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("run history is disabled: set db_path or --db")
	}
	return h, nil
}

func newHistoryCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List and inspect recorded runs",
	}

	var name string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := app.requireHistory()
			if err != nil {
				return err
			}
			defer h.Close()
			runs, err := h.ListRuns(name, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(app.Out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tEXIT\tSTARTED\tDURATION")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", r.ID, r.Name, r.Status, r.ExitCode,
					r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Duration())
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&name, "name", "", "only runs with this name")
	list.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")

	var format string
	var withKeys bool
	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show one run and optionally the keys it ran with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("run id %q: %w", args[0], err)
			}
			h, err := app.requireHistory()
			if err != nil {
				return err
			}
			defer h.Close()
			rec, err := h.GetRun(id)
			if err != nil {
				return err
			}
			printRecord(app, rec)
			fmt.Fprintf(app.Out, "  started   %s\n", rec.StartedAt.Local().Format("2006-01-02 15:04:05"))
			if !withKeys {
				return nil
			}
			t, err := h.RunTree(id)
			if err != nil {
				return err
			}
			return writeTree(app.Out, t, format)
		},
	}
	show.Flags().BoolVar(&withKeys, "keys", false, "print the run's key database")
	show.Flags().StringVarP(&format, "format", "f", formatList, "key format: list, pfidb, yaml or json")

	cmd.AddCommand(list, show)
	return cmd
}

func newMigrateCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the run history schema",
	}
	up := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := app.openForMigrate()
			if err != nil {
				return err
			}
			defer h.Close()
			if err := h.MigrateUp(db.MigrationsFS()); err != nil {
				return err
			}
			return app.printVersion(h)
		},
	}
	down := &cobra.Command{
		Use:   "down",
		Short: "Revert the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := app.openForMigrate()
			if err != nil {
				return err
			}
			defer h.Close()
			if err := h.MigrateDown(db.MigrationsFS()); err != nil {
				return err
			}
			return app.printVersion(h)
		},
	}
	ver := &cobra.Command{
		Use:   "version",
		Short: "Print the schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := app.openForMigrate()
			if err != nil {
				return err
			}
			defer h.Close()
			return app.printVersion(h)
		},
	}
	cmd.AddCommand(up, down, ver)
	return cmd
}

func (app *App) openForMigrate() (*db.DB, error) {
	if app.Settings.DBPath == "" {
		return nil, fmt.Errorf("run history is disabled: set db_path or --db")
	}
	return db.OpenDB(app.Settings.DBPath)
}

func (app *App) printVersion(h *db.DB) error {
	v, dirty, err := h.MigrateVersion(db.MigrationsFS())
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(app.Out, "schema version %d (%s)\n", v, state)
	return nil
}
