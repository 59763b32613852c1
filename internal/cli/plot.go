package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/banshee-data/hydro.report/internal/config"
	"github.com/banshee-data/hydro.report/internal/plot"
)

// parseCell reads "k,j,i".
func parseCell(s string) (plot.Cell, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return plot.Cell{}, fmt.Errorf("cell %q: want k,j,i", s)
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 {
			return plot.Cell{}, fmt.Errorf("cell %q: bad index %q", s, p)
		}
		n[i] = v
	}
	return plot.Cell{K: n[0], J: n[1], I: n[2]}, nil
}

// plotFlags are shared by the plot subcommands.
type plotFlags struct {
	out    string
	format string
}

func (f *plotFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.out, "output", "o", "", "file to write (default in the run directory)")
	cmd.Flags().StringVar(&f.format, "format", "", "png or html (default plot.format)")
}

func (f *plotFlags) resolve(app *App, run plot.Run, what string) (string, string) {
	format := f.format
	if format == "" {
		format = app.Settings.Plot.Format
	}
	out := f.out
	if out == "" {
		out = filepath.Join(run.Dir, fmt.Sprintf("%s.%s.%s", run.Name, what, format))
	}
	return out, format
}

func (app *App) plotSize() plot.Size {
	return plot.Size{Width: app.Settings.Plot.Width, Height: app.Settings.Plot.Height}
}

func writeHTML(out string, render func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		f.Close()
		return fmt.Errorf("render %s: %w", out, err)
	}
	return f.Close()
}

func checkFormat(format string) error {
	if format != config.FormatPNG && format != config.FormatHTML {
		return fmt.Errorf("unknown plot format %q: want png or html", format)
	}
	return nil
}

func newPlotCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Plot simulator outputs",
		Long: `plot reads <name>.out.<field>.<step>.pfb files from a run directory and
renders them as PNG figures or interactive HTML pages.`,
	}

	var (
		sliceFlags plotFlags
		field      string
		step       int
		axis       string
		index      int
	)
	slice := &cobra.Command{
		Use:   "slice RUNDIR NAME",
		Short: "Heatmap of one layer, row or column of an output grid",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			run := plot.Run{Dir: args[0], Name: args[1]}
			a, err := plot.ParseAxis(axis)
			if err != nil {
				return err
			}
			s := plot.Slice{Axis: a, Index: index}
			out, format := sliceFlags.resolve(app, run, fmt.Sprintf("%s.%05d.%s%d", field, step, a, index))
			if err := checkFormat(format); err != nil {
				return err
			}
			if format == config.FormatPNG {
				err = plot.SliceHeatmap(run, field, step, s, out, app.plotSize())
			} else {
				g, rerr := run.Read(field, step)
				if rerr != nil {
					return rerr
				}
				title := fmt.Sprintf("%s %s step %d", run.Name, field, step)
				err = writeHTML(out, func(w io.Writer) error { return plot.RenderSliceHTML(w, g, s, title) })
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(app.Out, out)
			return nil
		},
	}
	sliceFlags.register(slice)
	slice.Flags().StringVar(&field, "field", "press", "output field")
	slice.Flags().IntVar(&step, "step", 0, "output timestep")
	slice.Flags().StringVar(&axis, "axis", "layer", "layer, row or column")
	slice.Flags().IntVar(&index, "index", 0, "index along the axis")

	var (
		seriesFlags plotFlags
		seriesField string
		cells       []string
	)
	series := &cobra.Command{
		Use:   "series RUNDIR NAME",
		Short: "Line plot of cell values across timesteps",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			run := plot.Run{Dir: args[0], Name: args[1]}
			if len(cells) == 0 {
				return fmt.Errorf("at least one --cell is required")
			}
			var all []plot.Series
			for _, c := range cells {
				cell, err := parseCell(c)
				if err != nil {
					return err
				}
				s, err := plot.FieldSeries(run, seriesField, cell)
				if err != nil {
					return err
				}
				all = append(all, s)
			}
			out, format := seriesFlags.resolve(app, run, seriesField+".series")
			return app.renderSeries(out, format, fmt.Sprintf("%s %s", run.Name, seriesField), seriesField, all)
		},
	}
	seriesFlags.register(series)
	series.Flags().StringVar(&seriesField, "field", "press", "output field")
	series.Flags().StringArrayVar(&cells, "cell", nil, "cell as k,j,i; repeatable")

	var storageFlags plotFlags
	storage := &cobra.Command{
		Use:   "storage RUNDIR NAME",
		Short: "Line plot of total subsurface storage across timesteps",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			run := plot.Run{Dir: args[0], Name: args[1]}
			s, err := plot.StorageSeries(run)
			if err != nil {
				return err
			}
			out, format := storageFlags.resolve(app, run, "storage")
			return app.renderSeries(out, format, run.Name+" subsurface storage", "Storage [L^3]", []plot.Series{s})
		},
	}
	storageFlags.register(storage)

	var (
		reportOut   string
		reportField string
		reportStep  int
	)
	report := &cobra.Command{
		Use:   "report RUNDIR NAME",
		Short: "HTML page with every layer of one output and per-step statistics",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			run := plot.Run{Dir: args[0], Name: args[1]}
			rep, err := plot.BuildReport(run, reportField, reportStep)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(app.Out, 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "step\tmin\tmax\tmean\t")
			for i, s := range rep.Summaries {
				fmt.Fprintf(tw, "%d\t%g\t%g\t%g\t\n", rep.Steps[i], s.Min, s.Max, s.Mean)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			out := reportOut
			if out == "" {
				out = filepath.Join(run.Dir, fmt.Sprintf("%s.%s.report.html", run.Name, reportField))
			}
			if err := writeHTML(out, rep.Render); err != nil {
				return err
			}
			fmt.Fprintln(app.Out, out)
			return nil
		},
	}
	report.Flags().StringVarP(&reportOut, "output", "o", "", "HTML file to write")
	report.Flags().StringVar(&reportField, "field", "press", "output field")
	report.Flags().IntVar(&reportStep, "step", 0, "timestep whose layers are drawn")

	cmd.AddCommand(slice, series, storage, report)
	return cmd
}

func (app *App) renderSeries(out, format, title, yLabel string, series []plot.Series) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	var err error
	if format == config.FormatPNG {
		err = plot.TimeSeries(out, title, yLabel, app.plotSize(), series...)
	} else {
		err = writeHTML(out, func(w io.Writer) error { return plot.RenderSeriesHTML(w, title, yLabel, series...) })
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(app.Out, out)
	return nil
}
