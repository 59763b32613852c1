package cli

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/banshee-data/hydro.report/internal/pfb"
	"github.com/banshee-data/hydro.report/internal/scenario"
	"github.com/banshee-data/hydro.report/internal/simrun"
)

// parseLayout reads a PxQxR topology such as 2x1x3.
func parseLayout(s string) (pfb.Layout, error) {
	parts := strings.Split(strings.ToLower(s), "x")
	if len(parts) != 3 {
		return pfb.Layout{}, fmt.Errorf("layout %q: want PxQxR", s)
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 1 {
			return pfb.Layout{}, fmt.Errorf("layout %q: bad count %q", s, p)
		}
		n[i] = v
	}
	return pfb.Layout{P: n[0], Q: n[1], R: n[2]}, nil
}

func newGridCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Write and inspect PFB grid files",
	}

	info := &cobra.Command{
		Use:   "info FILE...",
		Short: "Print the header of each grid file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				h, err := pfb.ReadHeader(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(app.Out, "%s\n", path)
				fmt.Fprintf(app.Out, "  origin   %g %g %g\n", h.X0, h.Y0, h.Z0)
				fmt.Fprintf(app.Out, "  spacing  %g %g %g\n", h.DX, h.DY, h.DZ)
				fmt.Fprintf(app.Out, "  extent   %d x %d x %d (%d cells)\n", h.NX, h.NY, h.NZ, h.NX*h.NY*h.NZ)
				fmt.Fprintf(app.Out, "  layout   %s (%d subgrids)\n", h.Layout(), len(h.Subgrids))
			}
			return nil
		},
	}

	var perLayer bool
	stats := &cobra.Command{
		Use:   "stats FILE",
		Short: "Summarize the finite values of a grid file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := pfb.Read(args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(app.Out, 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "scope\tcount\tmin\tmax\tmean\tstddev\tsum\t")
			row := func(scope string, s pfb.Summary) {
				fmt.Fprintf(tw, "%s\t%d\t%g\t%g\t%g\t%g\t%g\t\n", scope, s.Count, s.Min, s.Max, s.Mean, s.StdDev, s.Sum)
			}
			row("all", g.Summarize())
			if perLayer {
				for k := 0; k < g.NZ; k++ {
					layer := pfb.New(1, g.NY, g.NX)
					copy(layer.Data, g.Data[g.Index(k, 0, 0):g.Index(k+1, 0, 0)])
					row(fmt.Sprintf("layer %d", k), layer.Summarize())
				}
			}
			return tw.Flush()
		},
	}
	stats.Flags().BoolVar(&perLayer, "layers", false, "also summarize each layer")

	var dir string
	indicator := &cobra.Command{
		Use:   "indicator SCENARIO",
		Short: "Write the indicator grids a scenario describes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := scenario.Load(args[0])
			if err != nil {
				return err
			}
			t, err := s.Tree()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = app.Settings.WorkDir
			}
			paths, err := s.WriteIndicators(t, dir)
			for _, p := range paths {
				fmt.Fprintln(app.Out, p)
			}
			return err
		},
	}
	indicator.Flags().StringVarP(&dir, "dir", "o", "", "output directory (default work_dir)")

	var layoutFlag string
	dist := &cobra.Command{
		Use:   "dist DATABASE FILE...",
		Short: "Rewrite grid files under the database's process topology",
		Long: `dist rewrites each grid file partitioned by Process.Topology.P/Q/R from
DATABASE, checking its extents against ComputationalGrid first, and writes
the .dist sidecar the simulator reads. --layout overrides the topology and
skips the extent check; DATABASE is then "-".`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if layoutFlag != "" {
				layout, err := parseLayout(layoutFlag)
				if err != nil {
					return err
				}
				for _, path := range args[1:] {
					if err := pfb.Redistribute(path, layout); err != nil {
						return err
					}
					fmt.Fprintf(app.Out, "%s: %s\n", path, layout)
				}
				return nil
			}
			t, err := readTree(args[0])
			if err != nil {
				return err
			}
			r := simrun.NewRunner(app.Settings.ParflowDir)
			for _, path := range args[1:] {
				if err := r.Distribute(t, path); err != nil {
					return err
				}
				layout, _ := pfb.LayoutFromTree(t)
				fmt.Fprintf(app.Out, "%s: %s\n", path, layout)
			}
			return nil
		},
	}
	dist.Flags().StringVar(&layoutFlag, "layout", "", "topology as PxQxR instead of the database's")

	cmd.AddCommand(info, stats, indicator, dist)
	return cmd
}
