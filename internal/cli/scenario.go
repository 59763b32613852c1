package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/banshee-data/hydro.report/internal/keytree"
	"github.com/banshee-data/hydro.report/internal/scenario"
	"github.com/banshee-data/hydro.report/internal/security"
)

// input is what a run starts from: a scenario file or a bare key database.
type input struct {
	name     string
	tree     *keytree.Tree
	scenario *scenario.Scenario
}

// loadInput reads an .hcl scenario, or a key database whose run name
// defaults to its sanitized base name.
func loadInput(path, name string) (*input, error) {
	if strings.EqualFold(filepath.Ext(path), ".hcl") {
		s, err := scenario.Load(path)
		if err != nil {
			return nil, err
		}
		t, err := s.Tree()
		if err != nil {
			return nil, err
		}
		if name == "" {
			name = s.RunName
		}
		return &input{name: name, tree: t, scenario: s}, nil
	}
	t, err := readTree(path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = security.SanitizeName(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	}
	return &input{name: name, tree: t}, nil
}

func newScenarioCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Work with HCL scenario files",
	}

	var out string
	var indicators bool
	apply := &cobra.Command{
		Use:   "apply SCENARIO",
		Short: "Write the key database a scenario produces",
		Long: `apply loads the scenario's base database, applies its keys and writes
the result, by default to <run_name>.pfidb in work_dir. With --indicators
the scenario's indicator grids are written next to it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := loadInput(args[0], "")
			if err != nil {
				return err
			}
			if in.scenario == nil {
				return fmt.Errorf("%s is not an .hcl scenario", args[0])
			}
			path := out
			if path == "" {
				path = filepath.Join(app.Settings.WorkDir, in.name+keytree.DatabaseExt)
			}
			if err := writeTreeFile(path, in.tree); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "%s (%d keys)\n", path, in.tree.Len())
			if !indicators {
				return nil
			}
			paths, err := in.scenario.WriteIndicators(in.tree, filepath.Dir(path))
			for _, p := range paths {
				fmt.Fprintln(app.Out, p)
			}
			return err
		},
	}
	apply.Flags().StringVarP(&out, "output", "o", "", "database to write; the format follows the extension")
	apply.Flags().BoolVar(&indicators, "indicators", false, "also write indicator grids")

	cmd.AddCommand(apply)
	return cmd
}
