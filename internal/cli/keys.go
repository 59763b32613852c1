package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/banshee-data/hydro.report/internal/keytree"
)

// Formats understood by keys show and keys export.
const (
	formatList  = "list"
	formatPfidb = "pfidb"
	formatYAML  = "yaml"
	formatJSON  = "json"
)

// readTree loads a key database, choosing the reader by extension.
func readTree(path string) (*keytree.Tree, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return keytree.ReadYAMLFile(path)
	default:
		return keytree.ReadFile(path)
	}
}

func formatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	case ".json":
		return formatJSON
	default:
		return formatPfidb
	}
}

func writeTree(w io.Writer, t *keytree.Tree, format string) error {
	switch format {
	case formatList:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, e := range t.Entries() {
			fmt.Fprintf(tw, "%s\t%s\n", e.Key, e.Value.Text())
		}
		return tw.Flush()
	case formatPfidb:
		return t.Serialize(w)
	case formatYAML:
		return t.WriteYAML(w)
	case formatJSON:
		return t.WriteJSON(w)
	default:
		return fmt.Errorf("unknown format %q: want list, pfidb, yaml or json", format)
	}
}

func writeTreeFile(path string, t *keytree.Tree) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	format := formatForPath(path)
	if format == formatPfidb {
		return t.WriteFile(path)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeTree(f, t, format); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// parseAssignment splits KEY=VALUE. Values are typed the way a key database
// types them.
func parseAssignment(s string) (keytree.Entry, error) {
	key, text, ok := strings.Cut(s, "=")
	if !ok {
		return keytree.Entry{}, fmt.Errorf("%q is not KEY=VALUE", s)
	}
	key = strings.TrimSpace(key)
	if _, err := keytree.SplitPath(key); err != nil {
		return keytree.Entry{}, err
	}
	return keytree.Entry{Key: key, Value: keytree.ParseValue(text)}, nil
}

func newKeysCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Inspect and edit key databases",
	}

	var format, prefix string
	show := &cobra.Command{
		Use:   "show DATABASE",
		Short: "Print every key of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := readTree(args[0])
			if err != nil {
				return err
			}
			if prefix != "" {
				if t, err = t.Subtree(prefix); err != nil {
					return err
				}
			}
			return writeTree(app.Out, t, format)
		},
	}
	show.Flags().StringVarP(&format, "format", "f", formatList, "list, pfidb, yaml or json")
	show.Flags().StringVar(&prefix, "prefix", "", "only show keys below this path, relative to it")

	get := &cobra.Command{
		Use:   "get DATABASE KEY",
		Short: "Print one value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := readTree(args[0])
			if err != nil {
				return err
			}
			v, err := t.Get(args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(app.Out, v.Text())
			return nil
		},
	}

	var unset []string
	set := &cobra.Command{
		Use:   "set DATABASE KEY=VALUE...",
		Short: "Assign keys and rewrite the database",
		Long: `set assigns each KEY=VALUE in order and rewrites the database, creating
it if it does not exist. Numeric values are stored as numbers. Nothing is
written unless every assignment succeeds.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := readTree(args[0])
			if errors.Is(err, fs.ErrNotExist) {
				t, err = keytree.New(), nil
			}
			if err != nil {
				return err
			}
			staged := t.Clone()
			for _, key := range unset {
				if err := staged.Delete(key); err != nil {
					return err
				}
			}
			for _, a := range args[1:] {
				e, err := parseAssignment(a)
				if err != nil {
					return err
				}
				if err := staged.Set(e.Key, e.Value); err != nil {
					return err
				}
			}
			return writeTreeFile(args[0], staged)
		},
	}
	set.Flags().StringSliceVar(&unset, "unset", nil, "delete these keys first")

	export := &cobra.Command{
		Use:   "export DATABASE OUTPUT",
		Short: "Convert a database; the format follows OUTPUT's extension",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := readTree(args[0])
			if err != nil {
				return err
			}
			if err := writeTreeFile(args[1], t); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "wrote %d keys to %s\n", t.Len(), args[1])
			return nil
		},
	}

	cmd.AddCommand(show, get, set, export)
	return cmd
}
