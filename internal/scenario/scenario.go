// Package scenario loads HCL files describing one simulator run: a base key
// database, the keys to change, and the indicator grids to paint.
package scenario

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/banshee-data/hydro.report/internal/keytree"
)

// Scenario is a decoded scenario file.
type Scenario struct {
	Path    string
	RunName string
	// Base is the key database the scenario starts from, resolved against
	// the scenario file's directory. Empty means an empty tree.
	Base           string
	ValuedPrefixes []string
	Keys           []keytree.Entry
	Indicators     []Indicator
}

// fileRoot mirrors the top level of a scenario file.
type fileRoot struct {
	RunName        string            `hcl:"run_name"`
	Base           string            `hcl:"base,optional"`
	ValuedPrefixes []string          `hcl:"valued_prefixes,optional"`
	Keys           hcl.Expression    `hcl:"keys,optional"`
	Indicators     []*indicatorBlock `hcl:"indicator,block"`
}

type indicatorBlock struct {
	File        string         `hcl:"file,label"`
	Background  float64        `hcl:"background,optional"`
	Distributed bool           `hcl:"distributed,optional"`
	Regions     []*regionBlock `hcl:"region,block"`
}

type regionBlock struct {
	Name   string  `hcl:"name,label"`
	Class  float64 `hcl:"class"`
	Layers []int   `hcl:"layers,optional"`
	Rows   []int   `hcl:"rows,optional"`
	Cols   []int   `hcl:"cols,optional"`
}

// evalContext exposes a few string and numeric helpers to expressions.
func evalContext(runName string) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"run_name": cty.StringVal(runName),
		},
		Functions: map[string]function.Function{
			"format": stdlib.FormatFunc,
			"join":   stdlib.JoinFunc,
			"lower":  stdlib.LowerFunc,
			"upper":  stdlib.UpperFunc,
			"max":    stdlib.MaxFunc,
			"min":    stdlib.MinFunc,
		},
	}
}

// Load parses and decodes the scenario file at path.
func Load(path string) (*Scenario, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse scenario %s: %w", path, diags)
	}
	return decode(file.Body, path)
}

// Parse decodes a scenario from src. filename is used in diagnostics and to
// resolve a relative base path.
func Parse(src []byte, filename string) (*Scenario, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse scenario %s: %w", filename, diags)
	}
	return decode(file.Body, filename)
}

func decode(body hcl.Body, path string) (*Scenario, error) {
	// Expressions may refer to run_name, so it is read before the full decode.
	var root fileRoot
	if diags := gohcl.DecodeBody(body, evalContext(peekRunName(body)), &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode scenario %s: %w", path, diags)
	}
	if root.RunName == "" || strings.ContainsAny(root.RunName, `/\ `) {
		return nil, fmt.Errorf("scenario %s: invalid run_name %q", path, root.RunName)
	}
	ctx := evalContext(root.RunName)

	s := &Scenario{
		Path:           path,
		RunName:        root.RunName,
		ValuedPrefixes: root.ValuedPrefixes,
	}
	if root.Base != "" {
		s.Base = root.Base
		if !filepath.IsAbs(s.Base) {
			s.Base = filepath.Join(filepath.Dir(path), s.Base)
		}
	}

	keys, err := decodeKeys(root.Keys, ctx)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	s.Keys = keys

	for _, ib := range root.Indicators {
		ind, err := ib.indicator()
		if err != nil {
			return nil, fmt.Errorf("scenario %s: indicator %q: %w", path, ib.File, err)
		}
		s.Indicators = append(s.Indicators, ind)
	}
	return s, nil
}

func peekRunName(body hcl.Body) string {
	content, _, _ := body.PartialContent(&hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{{Name: "run_name"}},
	})
	if content == nil {
		return ""
	}
	attr, ok := content.Attributes["run_name"]
	if !ok {
		return ""
	}
	v, diags := attr.Expr.Value(nil)
	if diags.HasErrors() || v.IsNull() || !v.IsKnown() || v.Type() != cty.String {
		return ""
	}
	return v.AsString()
}

// decodeKeys reads the keys object in source order.
func decodeKeys(expr hcl.Expression, ctx *hcl.EvalContext) ([]keytree.Entry, error) {
	if expr == nil {
		return nil, nil
	}
	if v, diags := expr.Value(ctx); !diags.HasErrors() && v.IsNull() {
		return nil, nil
	}
	pairs, diags := hcl.ExprMap(expr)
	if diags.HasErrors() {
		return nil, fmt.Errorf("keys: %w", diags)
	}
	entries := make([]keytree.Entry, 0, len(pairs))
	for _, pair := range pairs {
		kv, diags := pair.Key.Value(ctx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("keys: %w", diags)
		}
		if kv.Type() != cty.String || kv.IsNull() {
			return nil, fmt.Errorf("keys: key at %s is not a string", pair.Key.Range())
		}
		key := kv.AsString()
		if _, err := keytree.SplitPath(key); err != nil {
			return nil, fmt.Errorf("keys: %s: %w", pair.Key.Range(), err)
		}
		vv, diags := pair.Value.Value(ctx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("keys: %w", diags)
		}
		val, err := toValue(vv)
		if err != nil {
			return nil, fmt.Errorf("keys: %s at %s: %w", key, pair.Value.Range(), err)
		}
		entries = append(entries, keytree.Entry{Key: key, Value: val})
	}
	return entries, nil
}

// toValue converts an HCL value to a key value. Lists of strings become
// space-separated name lists.
func toValue(v cty.Value) (keytree.Value, error) {
	if v.IsNull() || !v.IsKnown() {
		return keytree.Value{}, fmt.Errorf("%w: null or unknown", keytree.ErrInvalidValue)
	}
	ty := v.Type()
	switch {
	case ty == cty.String:
		return keytree.String(v.AsString()), nil
	case ty == cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return keytree.Number(f), nil
	case ty == cty.Bool:
		return keytree.Bool(v.True()), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		var names []string
		it := v.ElementIterator()
		for it.Next() {
			_, el := it.Element()
			if el.IsNull() || el.Type() != cty.String {
				return keytree.Value{}, fmt.Errorf("%w: list elements must be strings", keytree.ErrInvalidValue)
			}
			names = append(names, el.AsString())
		}
		return keytree.Names(names...), nil
	default:
		return keytree.Value{}, fmt.Errorf("%w: unsupported %s", keytree.ErrInvalidValue, ty.FriendlyName())
	}
}
