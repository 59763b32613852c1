package keytree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// valueKey holds a valued prefix's own value in nested renderings.
const valueKey = "_value_"

// MarshalYAML renders t as nested mappings, preserving key order.
func (t *Tree) MarshalYAML() (interface{}, error) {
	if len(t.root.children) == 0 {
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, nil
	}
	return yamlNode(t.root), nil
}

func yamlNode(n *node) *yaml.Node {
	if len(n.children) == 0 {
		return yamlScalar(n.value)
	}
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if n.hasValue {
		m.Content = append(m.Content, yamlKey(valueKey), yamlScalar(n.value))
	}
	for _, seg := range n.order {
		m.Content = append(m.Content, yamlKey(seg), yamlNode(n.children[seg]))
	}
	return m
}

func yamlKey(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func yamlScalar(v Value) *yaml.Node {
	if f, ok := v.Float(); ok {
		tag := "!!float"
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			tag = "!!int"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: v.canonical()}
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.Text()}
}

// WriteYAML writes the nested YAML rendering of t.
func (t *Tree) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return err
	}
	return enc.Close()
}

// LoadYAML overlays a nested or flat YAML mapping onto t. Mapping keys may
// themselves be dotted. Either every value applies or t is left unchanged.
func (t *Tree) LoadYAML(r io.Reader) error {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &FormatError{Reason: "parse yaml", Err: err}
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) == 1 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return &FormatError{Reason: fmt.Sprintf("yaml root is not a mapping (line %d)", root.Line)}
	}
	var entries []Entry
	if err := collectYAML(root, "", &entries); err != nil {
		return err
	}
	if err := t.apply(entries, valuedIn(entries)); err != nil {
		return &FormatError{Reason: "conflicting keys", Err: err}
	}
	return nil
}

// ReadYAMLFile returns a new tree loaded from a YAML file.
func ReadYAMLFile(path string) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open yaml database: %w", err)
	}
	defer f.Close()
	t := New()
	if err := t.LoadYAML(f); err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Path = path
		}
		return nil, err
	}
	return t, nil
}

func collectYAML(m *yaml.Node, prefix string, out *[]Entry) error {
	for i := 0; i+1 < len(m.Content); i += 2 {
		k, v := m.Content[i], m.Content[i+1]
		key := k.Value
		if key == valueKey {
			if prefix == "" {
				return &FormatError{Reason: fmt.Sprintf("%s at document root (line %d)", valueKey, k.Line)}
			}
			key = prefix
		} else if prefix != "" {
			key = prefix + "." + key
		}

		switch v.Kind {
		case yaml.MappingNode:
			if err := collectYAML(v, key, out); err != nil {
				return err
			}
		case yaml.SequenceNode:
			names := make([]string, 0, len(v.Content))
			for _, item := range v.Content {
				if item.Kind != yaml.ScalarNode {
					return &FormatError{Reason: fmt.Sprintf("%s: nested list (line %d)", key, item.Line)}
				}
				names = append(names, item.Value)
			}
			*out = append(*out, Entry{Key: key, Value: Names(names...)})
		case yaml.ScalarNode:
			val, err := yamlValue(v)
			if err != nil {
				return &FormatError{Reason: key, Err: err}
			}
			*out = append(*out, Entry{Key: key, Value: val})
		default:
			return &FormatError{Reason: fmt.Sprintf("%s: unsupported yaml node (line %d)", key, v.Line)}
		}
	}
	return nil
}

func yamlValue(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!int", "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, err
		}
		return Number(f), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case "!!null":
		return Value{}, fmt.Errorf("null value (line %d)", n.Line)
	default:
		return String(n.Value), nil
	}
}

// MarshalJSON renders t as nested objects, preserving key order.
func (t *Tree) MarshalJSON() ([]byte, error) {
	if len(t.root.children) == 0 {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	if err := jsonNode(&buf, t.root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func jsonNode(buf *bytes.Buffer, n *node) error {
	if len(n.children) == 0 {
		return jsonScalar(buf, n.value)
	}
	buf.WriteByte('{')
	first := true
	writeKey := func(k string) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		kb, err := json.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		return nil
	}
	if n.hasValue {
		if err := writeKey(valueKey); err != nil {
			return err
		}
		if err := jsonScalar(buf, n.value); err != nil {
			return err
		}
	}
	for _, seg := range n.order {
		if err := writeKey(seg); err != nil {
			return err
		}
		if err := jsonNode(buf, n.children[seg]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func jsonScalar(buf *bytes.Buffer, v Value) error {
	if _, ok := v.Float(); ok {
		buf.WriteString(v.canonical())
		return nil
	}
	b, err := json.Marshal(v.Text())
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// WriteJSON writes the indented nested JSON rendering of t.
func (t *Tree) WriteJSON(w io.Writer) error {
	raw, err := t.MarshalJSON()
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err = w.Write(out.Bytes())
	return err
}
