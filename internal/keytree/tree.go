package keytree

import (
	"fmt"
	"strings"
	"unicode"
)

// DefaultValuedPrefixes are simulator keys that carry a value and also have
// child keys, e.g. Solver = Richards alongside Solver.MaxIter.
var DefaultValuedPrefixes = []string{
	"Solver",
	"Solver.Linear.Preconditioner",
	"Solver.TerrainFollowingGrid",
}

type node struct {
	hasValue bool
	value    Value
	children map[string]*node
	order    []string
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

func (n *node) child(seg string) *node {
	if n == nil {
		return nil
	}
	return n.children[seg]
}

func (n *node) addChild(seg string) *node {
	c := newNode()
	n.children[seg] = c
	n.order = append(n.order, seg)
	return c
}

func (n *node) removeChild(seg string) {
	delete(n.children, seg)
	for i, s := range n.order {
		if s == seg {
			n.order = append(n.order[:i], n.order[i+1:]...)
			return
		}
	}
}

func (n *node) clone() *node {
	c := &node{
		hasValue: n.hasValue,
		value:    n.value,
		children: make(map[string]*node, len(n.children)),
		order:    append([]string(nil), n.order...),
	}
	for seg, ch := range n.children {
		c.children[seg] = ch.clone()
	}
	return c
}

// Tree is an ordered hierarchy of dotted keys. The zero value is not usable;
// call New.
type Tree struct {
	root   *node
	valued map[string]struct{}
}

// Entry is one flattened key/value pair.
type Entry struct {
	Key   string
	Value Value
}

// New returns an empty tree with DefaultValuedPrefixes declared.
func New() *Tree {
	t := &Tree{root: newNode(), valued: make(map[string]struct{})}
	t.DeclareValuedPrefix(DefaultValuedPrefixes...)
	return t
}

// DeclareValuedPrefix allows each path to hold a value and children at once.
func (t *Tree) DeclareValuedPrefix(paths ...string) {
	for _, p := range paths {
		t.valued[p] = struct{}{}
	}
}

// IsValuedPrefix reports whether path was declared with DeclareValuedPrefix.
func (t *Tree) IsValuedPrefix(path string) bool {
	_, ok := t.valued[path]
	return ok
}

// SplitPath validates a dotted path and returns its segments.
func SplitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segs := strings.Split(path, ".")
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, path)
		}
		if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
			return nil, fmt.Errorf("%w: %q contains whitespace", ErrInvalidPath, path)
		}
	}
	return segs, nil
}

// Set assigns v at path, creating intermediate nodes as needed. An existing
// leaf is overwritten. Set fails without modifying the tree when path runs
// through a leaf, or names an internal node, unless the prefix involved
// has been declared valued.
func (t *Tree) Set(path string, v Value) error {
	segs, err := SplitPath(path)
	if err != nil {
		return err
	}
	if err := v.validate(); err != nil {
		return fmt.Errorf("set %q: %w", path, err)
	}

	// Check the whole path before creating anything.
	n := t.root
	for i, seg := range segs[:len(segs)-1] {
		n = n.child(seg)
		if n == nil {
			break
		}
		prefix := strings.Join(segs[:i+1], ".")
		if n.hasValue && !t.IsValuedPrefix(prefix) {
			return fmt.Errorf("%w: %q holds a value, cannot set %q below it", ErrKeyCollision, prefix, path)
		}
	}
	if target := n.child(segs[len(segs)-1]); n != nil && target != nil && len(target.children) > 0 && !t.IsValuedPrefix(path) {
		return fmt.Errorf("%w: %q has child keys, cannot hold a value", ErrKeyCollision, path)
	}

	n = t.root
	for _, seg := range segs {
		c := n.child(seg)
		if c == nil {
			c = n.addChild(seg)
		}
		n = c
	}
	n.hasValue = true
	n.value = v
	return nil
}

func (t *Tree) lookup(path string) (*node, error) {
	segs, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	n := t.root
	for _, seg := range segs {
		n = n.child(seg)
		if n == nil {
			return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, path)
		}
	}
	return n, nil
}

// Get returns the leaf value at path.
func (t *Tree) Get(path string) (Value, error) {
	n, err := t.lookup(path)
	if err != nil {
		return Value{}, err
	}
	if !n.hasValue {
		return Value{}, fmt.Errorf("%w: %q is not a leaf", ErrKeyNotFound, path)
	}
	return n.value, nil
}

// Has reports whether a value is set at path.
func (t *Tree) Has(path string) bool {
	_, err := t.Get(path)
	return err == nil
}

// Delete removes path and everything below it. Ancestors left without a
// value or children are pruned.
func (t *Tree) Delete(path string) error {
	segs, err := SplitPath(path)
	if err != nil {
		return err
	}
	trail := []*node{t.root}
	n := t.root
	for _, seg := range segs {
		n = n.child(seg)
		if n == nil {
			return fmt.Errorf("%w: %q", ErrKeyNotFound, path)
		}
		trail = append(trail, n)
	}
	for i := len(segs) - 1; i >= 0; i-- {
		parent := trail[i]
		parent.removeChild(segs[i])
		if i == 0 || parent.hasValue || len(parent.children) > 0 {
			break
		}
	}
	return nil
}

// Len returns the number of leaf values.
func (t *Tree) Len() int {
	count := 0
	_ = t.Walk(func(string, Value) error {
		count++
		return nil
	})
	return count
}

// Walk visits every value in pre-order, children in insertion order.
// A node's own value is visited before its children.
func (t *Tree) Walk(fn func(key string, v Value) error) error {
	return walk(t.root, "", fn)
}

func walk(n *node, prefix string, fn func(string, Value) error) error {
	if n.hasValue {
		if err := fn(prefix, n.value); err != nil {
			return err
		}
	}
	for _, seg := range n.order {
		key := seg
		if prefix != "" {
			key = prefix + "." + seg
		}
		if err := walk(n.children[seg], key, fn); err != nil {
			return err
		}
	}
	return nil
}

// Keys returns every key holding a value, in Walk order.
func (t *Tree) Keys() []string {
	var keys []string
	_ = t.Walk(func(k string, _ Value) error {
		keys = append(keys, k)
		return nil
	})
	return keys
}

// Entries returns every key/value pair in Walk order.
func (t *Tree) Entries() []Entry {
	var out []Entry
	_ = t.Walk(func(k string, v Value) error {
		out = append(out, Entry{Key: k, Value: v})
		return nil
	})
	return out
}

// Children returns the child segments directly below path in insertion
// order. An empty path lists the top-level segments.
func (t *Tree) Children(path string) ([]string, error) {
	n := t.root
	if path != "" {
		var err error
		if n, err = t.lookup(path); err != nil {
			return nil, err
		}
	}
	return append([]string(nil), n.order...), nil
}

// Clone returns a deep copy of t, including declared prefixes.
func (t *Tree) Clone() *Tree {
	c := &Tree{root: t.root.clone(), valued: make(map[string]struct{}, len(t.valued))}
	for p := range t.valued {
		c.valued[p] = struct{}{}
	}
	return c
}

// Merge overlays every value of other onto t. Either all values apply or t
// is left unchanged.
func (t *Tree) Merge(other *Tree) error {
	return t.apply(other.Entries(), other.valued)
}

// FromEntries builds a tree from a flat listing such as a stored run. A
// key listed with a value and also with keys below it is taken as a
// valued prefix.
func FromEntries(entries []Entry) (*Tree, error) {
	t := New()
	if err := t.apply(entries, valuedIn(entries)); err != nil {
		return nil, err
	}
	return t, nil
}

// valuedIn returns the keys of entries that are also a proper prefix of
// another key in entries.
func valuedIn(entries []Entry) map[string]struct{} {
	keys := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		keys[e.Key] = struct{}{}
	}
	valued := make(map[string]struct{})
	for _, e := range entries {
		for i := 0; i < len(e.Key); i++ {
			if e.Key[i] != '.' {
				continue
			}
			if _, ok := keys[e.Key[:i]]; ok {
				valued[e.Key[:i]] = struct{}{}
			}
		}
	}
	return valued
}

func (t *Tree) apply(entries []Entry, valued map[string]struct{}) error {
	staged := t.Clone()
	for p := range valued {
		staged.valued[p] = struct{}{}
	}
	for _, e := range entries {
		if err := staged.Set(e.Key, e.Value); err != nil {
			return err
		}
	}
	t.root = staged.root
	t.valued = staged.valued
	return nil
}

// Subtree returns a copy of the node at path as a new tree with keys
// relative to path. The node's own value, if any, is dropped.
func (t *Tree) Subtree(path string) (*Tree, error) {
	n, err := t.lookup(path)
	if err != nil {
		return nil, err
	}
	sub := New()
	sub.root = n.clone()
	sub.root.hasValue = false
	sub.root.value = Value{}
	prefix := path + "."
	for p := range t.valued {
		if strings.HasPrefix(p, prefix) {
			sub.valued[strings.TrimPrefix(p, prefix)] = struct{}{}
		}
	}
	return sub, nil
}

// Equal reports whether t and o hold the same entries in the same order.
func (t *Tree) Equal(o *Tree) bool {
	a, b := t.Entries(), o.Entries()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key != b[i].Key || !a[i].Value.Equal(b[i].Value) {
			return false
		}
	}
	return true
}
