// Package keytree holds the simulator's input database as a tree of dotted
// keys (for example Geom.domain.Porosity.Value).
//
// Responsibilities: path assignment and lookup, typed getters, and the flat
// pfidb listing the simulator reads at start-up. YAML and JSON renderings of
// the same tree are provided for review and diffing.
//
// A node is either a leaf or an internal node. Paths the simulator defines as
// both carrying a value and having children (Solver, Solver.Linear.Preconditioner,
// ...) must be declared with DeclareValuedPrefix; DefaultValuedPrefixes are
// declared on every new tree.
package keytree
