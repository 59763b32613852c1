// Package testutil provides shared test helpers and fixtures.
package testutil

import (
	"testing"

	"github.com/banshee-data/hydro.report/internal/keytree"
	"github.com/banshee-data/hydro.report/internal/monitoring"
)

// Hillslope extents used by HillslopeTree.
const (
	HillslopeNX = 20
	HillslopeNY = 1
	HillslopeNZ = 10
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// MuteLogs silences monitoring output for the rest of the test.
func MuteLogs(t testing.TB) {
	t.Helper()
	logf, debugf := monitoring.Logf, monitoring.Debugf
	monitoring.SetLogger(nil)
	monitoring.Debugf = func(string, ...interface{}) {}
	t.Cleanup(func() { monitoring.Logf, monitoring.Debugf = logf, debugf })
}

// CaptureLogs routes monitoring.Logf into the returned slice.
func CaptureLogs(t testing.TB) *[]string {
	t.Helper()
	var lines []string
	logf := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, format)
	})
	t.Cleanup(func() { monitoring.Logf = logf })
	return &lines
}

// HillslopeTree returns a tree describing a 20x1x10 grid of 10 m by 10 m by
// 0.2 m cells.
func HillslopeTree(t testing.TB) *keytree.Tree {
	t.Helper()
	tree := keytree.New()
	for _, e := range []keytree.Entry{
		{Key: "ComputationalGrid.Lower.X", Value: keytree.Number(0)},
		{Key: "ComputationalGrid.Lower.Y", Value: keytree.Number(0)},
		{Key: "ComputationalGrid.Lower.Z", Value: keytree.Number(0)},
		{Key: "ComputationalGrid.DX", Value: keytree.Number(10)},
		{Key: "ComputationalGrid.DY", Value: keytree.Number(10)},
		{Key: "ComputationalGrid.DZ", Value: keytree.Number(0.2)},
		{Key: "ComputationalGrid.NX", Value: keytree.Int(HillslopeNX)},
		{Key: "ComputationalGrid.NY", Value: keytree.Int(HillslopeNY)},
		{Key: "ComputationalGrid.NZ", Value: keytree.Int(HillslopeNZ)},
	} {
		if err := tree.Set(e.Key, e.Value); err != nil {
			t.Fatalf("set %s: %v", e.Key, err)
		}
	}
	return tree
}
