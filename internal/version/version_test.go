package version

import "testing"

func TestString(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })
	Version = "v0.3.0"
	if got, want := String(), "v0.3.0 (unknown, built unknown)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
