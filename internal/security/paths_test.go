package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWithinDir(t *testing.T) {
	root := t.TempDir()
	work := filepath.Join(root, "work")
	other := filepath.Join(root, "other")
	for _, d := range []string{work, other} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Symlink(other, filepath.Join(work, "escape")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file in dir", filepath.Join(work, "IndicatorFile.pfb"), false},
		{"nested new file", filepath.Join(work, "out", "deep", "x.pfb"), false},
		{"dir itself", work, false},
		{"parent traversal", filepath.Join(work, "..", "other", "x.pfb"), true},
		{"sibling", filepath.Join(other, "x.pfb"), true},
		{"through symlink", filepath.Join(work, "escape", "x.pfb"), true},
		{"through symlink to new dir", filepath.Join(work, "escape", "new", "x.pfb"), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := WithinDir(tc.path, work)
			if (err != nil) != tc.wantErr {
				t.Fatalf("WithinDir(%s) = %v, wantErr %v", tc.path, err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, ErrOutsideDir) {
				t.Errorf("error %v does not wrap ErrOutsideDir", err)
			}
		})
	}
}

func TestWithinDirMissingDir(t *testing.T) {
	if err := WithinDir("x", filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("expected an error for a missing directory")
	}
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"tilted_v":           "tilted_v",
		"tilted v (copy)":    "tilted_v_copy",
		"../../etc":          "etc",
		"":                   "run",
		"///":                "run",
		"hill-slope.2026":    "hill-slope.2026",
		"naïve  run":         "na_ve_run",
		"__leading_trailing": "leading_trailing",
	}
	for in, want := range tests {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
