// Package security guards the paths and names taken from scenario files and
// the command line before they reach the filesystem.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrOutsideDir is returned when a path resolves outside its directory.
var ErrOutsideDir = errors.New("path escapes directory")

// WithinDir checks that path resolves inside dir once symlinks are
// followed. A path that does not exist yet is judged by its nearest
// existing parent.
func WithinDir(path, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}
	realDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}

	realPath := absPath
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		realPath = resolved
	} else {
		// Walk up to the first parent that exists; a symlinked parent
		// could otherwise point anywhere.
		for p := absPath; ; {
			parent := filepath.Dir(p)
			if parent == p {
				break
			}
			if resolved, err := filepath.EvalSymlinks(parent); err == nil {
				rest, _ := filepath.Rel(parent, absPath)
				realPath = filepath.Join(resolved, rest)
				break
			}
			p = parent
		}
	}

	rel, err := filepath.Rel(realDir, realPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s is outside %s", ErrOutsideDir, path, dir)
	}
	return nil
}

// SanitizeName turns an arbitrary string into a run name the simulator
// accepts: ASCII letters, digits, dot, underscore and dash, with runs of
// anything else collapsed to one underscore.
func SanitizeName(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "run"
	}
	return out
}
