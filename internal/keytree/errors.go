package keytree

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPath is returned for empty paths, empty segments or
	// segments containing whitespace.
	ErrInvalidPath = errors.New("invalid key path")

	// ErrInvalidValue is returned when setting a zero or non-finite Value.
	ErrInvalidValue = errors.New("invalid key value")

	// ErrKeyNotFound is returned by Get when no leaf value lives at a path.
	ErrKeyNotFound = errors.New("key not found")

	// ErrKeyCollision is returned when a path would turn a leaf into an
	// internal node, or the reverse, at an undeclared prefix.
	ErrKeyCollision = errors.New("key collision")

	// ErrTypeMismatch is returned by the typed getters.
	ErrTypeMismatch = errors.New("key type mismatch")
)

// FormatError reports a malformed database file.
type FormatError struct {
	Path   string // file path, or "" for an anonymous reader
	Entry  int    // 1-based entry index, 0 for header problems
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	where := e.Path
	if where == "" {
		where = "<input>"
	}
	msg := fmt.Sprintf("keytree: %s", where)
	if e.Entry > 0 {
		msg += fmt.Sprintf(": entry %d", e.Entry)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }
