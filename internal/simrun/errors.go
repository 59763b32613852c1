package simrun

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidName is returned for run names that cannot form output file
// names.
var ErrInvalidName = errors.New("invalid run name")

// ExitError reports a simulator that exited non-zero. Output is the
// process's combined output, unmodified.
type ExitError struct {
	Command string
	Code    int
	Output  string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("simulator exited with status %d: %s", e.Code, e.Command)
}

// MissingOutputError reports a run that exited zero without producing every
// expected output file.
type MissingOutputError struct {
	Paths []string
}

func (e *MissingOutputError) Error() string {
	return fmt.Sprintf("simulator produced no %s", strings.Join(e.Paths, ", "))
}
