package pfb

import "fmt"

// FormatError reports a malformed or inconsistent grid file.
type FormatError struct {
	Path   string
	Offset int64
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	path := e.Path
	if path == "" {
		path = "<input>"
	}
	msg := fmt.Sprintf("pfb: %s: offset %d: %s", path, e.Offset, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }
