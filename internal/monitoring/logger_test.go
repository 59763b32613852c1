package monitoring

import (
	"bytes"
	"strings"
	"testing"
)

func restore(t *testing.T) {
	t.Helper()
	logf, debugf := Logf, Debugf
	t.Cleanup(func() { Logf, Debugf = logf, debugf })
}

func TestSetLogger(t *testing.T) {
	restore(t)

	called := false
	SetLogger(func(format string, v ...interface{}) { called = true })
	Logf("test message")
	if !called {
		t.Error("custom logger was not called")
	}

	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("nil logger should install a no-op")
	}
}

func TestSetLevel(t *testing.T) {
	restore(t)

	var lines []string
	capture := func(format string, v ...interface{}) { lines = append(lines, format) }

	SetLogger(capture)
	SetLevel("info")
	Logf("info line")
	Debugf("hidden")
	if len(lines) != 1 || lines[0] != "info line" {
		t.Errorf("info level logged %q", lines)
	}

	lines = nil
	SetLevel("debug")
	Debugf("shown")
	DebugLogger{}.Debugf("via adapter")
	if len(lines) != 2 || lines[0] != "debug: shown" || lines[1] != "debug: via adapter" {
		t.Errorf("debug level logged %q", lines)
	}

	lines = nil
	SetLevel("quiet")
	Logf("muted")
	Debugf("muted")
	if len(lines) != 0 {
		t.Errorf("quiet level logged %q", lines)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logf := NewLogger(&buf, "hydro: ")
	logf("wrote %d files", 3)
	out := buf.String()
	if !strings.HasPrefix(out, "hydro: ") || !strings.Contains(out, "wrote 3 files") {
		t.Errorf("unexpected output %q", out)
	}
}
