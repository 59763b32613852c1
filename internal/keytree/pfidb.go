package keytree

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// DatabaseExt is the extension of the flat key database the simulator reads.
const DatabaseExt = ".pfidb"

// maxFieldLen bounds a single key or value so a corrupt length line cannot
// trigger a huge allocation.
const maxFieldLen = 16 << 20

// Load parses a pfidb listing from r and overlays it onto t. Either every
// entry applies or t is left unchanged.
func (t *Tree) Load(r io.Reader) error {
	return t.load(r, "")
}

// LoadFile opens path and calls Load.
func (t *Tree) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open key database: %w", err)
	}
	defer f.Close()
	return t.load(f, path)
}

// ReadFile returns a new tree loaded from the pfidb file at path.
func ReadFile(path string) (*Tree, error) {
	t := New()
	if err := t.LoadFile(path); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) load(r io.Reader, path string) error {
	entries, err := parseDatabase(bufio.NewReader(r), path)
	if err != nil {
		return err
	}
	if err := t.apply(entries, valuedIn(entries)); err != nil {
		return &FormatError{Path: path, Reason: "conflicting keys", Err: err}
	}
	return nil
}

func parseDatabase(br *bufio.Reader, path string) ([]Entry, error) {
	fail := func(entry int, reason string, err error) error {
		return &FormatError{Path: path, Entry: entry, Reason: reason, Err: err}
	}

	countLine, err := readLine(br)
	if err != nil {
		return nil, fail(0, "missing entry count", err)
	}
	count, err := strconv.Atoi(strings.TrimSpace(countLine))
	if err != nil || count < 0 {
		return nil, fail(0, fmt.Sprintf("bad entry count %q", countLine), err)
	}

	entries := make([]Entry, 0, min(count, 4096))
	for i := 1; i <= count; i++ {
		key, err := readField(br)
		if err != nil {
			return nil, fail(i, "bad key", err)
		}
		if _, err := SplitPath(key); err != nil {
			return nil, fail(i, "bad key", err)
		}
		text, err := readField(br)
		if err != nil {
			return nil, fail(i, fmt.Sprintf("bad value for %q", key), err)
		}
		entries = append(entries, Entry{Key: key, Value: ParseValue(text)})
	}

	rest, err := io.ReadAll(br)
	if err != nil {
		return nil, fail(0, "read trailer", err)
	}
	if len(strings.TrimSpace(string(rest))) > 0 {
		return nil, fail(0, fmt.Sprintf("%d bytes after %d entries", len(rest), count), nil)
	}
	return entries, nil
}

// readField reads a decimal length line followed by exactly that many bytes
// and a terminating newline.
func readField(br *bufio.Reader) (string, error) {
	lenLine, err := readLine(br)
	if err != nil {
		return "", err
	}
	n, err := strconv.Atoi(strings.TrimSpace(lenLine))
	if err != nil {
		return "", fmt.Errorf("length %q: %w", lenLine, err)
	}
	if n < 0 || n > maxFieldLen {
		return "", fmt.Errorf("length %d out of range", n)
	}
	buf := make([]byte, n+1)
	if _, err := io.ReadFull(br, buf); err != nil {
		return "", fmt.Errorf("want %d bytes: %w", n, err)
	}
	if buf[n] != '\n' {
		return "", fmt.Errorf("field of length %d not followed by newline", n)
	}
	return string(buf[:n]), nil
}

func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line == "" {
			return "", io.ErrUnexpectedEOF
		}
		if !errors.Is(err, io.EOF) {
			return "", err
		}
	}
	return strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"), nil
}

// Serialize writes t as a pfidb listing in Walk order.
func (t *Tree) Serialize(w io.Writer) error {
	bw := bufio.NewWriter(w)
	entries := t.Entries()
	fmt.Fprintf(bw, "%d\n", len(entries))
	for _, e := range entries {
		text := e.Value.Text()
		fmt.Fprintf(bw, "%d\n%s\n%d\n%s\n", len(e.Key), e.Key, len(text), text)
	}
	return bw.Flush()
}

// WriteFile serializes t to path, replacing any existing file.
func (t *Tree) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create key database: %w", err)
	}
	if err := t.Serialize(f); err != nil {
		f.Close()
		return fmt.Errorf("write key database %s: %w", path, err)
	}
	return f.Close()
}
