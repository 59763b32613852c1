package keytree

import (
	"fmt"
	"math"
	"strings"
)

// GetFloat returns the number stored at path.
func (t *Tree) GetFloat(path string) (float64, error) {
	v, err := t.Get(path)
	if err != nil {
		return 0, err
	}
	f, ok := v.Float()
	if !ok {
		return 0, fmt.Errorf("%w: %q is a %s (%q), want number", ErrTypeMismatch, path, v.Kind(), v.Text())
	}
	return f, nil
}

// GetInt returns the integral number stored at path.
func (t *Tree) GetInt(path string) (int, error) {
	f, err := t.GetFloat(path)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %q is %v, want integer", ErrTypeMismatch, path, f)
	}
	return int(f), nil
}

// GetString returns the string stored at path.
func (t *Tree) GetString(path string) (string, error) {
	v, err := t.Get(path)
	if err != nil {
		return "", err
	}
	s, ok := v.Str()
	if !ok {
		return "", fmt.Errorf("%w: %q is a %s (%s), want string", ErrTypeMismatch, path, v.Kind(), v.Text())
	}
	return s, nil
}

// GetBool returns the boolean stored at path as True or False.
func (t *Tree) GetBool(path string) (bool, error) {
	s, err := t.GetString(path)
	if err != nil {
		return false, err
	}
	switch s {
	case "True":
		return true, nil
	case "False":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q is %q, want True or False", ErrTypeMismatch, path, s)
	}
}

// GetNames returns the space-separated name list stored at path.
func (t *Tree) GetNames(path string) ([]string, error) {
	s, err := t.GetString(path)
	if err != nil {
		return nil, err
	}
	return strings.Fields(s), nil
}

// IntOr returns the integer at path, or def when the key is absent.
// Type mismatches are still reported.
func (t *Tree) IntOr(path string, def int) (int, error) {
	if !t.Has(path) {
		return def, nil
	}
	return t.GetInt(path)
}

// FloatOr returns the number at path, or def when the key is absent.
func (t *Tree) FloatOr(path string, def float64) (float64, error) {
	if !t.Has(path) {
		return def, nil
	}
	return t.GetFloat(path)
}

// BoolOr returns the boolean at path, or def when the key is absent.
func (t *Tree) BoolOr(path string, def bool) (bool, error) {
	if !t.Has(path) {
		return def, nil
	}
	return t.GetBool(path)
}
