package keytree

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindInvalid Kind = iota
	KindNumber
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return "invalid"
	}
}

// Value is a leaf value: a number or a string. A number read from a key
// database keeps the text it was written with, so a load and serialize
// cycle reproduces the file and the value still reads as that string.
type Value struct {
	kind Kind
	num  float64
	str  string
	raw  string
}

// Number returns a numeric value. Non-finite values are rejected by Set.
func Number(v float64) Value { return Value{kind: KindNumber, num: v} }

// Int returns a numeric value holding an integer.
func Int(v int) Value { return Number(float64(v)) }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bool returns the simulator's boolean spelling, True or False.
func Bool(b bool) Value {
	if b {
		return String("True")
	}
	return String("False")
}

// Names returns a space-separated name list such as "domain box2".
func Names(names ...string) Value { return String(strings.Join(names, " ")) }

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v was built by one of the constructors.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// Float returns the numeric value and true, or 0 and false for strings.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Str returns the string value and true. Numbers built with Number return
// "" and false; numbers parsed from text return that text.
func (v Value) Str() (string, bool) {
	switch {
	case v.kind == KindString:
		return v.str, true
	case v.raw != "":
		return v.raw, true
	default:
		return "", false
	}
}

// Text returns the wire form of v as written to the pfidb listing.
// Integral numbers are written without an exponent so integer keys such as
// ComputationalGrid.NX read back through atoi.
func (v Value) Text() string {
	if v.raw != "" {
		return v.raw
	}
	return v.canonical()
}

// canonical is Text without the parsed spelling, for renderings such as
// JSON that need a normalized number.
func (v Value) canonical() string {
	switch v.kind {
	case KindNumber:
		if v.num == math.Trunc(v.num) && math.Abs(v.num) < 1e15 {
			return strconv.FormatFloat(v.num, 'f', -1, 64)
		}
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindString:
		return v.str
	default:
		return ""
	}
}

func (v Value) String() string { return v.Text() }

// Equal reports whether v and o hold the same variant and content. A
// number parsed from text also equals the string of that text, since the
// key database does not record which of the two was written.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return (v.raw != "" || o.raw != "") && v.Text() == o.Text()
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindString:
		return v.str == o.str
	default:
		return true
	}
}

func (v Value) validate() error {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return fmt.Errorf("%w: non-finite number %v", ErrInvalidValue, v.num)
		}
	case KindString:
	default:
		return fmt.Errorf("%w: zero Value", ErrInvalidValue)
	}
	return nil
}

// ParseValue infers the variant of a wire value. Finite decimal floats become
// numbers; everything else, including "NaN" and "Inf", stays a string.
func ParseValue(text string) Value {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || trimmed != text {
		return String(text)
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return String(text)
	}
	if strings.ContainsAny(trimmed, "xXpP_") {
		return String(text)
	}
	return parsedNumber(f, text)
}

func parsedNumber(f float64, text string) Value {
	return Value{kind: KindNumber, num: f, raw: text}
}
