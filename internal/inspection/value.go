package inspection

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

var (
	ErrUnknownField = errors.New("unknown field")
	ErrInvalidValue = errors.New("invalid value")
	ErrImageField   = errors.New("image fields take attachments")
)

// Value is a scalar form value: either a numeric code or a text label.
type Value struct {
	code   int
	text   string
	isCode bool
}

// Code returns a numeric Value.
func Code(n int) Value { return Value{code: n, isCode: true} }

// Text returns a text Value.
func Text(s string) Value { return Value{text: s} }

// IsCode reports whether v holds a numeric code.
func (v Value) IsCode() bool { return v.isCode }

// Int returns the numeric code and whether v holds one.
func (v Value) Int() (int, bool) { return v.code, v.isCode }

func (v Value) String() string {
	if v.isCode {
		return strconv.Itoa(v.code)
	}
	return v.text
}

// Equal compares kind and content.
func (v Value) Equal(o Value) bool {
	return v.isCode == o.isCode && v.code == o.code && v.text == o.text
}

// ColorTag is the inspection's overall classification sent to the portal.
type ColorTag int

const (
	ColorGreen ColorTag = 0
	ColorRed   ColorTag = 1
)

func (c ColorTag) String() string {
	if c == ColorRed {
		return "red"
	}
	return "green"
}

// ParseColorTag accepts "green"/"red" or the numeric codes.
func ParseColorTag(s string) (ColorTag, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "green", "0":
		return ColorGreen, nil
	case "red", "1":
		return ColorRed, nil
	}
	return ColorGreen, fmt.Errorf("%w: color tag %q", ErrInvalidValue, s)
}

// ResolveColorTag maps the parent request flags to a color tag.
// Green wins whenever it is set.
func ResolveColorTag(hasGreen, hasRed bool) ColorTag {
	if hasGreen {
		return ColorGreen
	}
	return ColorRed
}

func parseFlag(s string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on", "y":
		return 1, true
	case "0", "false", "no", "off", "n":
		return 0, true
	}
	return 0, false
}

// coerce converts v to the representation f stores.
func coerce(f Field, v Value) (Value, error) {
	switch f.Kind {
	case KindFlag:
		if n, ok := v.Int(); ok {
			if n == 0 || n == 1 {
				return Code(n), nil
			}
			return Value{}, fmt.Errorf("%w: %s must be 0 or 1, got %d", ErrInvalidValue, f.Name, n)
		}
		if n, ok := parseFlag(v.text); ok {
			return Code(n), nil
		}
		return Value{}, fmt.Errorf("%w: %s must be yes/no, got %q", ErrInvalidValue, f.Name, v.text)

	case KindChoice:
		label := strings.ToLower(strings.TrimSpace(v.String()))
		if label == f.Default.text || slices.Contains(f.Choices, label) {
			return Text(label), nil
		}
		return Value{}, fmt.Errorf("%w: %s must be one of %s, got %q", ErrInvalidValue, f.Name, strings.Join(f.Choices, "|"), v.String())

	case KindText:
		return Text(v.String()), nil

	case KindMeasure:
		s := strings.TrimSpace(v.String())
		if s == "" {
			return Text(""), nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return Value{}, fmt.Errorf("%w: %s must be numeric, got %q", ErrInvalidValue, f.Name, s)
		}
		// Stored canonically so it always encodes as a JSON number.
		return Text(strconv.FormatFloat(n, 'f', -1, 64)), nil

	case KindColorTag:
		if n, ok := v.Int(); ok {
			if n == int(ColorGreen) || n == int(ColorRed) {
				return Code(n), nil
			}
			return Value{}, fmt.Errorf("%w: color tag must be 0 or 1, got %d", ErrInvalidValue, n)
		}
		c, err := ParseColorTag(v.text)
		if err != nil {
			return Value{}, err
		}
		return Code(int(c)), nil

	case KindImage:
		return Value{}, fmt.Errorf("%w: %s", ErrImageField, f.Name)
	}
	return Value{}, fmt.Errorf("%w: %s has unsupported kind %s", ErrInvalidValue, f.Name, f.Kind)
}
