package moco

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Bounds is a closed interval on a variable. The zero value means "unset" and is not
// written to the study document.
type Bounds struct {
	Lower float64
	Upper float64
	set   bool
}

// NewBounds returns the interval [lower, upper].
func NewBounds(lower, upper float64) Bounds {
	return Bounds{Lower: lower, Upper: upper, set: true}
}

// Fixed returns the degenerate interval [v, v].
func Fixed(v float64) Bounds {
	return NewBounds(v, v)
}

// IsSet reports whether the bounds carry a value.
func (b Bounds) IsSet() bool { return b.set }

// IsFixed reports whether lower and upper coincide.
func (b Bounds) IsFixed() bool { return b.set && b.Lower == b.Upper }

// Validate rejects inverted or NaN intervals.
func (b Bounds) Validate() error {
	if !b.set {
		return nil
	}
	if math.IsNaN(b.Lower) || math.IsNaN(b.Upper) {
		return fmt.Errorf("bounds contain NaN")
	}
	if b.Lower > b.Upper {
		return fmt.Errorf("lower bound %v exceeds upper bound %v", b.Lower, b.Upper)
	}
	return nil
}

// String renders the bounds the way the study document stores them: one value when
// fixed, "lower upper" otherwise, and "" when unset.
func (b Bounds) String() string {
	if !b.set {
		return ""
	}
	if b.IsFixed() {
		return formatFloat(b.Lower)
	}
	return formatFloat(b.Lower) + " " + formatFloat(b.Upper)
}

// parseBounds is the inverse of String.
func parseBounds(s string) (Bounds, error) {
	fields := strings.Fields(s)
	switch len(fields) {
	case 0:
		return Bounds{}, nil
	case 1:
		v, err := parseFloat(fields[0])
		if err != nil {
			return Bounds{}, err
		}
		return Fixed(v), nil
	case 2:
		lo, err := parseFloat(fields[0])
		if err != nil {
			return Bounds{}, err
		}
		hi, err := parseFloat(fields[1])
		if err != nil {
			return Bounds{}, err
		}
		return NewBounds(lo, hi), nil
	}
	return Bounds{}, fmt.Errorf("malformed bounds %q", s)
}

func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseFloat(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "inf", "+inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(s, 64)
}
