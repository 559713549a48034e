package sema

import (
	"strconv"
	"strings"

	"github.com/gogpu/sdsl/symbols"
)

// IntLiteralKind returns the default type of an integer literal.
func IntLiteralKind(text string) symbols.ScalarKind {
	suffix := text[len(strings.TrimRight(text, "uUlL")):]
	if strings.ContainsAny(suffix, "uU") {
		return symbols.UInt
	}
	return symbols.Int
}

// FloatLiteralKind returns the default type of a floating-point literal.
func FloatLiteralKind(text string) symbols.ScalarKind {
	switch text[len(text)-1] {
	case 'h', 'H':
		return symbols.Half
	case 'l', 'L':
		return symbols.Double
	}
	return symbols.Float
}

// ParseInt parses the exact text of an integer literal, suffix included.
func ParseInt(text string) (int64, error) {
	body := strings.TrimRight(text, "uUlL")
	if v, err := strconv.ParseInt(body, 0, 64); err == nil {
		return v, nil
	}
	u, err := strconv.ParseUint(body, 0, 64)
	return int64(u), err
}

// ParseFloat parses the exact text of a floating-point literal.
func ParseFloat(text string) (float64, error) {
	return strconv.ParseFloat(strings.TrimRight(text, "fFhHlL"), 64)
}
