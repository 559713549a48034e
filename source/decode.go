package source

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidEncoding is returned when the input is neither valid UTF-8 nor
// BOM-marked UTF-16.
var ErrInvalidEncoding = errors.New("source is not valid UTF-8 or UTF-16")

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Decode converts raw shader source bytes to a normalized string.
//
// UTF-16 input must carry a byte order mark. UTF-8 input may carry one; it
// is stripped. The result is in Unicode normalization form C so that
// identifiers spelled with different code point sequences compare equal.
func Decode(raw []byte) (string, error) {
	var text []byte
	switch {
	case bytes.HasPrefix(raw, bomUTF16LE), bytes.HasPrefix(raw, bomUTF16BE):
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		out, _, err := transform.Bytes(dec, raw)
		if err != nil {
			return "", fmt.Errorf("decoding UTF-16 source: %w", err)
		}
		text = out
	case bytes.HasPrefix(raw, bomUTF8):
		text = raw[len(bomUTF8):]
	default:
		text = raw
	}
	if !utf8.Valid(text) {
		return "", ErrInvalidEncoding
	}
	return norm.NFC.String(string(text)), nil
}

// DecodeString normalizes an already decoded string.
func DecodeString(s string) string {
	return norm.NFC.String(s)
}
