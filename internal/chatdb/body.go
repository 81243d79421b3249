package chatdb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/wesm/imsgexport/internal/textutil"
)

var (
	// ErrNoText means the message has neither an attributedBody nor a text
	// column value.
	ErrNoText = errors.New("message has no text")

	// ErrUndecodableBody means the attributedBody blob could not be parsed.
	ErrUndecodableBody = errors.New("attributedBody is not decodable")
)

// String class names that introduce the message text in a typedstream.
var stringClassMarkers = [][]byte{
	[]byte("NSString"),
	[]byte("NSMutableString"),
}

// The '+' type tag follows the class name after a version byte and a few
// reference bytes; it is never further than this.
const maxTypeTagOffset = 8

// Byte patterns bracketing the string payload, used by the legacy scan.
var (
	legacyStart = []byte{0x01, 0x2b}
	legacyEnd   = []byte{0x86, 0x84}
)

// GenerateText returns the display text of m. When the message has an
// attributedBody it takes precedence over the text column, since newer
// macOS releases leave text NULL and older ones may store a stale copy.
func (d *DB) GenerateText(m *Message) (string, error) {
	return GenerateText(m)
}

// GenerateText is the connection-independent form of DB.GenerateText.
func GenerateText(m *Message) (string, error) {
	if len(m.AttributedBody) > 0 {
		if s, err := parseTypedStream(m.AttributedBody); err == nil {
			return s, nil
		}
		s, err := parseLegacy(m.AttributedBody)
		if err != nil {
			return "", fmt.Errorf("message %d: %w: %v", m.RowID, ErrUndecodableBody, err)
		}
		return s, nil
	}
	if m.Text.Valid {
		return m.Text.String, nil
	}
	return "", fmt.Errorf("message %d: %w", m.RowID, ErrNoText)
}

// parseTypedStream reads the first string object out of an NSArchiver
// typedstream: the class name, then a '+' type tag, then a length-prefixed
// UTF-8 payload.
func parseTypedStream(body []byte) (string, error) {
	var rest []byte
	for _, marker := range stringClassMarkers {
		if i := bytes.Index(body, marker); i >= 0 {
			rest = body[i+len(marker):]
			break
		}
	}
	if rest == nil {
		return "", errors.New("no string class in typedstream")
	}

	tag := bytes.IndexByte(rest, '+')
	if tag < 0 || tag > maxTypeTagOffset {
		return "", errors.New("no string type tag after class name")
	}
	rest = rest[tag+1:]

	n, size, err := readLength(rest)
	if err != nil {
		return "", err
	}
	rest = rest[size:]
	if n > len(rest) {
		return "", fmt.Errorf("string length %d exceeds remaining %d bytes", n, len(rest))
	}
	return textutil.DecodeBody(rest[:n]), nil
}

// readLength decodes a typedstream integer: a single byte below 0x80, or
// 0x81/0x82 followed by a little-endian uint16/uint32.
func readLength(b []byte) (n, size int, err error) {
	if len(b) == 0 {
		return 0, 0, errors.New("missing string length")
	}
	switch b[0] {
	case 0x81:
		if len(b) < 3 {
			return 0, 0, errors.New("truncated 16-bit string length")
		}
		return int(binary.LittleEndian.Uint16(b[1:3])), 3, nil
	case 0x82:
		if len(b) < 5 {
			return 0, 0, errors.New("truncated 32-bit string length")
		}
		return int(binary.LittleEndian.Uint32(b[1:5])), 5, nil
	}
	if b[0] >= 0x80 {
		return 0, 0, fmt.Errorf("unsupported length tag 0x%02x", b[0])
	}
	return int(b[0]), 1, nil
}

// parseLegacy is the pattern scan used before typedstream parsing: take the
// bytes between the start and end markers and drop the length prefix, which
// is one character when it is a plain byte and three when it is an 0x81
// prefixed uint16 that does not survive as UTF-8.
func parseLegacy(body []byte) (string, error) {
	start := bytes.Index(body, legacyStart)
	if start < 0 {
		return "", errors.New("no start pattern")
	}
	s := body[start+len(legacyStart):]

	if len(s) < 2 {
		return "", errors.New("no end pattern")
	}
	end := bytes.Index(s[1:], legacyEnd)
	if end < 0 {
		return "", errors.New("no end pattern")
	}
	s = s[:end+1]

	if utf8.Valid(s) {
		return dropRunes(string(s), 1)
	}
	return dropRunes(textutil.SanitizeUTF8(string(s)), 3)
}

// dropRunes removes the first n runes of s. It fails when s has no rune
// after the dropped prefix.
func dropRunes(s string, n int) (string, error) {
	i := 0
	for ; n > 0 && i < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	if n > 0 || i >= len(s) {
		return "", errors.New("string shorter than its length prefix")
	}
	return s[i:], nil
}
