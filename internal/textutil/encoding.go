// Package textutil repairs message text recovered from chat.db blobs.
package textutil

import (
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// fallbackEncodings are tried in order when charset detection is not
// confident. Single-byte Western encodings come first since they cover
// most legacy bodies written before Messages stored UTF-8 consistently.
var fallbackEncodings = []encoding.Encoding{
	charmap.Windows1252,
	charmap.ISO8859_1,
	japanese.ShiftJIS,
	korean.EUCKR,
	simplifiedchinese.GBK,
	traditionalchinese.Big5,
}

// DecodeBody converts raw string bytes pulled out of a message body into
// valid UTF-8. Valid input is returned unchanged.
func DecodeBody(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return EnsureUTF8(string(data))
}

// EnsureUTF8 ensures a string is valid UTF-8.
// If already valid UTF-8, returns as-is.
// Otherwise attempts charset detection and conversion, falling back to
// replacing invalid bytes with U+FFFD.
func EnsureUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}

	data := []byte(s)

	// Detection is unreliable on short samples, so accept lower confidence there.
	minConfidence := 30
	if len(data) > 50 {
		minConfidence = 50
	}

	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err == nil && result.Confidence >= minConfidence {
		if enc := EncodingByName(result.Charset); enc != nil {
			decoded, err := enc.NewDecoder().Bytes(data)
			if err == nil && utf8.Valid(decoded) {
				return string(decoded)
			}
		}
	}

	for _, enc := range fallbackEncodings {
		decoded, err := enc.NewDecoder().Bytes(data)
		if err == nil && utf8.Valid(decoded) {
			return string(decoded)
		}
	}

	return SanitizeUTF8(s)
}

// SanitizeUTF8 replaces invalid UTF-8 bytes with replacement character.
func SanitizeUTF8(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune('\ufffd')
			i++
		} else {
			sb.WriteRune(r)
			i += size
		}
	}
	return sb.String()
}

// EncodingByName returns an encoding for the charset names reported by
// chardet, or nil if the name is not one we convert from.
func EncodingByName(name string) encoding.Encoding {
	switch strings.ToLower(name) {
	case "windows-1252", "cp1252":
		return charmap.Windows1252
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1
	case "iso-8859-15", "latin9":
		return charmap.ISO8859_15
	case "shift_jis", "shift-jis", "sjis":
		return japanese.ShiftJIS
	case "euc-jp", "eucjp":
		return japanese.EUCJP
	case "euc-kr", "euckr":
		return korean.EUCKR
	case "gb2312", "gbk":
		return simplifiedchinese.GBK
	case "gb18030":
		return simplifiedchinese.GB18030
	case "big5", "big-5":
		return traditionalchinese.Big5
	case "koi8-r":
		return charmap.KOI8R
	default:
		return nil
	}
}
