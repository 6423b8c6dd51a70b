package encoder

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// charsetInfo describes a write encoding. enc is nil for UTF-8, which
// needs no conversion.
type charsetInfo struct {
	name     string
	enc      encoding.Encoding
	preamble []byte
}

func normalizeCharset(name string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(name), `"`))
}

func lookupCharset(name string) (charsetInfo, error) {
	switch normalizeCharset(name) {
	case "", "utf-8", "utf8":
		return charsetInfo{name: "utf-8"}, nil
	case "utf-16", "utf-16le", "unicode":
		return charsetInfo{
			name:     "utf-16",
			enc:      unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
			preamble: []byte{0xFF, 0xFE},
		}, nil
	case "utf-16be", "unicodefffe", "bigendianunicode":
		return charsetInfo{
			name:     "utf-16BE",
			enc:      unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
			preamble: []byte{0xFE, 0xFF},
		}, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return charsetInfo{}, fmt.Errorf("unsupported encoding %q", name)
	}
	return charsetInfo{name: strings.ToLower(advertisedName(enc, name)), enc: enc}, nil
}

// advertisedName prefers the MIME name of enc, which is what clients put in
// Content-Type headers, over its formal IANA name.
func advertisedName(enc encoding.Encoding, fallback string) string {
	if name, err := ianaindex.MIME.Name(enc); err == nil && name != "" {
		return name
	}
	if name, err := ianaindex.IANA.Name(enc); err == nil && name != "" {
		return name
	}
	return normalizeCharset(fallback)
}

// charsetAliases groups names that denote the same encoding
var charsetAliases = map[string]string{
	"utf8":             "utf-8",
	"utf-8":            "utf-8",
	"utf-16":           "utf-16",
	"utf-16le":         "utf-16",
	"unicode":          "utf-16",
	"utf-16be":         "utf-16be",
	"unicodefffe":      "utf-16be",
	"bigendianunicode": "utf-16be",
}

func sameCharset(a, b string) bool {
	a, b = normalizeCharset(a), normalizeCharset(b)
	if a == b {
		return true
	}
	ca, ok1 := charsetAliases[a]
	cb, ok2 := charsetAliases[b]
	if ok1 || ok2 {
		return ok1 && ok2 && ca == cb
	}
	ea, err := ianaindex.IANA.Encoding(a)
	if err != nil || ea == nil {
		return false
	}
	eb, err := ianaindex.IANA.Encoding(b)
	if err != nil || eb == nil {
		return false
	}
	return ea == eb
}
