package workbook

// text.go prepares raw CSV bytes for parsing.
//
// Spreadsheet exports commonly carry a UTF-8 byte order mark (Excel on
// Windows) or use a legacy single-byte code page. prepareText strips the BOM,
// decodes the configured code page to UTF-8, and replaces any invalid UTF-8
// that remains with U+FFFD so downstream JSON is always valid.

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// legacyEncodings maps accepted encoding names to their decoders.
var legacyEncodings = map[string]encoding.Encoding{
	"windows-1250": charmap.Windows1250,
	"windows-1251": charmap.Windows1251,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
	"iso-8859-1":   charmap.ISO8859_1,
	"latin1":       charmap.ISO8859_1,
	"iso-8859-2":   charmap.ISO8859_2,
	"iso-8859-15":  charmap.ISO8859_15,
	"macintosh":    charmap.Macintosh,
}

// SupportedEncodings returns every accepted CSV encoding name, sorted.
func SupportedEncodings() []string {
	names := []string{"utf-8"}
	for name := range legacyEncodings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsSupportedEncoding reports whether name is an accepted CSV encoding.
func IsSupportedEncoding(name string) bool {
	switch normalizeEncodingName(name) {
	case "", "utf-8", "utf8":
		return true
	}
	_, ok := legacyEncodings[normalizeEncodingName(name)]
	return ok
}

func normalizeEncodingName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// prepareText returns data as valid UTF-8 without a leading BOM.
func prepareText(data []byte, encodingName string) ([]byte, error) {
	name := normalizeEncodingName(encodingName)

	switch name {
	case "", "utf-8", "utf8":
		data = bytes.TrimPrefix(data, utf8BOM)
	default:
		enc, ok := legacyEncodings[name]
		if !ok {
			return nil, fmt.Errorf("encoding error: unknown encoding %q", encodingName)
		}
		decoded, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("encoding error: decode %s: %w", name, err)
		}
		data = decoded
	}

	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, []byte("�"))
	}
	return data, nil
}
