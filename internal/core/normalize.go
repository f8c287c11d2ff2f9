package core

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// isSpace reports Unicode whitespace, including NBSP and the byte order mark
// that spreadsheet exports leave in header cells.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// isSeparator reports the word delimiters recognised in camelCase mode.
func isSeparator(r rune) bool {
	return isSpace(r) || r == '-' || r == '_' || r == '.'
}

// NormalizeHeader converts a raw column header into an output key.
//
// The header is trimmed and internal whitespace runs collapse to one space.
// Whitespace is any Unicode space, so NBSP and vertical tabs count.
// Without camelCase that string is returned as is, so "-", "_" and "." are
// kept literally. With camelCase the header is split on whitespace, hyphens,
// underscores and periods; the first word is lowercased and every later word
// is capitalized, then the words are joined:
//
//	NormalizeHeader("Order   Date", true)    // "orderDate"
//	NormalizeHeader("user_email", true)      // "userEmail"
//	NormalizeHeader("  First   Name ", false) // "First Name"
//
// A header with no words yields "". Callers treat "" as "drop this column".
func NormalizeHeader(header string, camelCase bool) string {
	if !camelCase {
		return strings.Join(strings.FieldsFunc(header, isSpace), " ")
	}

	var b strings.Builder
	b.Grow(len(header))
	first := true
	for _, word := range strings.FieldsFunc(header, isSeparator) {
		if first {
			b.WriteString(strings.ToLower(word))
			first = false
			continue
		}
		b.WriteString(capitalize(word))
	}
	return b.String()
}

// capitalize uppercases the first rune of word and lowercases the rest.
func capitalize(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	return string(unicode.ToUpper(r)) + strings.ToLower(word[size:])
}
