package workbook

import "strings"

// builtinDateFormats lists the built-in number format ids that display a
// date or time (ECMA-376 Part 1, 18.8.30, plus the CJK date ids).
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	45: true, 46: true, 47: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

// IsDateNumFmt reports whether a built-in number format id is a date format.
func IsDateNumFmt(id int) bool {
	return builtinDateFormats[id]
}

// IsDateFormatCode reports whether a custom number format code displays a
// date or time. Quoted literals, escaped characters and bracketed sections
// (colors, conditions, locales) are ignored; elapsed-time brackets such as
// [h] count as time. Only the first section of the code is inspected.
func IsDateFormatCode(code string) bool {
	if strings.EqualFold(strings.TrimSpace(code), "general") {
		return false
	}

	inQuote := false
	for i := 0; i < len(code); i++ {
		ch := code[i]
		switch {
		case inQuote:
			if ch == '"' {
				inQuote = false
			}
		case ch == '"':
			inQuote = true
		case ch == '\\' || ch == '_' || ch == '*':
			i++ // skip the escaped or padding character
		case ch == '[':
			end := strings.IndexByte(code[i:], ']')
			if end < 0 {
				return false
			}
			inner := strings.ToLower(code[i+1 : i+end])
			if inner != "" && strings.Trim(inner, "hms") == "" {
				return true
			}
			i += end
		case ch == ';':
			return false
		default:
			switch ch | 0x20 { // ASCII lower-case
			case 'y', 'm', 'd', 'h', 's':
				return true
			}
		}
	}
	return false
}
