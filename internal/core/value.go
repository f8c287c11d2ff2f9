package core

// value.go defines the cell value model shared by raw and normalized rows.
//
// A Value is a small tagged union. Readers produce Strings, Numbers, Bools,
// Dates and Nulls; the row processor turns Dates into ISO date Strings and
// empty Strings into Nulls, so normalized rows only ever hold values that
// round-trip through JSON without loss.

import (
	"encoding/json"
	"strconv"
	"time"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindDate
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	default:
		return "null"
	}
}

// DateLayout is the rendering used for date cells in normalized output.
const DateLayout = "2006-01-02"

// Value is a single cell value. The zero Value is Null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	t    time.Time
}

// Null returns the null value.
func Null() Value { return Value{} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// NumberValue wraps a number.
func NumberValue(f float64) Value { return Value{kind: KindNumber, num: f} }

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// DateValue wraps an instant. Only its UTC calendar date survives normalization.
func DateValue(t time.Time) Value { return Value{kind: KindDate, t: t} }

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsEmpty reports whether v counts as an empty cell: null or "".
func (v Value) IsEmpty() bool {
	return v.kind == KindNull || (v.kind == KindString && v.str == "")
}

// Str returns the string payload ("" for other kinds).
func (v Value) Str() string { return v.str }

// Num returns the numeric payload (0 for other kinds).
func (v Value) Num() float64 { return v.num }

// Bool returns the boolean payload (false for other kinds).
func (v Value) Bool() bool { return v.b }

// Time returns the date payload (zero for other kinds).
func (v Value) Time() time.Time { return v.t }

// Any returns v as a plain Go value: nil, string, float64, bool or time.Time.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindDate:
		return v.t
	default:
		return nil
	}
}

// MarshalJSON renders v as a JSON scalar. Dates render as "YYYY-MM-DD".
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return strconv.AppendBool(nil, v.b), nil
	case KindDate:
		return json.Marshal(v.t.UTC().Format(DateLayout))
	default:
		return []byte("null"), nil
	}
}

// Coerce maps a raw cell value to its normalized form. Dates become their
// UTC calendar date as a string; null and "" become Null; everything else
// passes through untouched.
func Coerce(v Value) Value {
	switch {
	case v.kind == KindDate:
		return StringValue(v.t.UTC().Format(DateLayout))
	case v.IsEmpty():
		return Null()
	default:
		return v
	}
}
