package core

import (
	"bytes"
	"encoding/json"
	"time"
)

// Row is an insertion-ordered mapping from column key to Value.
//
// Raw rows are keyed by the sheet's header text; normalized rows by the
// normalized key. Setting an existing key replaces its value in place, so
// the key keeps the position of its first write.
type Row struct {
	keys   []string
	values map[string]Value
}

// NewRow returns an empty row with room for n columns.
func NewRow(n int) *Row {
	return &Row{
		keys:   make([]string, 0, n),
		values: make(map[string]Value, n),
	}
}

// RowOf builds a row from alternating key/value pairs. It is meant for tests
// and literals; an odd trailing key is ignored.
func RowOf(pairs ...any) *Row {
	r := NewRow(len(pairs) / 2)
	for i := 0; i+1 < len(pairs); i += 2 {
		key, _ := pairs[i].(string)
		r.Set(key, ValueOf(pairs[i+1]))
	}
	return r
}

// Set writes key=v. An existing key keeps its position.
func (r *Row) Set(key string, v Value) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// Get returns the value stored under key.
func (r *Row) Get(key string) (Value, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the keys in insertion order. The slice must not be modified.
func (r *Row) Keys() []string { return r.keys }

// Len returns the number of columns.
func (r *Row) Len() int { return len(r.keys) }

// Each calls fn for every column in insertion order.
func (r *Row) Each(fn func(key string, v Value)) {
	for _, k := range r.keys {
		fn(k, r.values[k])
	}
}

// IsEmpty reports whether every value in the row is null or "".
// Keys are not considered.
func (r *Row) IsEmpty() bool {
	for _, v := range r.values {
		if !v.IsEmpty() {
			return false
		}
	}
	return true
}

// MarshalJSON renders the row as a JSON object preserving key order.
func (r *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := r.values[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ValueOf converts a plain Go value into a Value. Unknown types become Null.
func ValueOf(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case string:
		return StringValue(t)
	case bool:
		return BoolValue(t)
	case int:
		return NumberValue(float64(t))
	case int64:
		return NumberValue(float64(t))
	case float64:
		return NumberValue(t)
	case float32:
		return NumberValue(float64(t))
	case time.Time:
		return DateValue(t)
	default:
		return Null()
	}
}
