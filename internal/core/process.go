package core

// IDKey is the key under which ProcessRows stores the row's output position.
const IDKey = "id"

// ProcessRows normalizes the raw rows of one sheet.
//
// Rows whose values are all null or "" are dropped. Every surviving row is
// rebuilt as a fold over its raw columns in order: the header is normalized
// with NormalizeHeader, columns whose key normalizes to "" are skipped, and
// the value is passed through Coerce. When two headers normalize to the same
// key the later column wins and the key keeps its first position.
//
// With addID each output row starts with "id" set to its zero-based position
// in the filtered output. A column that itself normalizes to "id" overwrites
// that value, matching the fold above.
//
// The result is never nil.
func ProcessRows(rows []*Row, addID, camelCase bool) []*Row {
	out := make([]*Row, 0, len(rows))
	keys := make(map[string]string)
	for _, raw := range rows {
		if raw == nil || raw.IsEmpty() {
			continue
		}

		n := raw.Len()
		if addID {
			n++
		}
		row := NewRow(n)
		if addID {
			row.Set(IDKey, NumberValue(float64(len(out))))
		}

		raw.Each(func(key string, v Value) {
			cleanKey, seen := keys[key]
			if !seen {
				cleanKey = NormalizeHeader(key, camelCase)
				keys[key] = cleanKey
			}
			if cleanKey == "" {
				return
			}
			row.Set(cleanKey, Coerce(v))
		})

		out = append(out, row)
	}
	return out
}
