package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Options holds every recognised conversion option. It is built once at the
// boundary (CLI flags, HTTP form, env defaults) and passed by value.
type Options struct {
	Output     string // Destination file; "" means the caller's default writer
	Sheet      string // Sheet to convert; "" means the first sheet
	AllSheets  bool   // Convert every sheet into a name-keyed object
	Pretty     bool   // Indent JSON output
	ListSheets bool   // Only list sheet names
	HeaderRow  int    // Zero-based index of the header row
	AddID      bool   // Prefix each record with a dense zero-based id
	CamelCase  bool   // camelCase column keys

	// Workers bounds concurrent sheet processing in all-sheets mode.
	// Values <= 0 use DefaultSheetWorkers.
	Workers int
}

// DefaultSheetWorkers is the all-sheets fan-out used when Options.Workers is unset.
const DefaultSheetWorkers = 4

// SheetSource is the spreadsheet-reading collaborator.
//
// SheetNames lists sheets in workbook order. Rows returns the data rows of
// one sheet: the row at headerRow supplies the column headers, rows above it
// are skipped, and missing cells are reported as Null.
type SheetSource interface {
	SheetNames() []string
	Rows(ctx context.Context, sheet string, headerRow int) ([]*Row, error)
}

// MemorySource is a SheetSource over rows that are already materialized.
// The header row index is ignored because the rows are already keyed.
type MemorySource struct {
	Names  []string
	Sheets map[string][]*Row
}

// SheetNames implements SheetSource.
func (m *MemorySource) SheetNames() []string { return m.Names }

// Rows implements SheetSource.
func (m *MemorySource) Rows(_ context.Context, sheet string, _ int) ([]*Row, error) {
	rows, ok := m.Sheets[sheet]
	if !ok {
		return nil, &SheetNotFoundError{Requested: sheet, Available: m.Names}
	}
	return rows, nil
}

// SheetRows is the processed output of one sheet.
type SheetRows struct {
	Name string
	Rows []*Row
}

// Result is the converted data. In single-sheet mode it holds exactly one
// sheet and renders as a JSON array; when Keyed it renders as an object
// mapping sheet names to arrays in workbook order.
type Result struct {
	Keyed  bool
	Sheets []SheetRows
}

// RowCount returns the total number of records across sheets.
func (r *Result) RowCount() int {
	n := 0
	for _, s := range r.Sheets {
		n += len(s.Rows)
	}
	return n
}

// MarshalJSON implements json.Marshaler.
func (r *Result) MarshalJSON() ([]byte, error) {
	if !r.Keyed {
		if len(r.Sheets) == 0 {
			return []byte("[]"), nil
		}
		return marshalRows(r.Sheets[0].Rows)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range r.Sheets {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(s.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		rows, err := marshalRows(s.Rows)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", s.Name, err)
		}
		buf.Write(rows)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalRows(rows []*Row) ([]byte, error) {
	if rows == nil {
		rows = []*Row{}
	}
	return json.Marshal(rows)
}

// Output is what SelectAndProcess returns: a sheet listing when
// Options.ListSheets was set, converted data otherwise.
type Output struct {
	Listing []string
	Result  *Result
}

// IsListing reports whether o is a sheet-name listing.
func (o *Output) IsListing() bool { return o.Result == nil }

// MarshalJSON implements json.Marshaler.
func (o *Output) MarshalJSON() ([]byte, error) {
	if o.IsListing() {
		names := o.Listing
		if names == nil {
			names = []string{}
		}
		return json.Marshal(names)
	}
	return o.Result.MarshalJSON()
}
