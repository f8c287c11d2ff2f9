package workbook

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sheetjson/internal/core"
)

// numericRegex matches plain decimal numbers, optionally signed and in
// scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// csvBook is a one-sheet SheetSource over parsed CSV records.
type csvBook struct {
	name    string
	records [][]string
}

func openCSV(r io.Reader, name string, opts Options) (*csvBook, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	data, err = prepareText(data, opts.CSVEncoding)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	if opts.CSVComma != 0 {
		reader.Comma = opts.CSVComma
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv %s: %w", name, err)
	}

	return &csvBook{name: name, records: records}, nil
}

// SheetNames implements core.SheetSource. An empty file has no sheets.
func (b *csvBook) SheetNames() []string {
	if len(b.records) == 0 {
		return nil
	}
	return []string{CSVSheetName}
}

// Rows implements core.SheetSource.
func (b *csvBook) Rows(ctx context.Context, sheet string, headerRow int) ([]*core.Row, error) {
	if sheet != CSVSheetName || len(b.records) == 0 {
		return nil, &core.SheetNotFoundError{Requested: sheet, Available: b.SheetNames()}
	}
	return buildRows(ctx, b.records, headerRow, func(_, _ int, raw string) core.Value {
		return InferValue(raw)
	})
}

// Close implements Workbook.
func (b *csvBook) Close() error { return nil }

// InferValue types a CSV cell: decimal numbers become numbers, TRUE/FALSE
// (any case) become booleans, everything else stays a string. Numbers with
// leading zeros ("007", "01234") stay strings so codes keep their digits.
func InferValue(raw string) core.Value {
	s := strings.TrimSpace(raw)

	switch strings.ToUpper(s) {
	case "TRUE":
		return core.BoolValue(true)
	case "FALSE":
		return core.BoolValue(false)
	}

	if numericRegex.MatchString(s) && !hasLeadingZero(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return core.NumberValue(f)
		}
	}
	return core.StringValue(raw)
}

// hasLeadingZero reports a zero-padded integer part such as "007" or "-01".
func hasLeadingZero(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && s[1] != '.' && s[1] != 'e' && s[1] != 'E'
}
