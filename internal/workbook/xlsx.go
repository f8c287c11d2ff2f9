package workbook

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/sheetjson/internal/core"
	"github.com/xuri/excelize/v2"
)

// xlsxBook is a SheetSource backed by an excelize workbook.
type xlsxBook struct {
	name     string
	file     *excelize.File
	sheets   []string
	date1904 bool

	// mu serializes access to file; dateStyles caches style id lookups.
	mu         sync.Mutex
	dateStyles map[int]bool
}

func openXLSX(r io.Reader, name string) (*xlsxBook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", name, err)
	}

	b := &xlsxBook{
		name:       name,
		file:       f,
		sheets:     f.GetSheetList(),
		dateStyles: make(map[int]bool),
	}

	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		b.date1904 = *props.Date1904
	}

	slog.Debug("workbook opened",
		"file", name,
		"sheets", len(b.sheets),
		"date1904", b.date1904,
	)
	return b, nil
}

// SheetNames implements core.SheetSource.
func (b *xlsxBook) SheetNames() []string { return b.sheets }

// Rows implements core.SheetSource.
func (b *xlsxBook) Rows(ctx context.Context, sheet string, headerRow int) ([]*core.Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	grid, err := b.file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	return buildRows(ctx, grid, headerRow, func(r, c int, raw string) core.Value {
		return b.cellValue(sheet, r, c, raw)
	})
}

// Close implements Workbook.
func (b *xlsxBook) Close() error {
	return b.file.Close()
}

// cellValue converts the raw text of the cell at zero-based (r, c) into a
// typed value using the cell's type and number format.
func (b *xlsxBook) cellValue(sheet string, r, c int, raw string) core.Value {
	axis, err := excelize.CoordinatesToCellName(c+1, r+1)
	if err != nil {
		return core.StringValue(raw)
	}

	typ, err := b.file.GetCellType(sheet, axis)
	if err != nil {
		return core.StringValue(raw)
	}

	switch typ {
	case excelize.CellTypeBool:
		return core.BoolValue(raw == "1" || strings.EqualFold(raw, "true"))

	case excelize.CellTypeSharedString, excelize.CellTypeInlineString,
		excelize.CellTypeFormula, excelize.CellTypeError:
		return core.StringValue(raw)

	case excelize.CellTypeDate:
		if t, ok := parseISODate(raw); ok {
			return core.DateValue(t)
		}
		return core.StringValue(raw)
	}

	// Unset and numeric cells hold numbers; a date number format turns the
	// serial into an instant.
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return core.StringValue(raw)
	}
	if b.isDateCell(sheet, axis) {
		if t, err := excelize.ExcelDateToTime(n, b.date1904); err == nil {
			return core.DateValue(t)
		}
	}
	return core.NumberValue(n)
}

// isDateCell reports whether the cell's number format displays a date or time.
func (b *xlsxBook) isDateCell(sheet, axis string) bool {
	styleID, err := b.file.GetCellStyle(sheet, axis)
	if err != nil || styleID == 0 {
		return false
	}

	if isDate, ok := b.dateStyles[styleID]; ok {
		return isDate
	}

	isDate := false
	if style, err := b.file.GetStyle(styleID); err == nil && style != nil {
		isDate = IsDateNumFmt(style.NumFmt)
		if style.CustomNumFmt != nil {
			isDate = IsDateFormatCode(*style.CustomNumFmt)
		}
	}
	b.dateStyles[styleID] = isDate
	return isDate
}

var isoDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseISODate parses the ISO 8601 text stored in t="d" cells.
func parseISODate(s string) (time.Time, bool) {
	for _, layout := range isoDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
