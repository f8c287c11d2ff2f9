// Package workbook reads spreadsheet files into rows for the conversion core.
//
// Two formats are supported:
//
//   - Office Open XML workbooks (.xlsx, .xlsm, .xltx, .xltm) via excelize.
//     Cell types are preserved: numbers, booleans, strings, and numbers
//     formatted as dates are returned as date values.
//   - CSV files, read as a one-sheet workbook named "Sheet1". A UTF-8 BOM is
//     skipped, legacy single-byte encodings are decoded, and numbers and
//     TRUE/FALSE are inferred.
//
// Both implement core.SheetSource.
package workbook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/sheetjson/internal/core"
)

// ContextCheckInterval is how often (in rows) readers check for cancellation.
var ContextCheckInterval = 100

// CSVSheetName is the sheet name given to CSV input.
const CSVSheetName = "Sheet1"

// Workbook is an open spreadsheet.
type Workbook interface {
	core.SheetSource
	Close() error
}

// Options configures how files are read.
type Options struct {
	// CSVEncoding names the character encoding of CSV input. "" means UTF-8.
	CSVEncoding string

	// CSVComma is the CSV field delimiter. Zero means ','.
	CSVComma rune
}

// Format identifies a supported input format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// DetectFormat maps a file name to its format by extension.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return FormatXLSX, nil
	case ".csv", ".txt":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%s: %w", filepath.Base(name), core.ErrUnsupportedFormat)
	}
}

// Open opens the file at path.
func Open(path string, opts Options) (Workbook, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	return open(f, filepath.Base(path), format, opts)
}

// OpenReader reads a workbook from r. name is used to detect the format and
// in error messages.
func OpenReader(r io.Reader, name string, opts Options) (Workbook, error) {
	format, err := DetectFormat(name)
	if err != nil {
		return nil, err
	}
	return open(r, name, format, opts)
}

// OpenBytes reads a workbook held in memory.
func OpenBytes(data []byte, name string, opts Options) (Workbook, error) {
	return OpenReader(bytes.NewReader(data), name, opts)
}

func open(r io.Reader, name string, format Format, opts Options) (Workbook, error) {
	switch format {
	case FormatXLSX:
		b, err := openXLSX(r, name)
		if err != nil {
			return nil, err
		}
		return b, nil
	case FormatCSV:
		b, err := openCSV(r, name, opts)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%s: %w", name, core.ErrUnsupportedFormat)
	}
}

// buildRows turns a grid of raw cells into keyed rows.
//
// grid[headerRow] supplies the headers; rows above it are skipped. Every data
// row gets one entry per header, with Null for cells that are missing or
// blank. Cells right of the last header are ignored. value converts a
// non-blank cell at grid position (r, c).
func buildRows(ctx context.Context, grid [][]string, headerRow int, value func(r, c int, raw string) core.Value) ([]*core.Row, error) {
	if headerRow < 0 {
		headerRow = 0
	}
	if headerRow >= len(grid) {
		return []*core.Row{}, nil
	}

	headers := HeaderKeys(grid[headerRow])
	rows := make([]*core.Row, 0, len(grid)-headerRow-1)

	for r := headerRow + 1; r < len(grid); r++ {
		if (r-headerRow)%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		cells := grid[r]
		row := core.NewRow(len(headers))
		for c, header := range headers {
			v := core.Null()
			if c < len(cells) && cells[c] != "" {
				v = value(r, c, cells[c])
			}
			row.Set(header, v)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// HeaderKeys returns the raw column keys for a header row. Repeated header
// text is disambiguated with numeric suffixes ("Name", "Name_1", "Name_2").
// Blank header cells stay "" and are dropped later by normalization.
func HeaderKeys(cells []string) []string {
	keys := make([]string, len(cells))
	used := make(map[string]bool, len(cells))
	counts := make(map[string]int)

	for i, cell := range cells {
		key := cell
		if strings.TrimSpace(cell) != "" {
			for used[key] {
				counts[cell]++
				key = fmt.Sprintf("%s_%d", cell, counts[cell])
			}
			used[key] = true
		}
		keys[i] = key
	}
	return keys
}
