package core

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"
)

// Selection is the outcome of the sheet-selection policy.
type Selection struct {
	Names []string // Sheets to process, in workbook order
	Keyed bool     // Aggregate into a name-keyed mapping
}

// SelectSheets decides which sheets feed the row processor.
//
// AllSheets selects every sheet in workbook order and asks for a keyed
// result. Otherwise the sheet named by opts.Sheet is selected, or the first
// sheet when no name is given. An unknown name fails with
// *SheetNotFoundError; a workbook with no sheets fails with
// *EmptyWorkbookError.
func SelectSheets(names []string, opts Options) (Selection, error) {
	if len(names) == 0 {
		return Selection{}, &EmptyWorkbookError{}
	}

	if opts.AllSheets {
		return Selection{Names: slices.Clone(names), Keyed: true}, nil
	}

	target := names[0]
	if opts.Sheet != "" {
		if !slices.Contains(names, opts.Sheet) {
			return Selection{}, &SheetNotFoundError{
				Requested: opts.Sheet,
				Available: slices.Clone(names),
			}
		}
		target = opts.Sheet
	}
	return Selection{Names: []string{target}}, nil
}

// SelectAndProcess runs the whole conversion for one workbook.
//
// With opts.ListSheets it returns the sheet names without reading any rows.
// Otherwise it applies SelectSheets and runs ProcessRows on each selected
// sheet. In all-sheets mode sheets are read and processed concurrently,
// bounded by opts.Workers; ids restart at zero for every sheet and the
// result keeps workbook order.
func SelectAndProcess(ctx context.Context, src SheetSource, opts Options) (*Output, error) {
	names := src.SheetNames()

	if opts.ListSheets {
		if len(names) == 0 {
			return nil, &EmptyWorkbookError{}
		}
		return &Output{Listing: slices.Clone(names)}, nil
	}

	sel, err := SelectSheets(names, opts)
	if err != nil {
		return nil, err
	}

	sheets := make([]SheetRows, len(sel.Names))

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultSheetWorkers
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range sel.Names {
		g.Go(func() error {
			raw, err := src.Rows(gctx, name, opts.HeaderRow)
			if err != nil {
				return fmt.Errorf("read sheet %q: %w", name, err)
			}
			rows := ProcessRows(raw, opts.AddID, opts.CamelCase)
			slog.Debug("sheet processed",
				"sheet", name,
				"raw_rows", len(raw),
				"records", len(rows),
			)
			sheets[i] = SheetRows{Name: name, Rows: rows}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Output{Result: &Result{Keyed: sel.Keyed, Sheets: sheets}}, nil
}
