// Package core provides the row normalization pipeline and sheet selection
// policy for spreadsheet-to-JSON conversion.
//
// The package holds no I/O. Readers in internal/workbook supply rows through
// the [SheetSource] interface; writers in internal/output and internal/web
// render the returned [Output].
//
// # Pipeline
//
// For every selected sheet, [ProcessRows]:
//
//  1. Drops rows whose values are all null or "".
//  2. Optionally prefixes each row with a dense, zero-based "id".
//  3. Normalizes each header with [NormalizeHeader] (camelCase or
//     whitespace-collapsed passthrough), dropping columns whose key is "".
//  4. Coerces values with [Coerce]: dates become "YYYY-MM-DD", "" becomes null.
//
// Header collisions are resolved by a left fold into an ordered [Row]: the
// last column wins and the key keeps its first position.
//
// # Sheet Selection
//
// [SelectSheets] picks the named sheet, the first sheet, or every sheet.
// [SelectAndProcess] runs the pipeline over that selection:
//
//	out, err := core.SelectAndProcess(ctx, book, core.Options{
//	    AllSheets: true,
//	    AddID:     true,
//	    CamelCase: true,
//	})
//
// Single-sheet results render as a JSON array; all-sheets results render as
// an object keyed by sheet name in workbook order.
//
// # Error Handling
//
// [SheetNotFoundError] and [EmptyWorkbookError] are returned as values.
// [MapError] maps any error to a [UserMessage] with a support code:
//
//   - SHEET001-SHEET002: Sheet selection
//   - FILE001-FILE007: Input files
//   - CONV001-CONV004: Conversion capacity, cancellation, timeouts, options
//   - DB001-DB004: Import sink
//   - AUTH001-AUTH002: API keys
//   - RATE001: Rate limiting
package core
