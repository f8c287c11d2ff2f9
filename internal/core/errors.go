package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyWorkbook matches *EmptyWorkbookError via errors.Is.
	ErrEmptyWorkbook = errors.New("workbook has no sheets")

	// ErrUnsupportedFormat is returned by readers for file types they cannot open.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// SheetNotFoundError reports a requested sheet that the workbook lacks.
// Callers can recover by listing Available or asking again.
type SheetNotFoundError struct {
	Requested string
	Available []string
}

func (e *SheetNotFoundError) Error() string {
	quoted := make([]string, len(e.Available))
	for i, name := range e.Available {
		quoted[i] = fmt.Sprintf("%q", name)
	}
	return fmt.Sprintf("sheet not found: %q (available: [%s])", e.Requested, strings.Join(quoted, ", "))
}

// EmptyWorkbookError reports a workbook without any sheets.
type EmptyWorkbookError struct {
	Source string // File name, if known
}

func (e *EmptyWorkbookError) Error() string {
	if e.Source == "" {
		return ErrEmptyWorkbook.Error()
	}
	return fmt.Sprintf("%s: %s", e.Source, ErrEmptyWorkbook)
}

// Is makes errors.Is(err, ErrEmptyWorkbook) hold.
func (e *EmptyWorkbookError) Is(target error) bool {
	return target == ErrEmptyWorkbook
}
