// Error Codes Reference
//
// This file maps technical errors to user-facing messages with a code that
// users can quote when reporting a problem.
//
// # Sheet Errors (SHEET001-SHEET099)
//
//	SHEET001 - Sheet not found: The requested sheet does not exist
//	           Action: List the sheets and pick one of them
//	           Match: *SheetNotFoundError, "sheet not found"
//
//	SHEET002 - Empty workbook: The workbook contains no sheets
//	           Action: Check that the file contains data
//	           Match: ErrEmptyWorkbook, "workbook has no sheets"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds maximum size limit
//	FILE002 - Unsupported format: Only .xlsx, .xlsm, .xltx, .xltm and .csv are read
//	FILE003 - Encoding error: File contains invalid characters
//	FILE004 - No file: No file was selected
//	FILE005 - File not found: The input file does not exist
//	FILE006 - Permission denied: The file cannot be read or written
//	FILE007 - Invalid workbook: The file is not a readable spreadsheet
//
// # Conversion Errors (CONV001-CONV099)
//
//	CONV001 - System busy: Too many conversions in progress
//	CONV002 - Request cancelled
//	CONV003 - Request timeout
//	CONV004 - Invalid option: A conversion option could not be parsed
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key
//	DB002 - Connection refused
//	DB003 - Database not configured
//	DB004 - Conversion not found
//
// # Authentication (AUTH001-AUTH099)
//
//	AUTH001 - Missing API key
//	AUTH002 - Invalid API key
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the logs for the technical error.
//
// # Matching
//
// Typed errors are matched first with errors.As / errors.Is. Remaining errors
// are matched case-insensitively with strings.Contains; the first matching
// pattern wins, so specific patterns come before general ones.

package core

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgSheetNotFound = UserMessage{
		Message: "The requested sheet does not exist",
		Action:  "List the sheets in the workbook and pick one of them",
		Code:    "SHEET001",
	}
	msgEmptyWorkbook = UserMessage{
		Message: "The workbook contains no sheets",
		Action:  "Check that the file contains data",
		Code:    "SHEET002",
	}
)

var errorPatterns = []errorPattern{
	// =========================================================================
	// Sheet Errors (SHEET001-SHEET002)
	// =========================================================================
	{pattern: "sheet not found", msg: msgSheetNotFound},
	{pattern: "workbook has no sheets", msg: msgEmptyWorkbook},

	// =========================================================================
	// File Errors (FILE001-FILE007)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the workbook into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the workbook into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "unsupported file format",
		msg: UserMessage{
			Message: "This file type is not supported",
			Action:  "Save the file as .xlsx or .csv",
			Code:    "FILE002",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save the file as UTF-8 or set CONVERT_CSV_ENCODING",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a spreadsheet to convert",
			Code:    "FILE004",
		},
	},
	{
		pattern: "no such file or directory",
		msg: UserMessage{
			Message: "The input file does not exist",
			Action:  "Check the file path",
			Code:    "FILE005",
		},
	},
	{
		pattern: "file does not exist",
		msg: UserMessage{
			Message: "The input file does not exist",
			Action:  "Check the file path",
			Code:    "FILE005",
		},
	},
	{
		pattern: "permission denied",
		msg: UserMessage{
			Message: "The file cannot be accessed",
			Action:  "Check file permissions",
			Code:    "FILE006",
		},
	},
	{
		pattern: "zip: not a valid zip file",
		msg: UserMessage{
			Message: "The file is not a readable spreadsheet",
			Action:  "Open the file in a spreadsheet program and save it again",
			Code:    "FILE007",
		},
	},
	{
		pattern: "open workbook",
		msg: UserMessage{
			Message: "The file is not a readable spreadsheet",
			Action:  "Open the file in a spreadsheet program and save it again",
			Code:    "FILE007",
		},
	},

	// =========================================================================
	// Conversion Errors (CONV001-CONV003)
	// =========================================================================
	{
		pattern: "too many concurrent conversions",
		msg: UserMessage{
			Message: "Too many conversions in progress",
			Action:  "Please wait a moment and try again",
			Code:    "CONV001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "CONV002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "CONV003",
		},
	},

	{
		pattern: "invalid option",
		msg: UserMessage{
			Message: "A conversion option is invalid",
			Action:  "Check the option values and try again",
			Code:    "CONV004",
		},
	},

	// =========================================================================
	// Database Errors (DB001-DB004)
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "These records were already imported",
			Action:  "Import the file under a new conversion",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB002",
		},
	},
	{
		pattern: "database not configured",
		msg: UserMessage{
			Message: "Importing is not enabled",
			Action:  "Set DATABASE_URL to enable imports",
			Code:    "DB003",
		},
	},
	{
		pattern: "conversion not found",
		msg: UserMessage{
			Message: "No stored conversion has that id",
			Action:  "Check the conversion id returned by the import",
			Code:    "DB004",
		},
	},

	// =========================================================================
	// Authentication (AUTH001-AUTH002)
	// =========================================================================
	{
		pattern: "missing api key",
		msg: UserMessage{
			Message: "An API key is required",
			Action:  "Send your key in the X-API-Key header",
			Code:    "AUTH001",
		},
	},
	{
		pattern: "invalid api key",
		msg: UserMessage{
			Message: "The API key was not accepted",
			Action:  "Check the key or ask for a new one",
			Code:    "AUTH002",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	err := &SheetNotFoundError{Requested: "Q1", Available: []string{"Sales"}}
//	msg := MapError(err)
//	// msg.Code == "SHEET001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var notFound *SheetNotFoundError
	if errors.As(err, &notFound) {
		return msgSheetNotFound
	}
	if errors.Is(err, ErrEmptyWorkbook) {
		return msgEmptyWorkbook
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
//
// A *SheetNotFoundError additionally names the requested and available sheets.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}

	var notFound *SheetNotFoundError
	if errors.As(err, &notFound) {
		return fmt.Sprintf("%s (Code: %s). %s: %s",
			msg.Message, msg.Code, msg.Action, notFound.Error())
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
