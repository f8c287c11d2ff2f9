// Command sheetjson converts spreadsheet sheets into JSON arrays of records.
//
//	sheetjson book.xlsx --sheet Sales --camel-case --add-id --pretty
//	sheetjson book.xlsx --all-sheets -o book.json
//	sheetjson book.xlsx --list-sheets
//	sheetjson import book.xlsx --all-sheets
//	sheetjson delete 0b7e2c4a-6f1d-4c1e-9a8e-2f5d3c1b7a90
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/sheetjson/internal/config"
	"github.com/JonMunkholm/sheetjson/internal/core"
	"github.com/JonMunkholm/sheetjson/internal/logging"
)

func main() {
	// A .env file is optional; explicit environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Logs go to stderr so stdout carries only JSON.
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(cfg).ExecuteContext(ctx); err != nil {
		slog.Debug("command failed", "error", err)
		fmt.Fprintln(os.Stderr, "error:", describeError(err))
		os.Exit(1)
	}
}

// describeError prefers the user-facing message and falls back to the raw
// error for anything the catalogue does not know.
func describeError(err error) string {
	if core.IsUserFacing(err) {
		return core.FormatUserError(err)
	}
	return err.Error()
}
