// Package logging provides structured logging configuration using log/slog.
//
// Loggers pick up two correlation ids from the context: the chi request id
// set by the RequestID middleware, and the conversion id attached with
// WithConversionID. Every log entry of one conversion can be found by either.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Setup configures the global slog logger and returns it.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
//
// w defaults to stderr, so commands that print JSON on stdout keep it clean.
func Setup(level, format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type conversionIDKey struct{}

// WithConversionID returns a context carrying the conversion id.
func WithConversionID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, conversionIDKey{}, id)
}

// ConversionID returns the conversion id stored in ctx, if any.
func ConversionID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(conversionIDKey{}).(uuid.UUID)
	return id, ok
}

// FromContext returns a logger enriched with request context.
//
// Usage:
//
//	func handleConvert(w http.ResponseWriter, r *http.Request) {
//	    logger := logging.FromContext(r.Context())
//	    logger.Info("converting", "file", name)
//	}
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	// Chi's RequestID middleware stores the ID in context
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if id, ok := ConversionID(ctx); ok {
		logger = logger.With("conversion_id", id.String())
	}

	return logger
}

// WithFields returns a logger with additional structured fields.
//
// Usage:
//
//	log := logging.WithFields(ctx, "file", name, "sheet", sheet)
//	log.Info("conversion started")
//	// ... later ...
//	log.Info("conversion completed", "records", n)
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
