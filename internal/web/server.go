// Package web provides the HTTP API and upload page for spreadsheet conversion.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/JonMunkholm/sheetjson/internal/config"
	"github.com/JonMunkholm/sheetjson/internal/core"
	"github.com/JonMunkholm/sheetjson/internal/store"
	webmw "github.com/JonMunkholm/sheetjson/internal/web/middleware"
	"github.com/JonMunkholm/sheetjson/internal/web/templates"
	"github.com/JonMunkholm/sheetjson/internal/workbook"
)

// Importer stores converted results and reads them back. *store.Store
// implements it.
type Importer interface {
	Import(ctx context.Context, id uuid.UUID, source string, res *core.Result) (*store.ImportSummary, error)
	Records(ctx context.Context, id uuid.UUID, sheet string) ([]json.RawMessage, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Ping(ctx context.Context) error
}

// Server is the HTTP server for the converter.
type Server struct {
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server
	limiter  *core.ConversionLimiter
	importer Importer // nil when no database is configured
	readOpts workbook.Options

	rateLimiters []*rateLimiter
}

// NewServer creates a Server. importer may be nil, which disables /api/import
// and the /api/conversions routes.
func NewServer(cfg *config.Config, importer Importer) *Server {
	s := &Server{
		cfg:      cfg,
		router:   chi.NewRouter(),
		limiter:  core.NewConversionLimiter(cfg.Convert.MaxConcurrent, cfg.Convert.MaxWaitTime),
		importer: importer,
		readOpts: cfg.Convert.ReaderOptions(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(webmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(webmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Method(http.MethodGet, "/", templ.Handler(templates.UploadPage(templates.UploadPageData{
		MaxFileSize:   s.cfg.Convert.MaxFileSize,
		ImportEnabled: s.importer != nil,
		CamelCase:     s.cfg.Convert.CamelCase,
		AddID:         s.cfg.Convert.AddID,
		Pretty:        s.cfg.Convert.Pretty,
		HeaderRow:     s.cfg.Convert.HeaderRow,
	})))
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		if s.cfg.Rate.Enabled {
			r.Use(s.newRateLimiter(s.cfg.Rate.ConvertLimit, time.Minute).middleware)
		}

		r.Post("/sheets", s.handleSheets)
		r.Post("/convert", s.handleConvert)

		r.Group(func(r chi.Router) {
			r.Use(webmw.APIKeyAuth(s.cfg.Security.APIKeys, s.respondError))
			r.Post("/import", s.handleImport)
			r.Get("/conversions/{id}/sheets/{sheet}", s.handleRecords)
			r.Delete("/conversions/{id}", s.handleDeleteConversion)
		})
	})
}

// Start begins listening for HTTP requests on the configured address.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight conversions, and
// closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.rateLimiters {
		rl.stop()
	}

	if active := s.limiter.Active(); active > 0 {
		slog.Info("waiting for conversions to complete", "active", active)
		if err := s.limiter.WaitForDrain(ctx); err != nil {
			slog.Warn("conversions did not complete in time", "error", err)
		}
	}

	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// LimiterStatus reports conversion slot usage.
func (s *Server) LimiterStatus() core.LimiterStatus {
	return s.limiter.Status()
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		// The upload page carries its style and script inline.
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}
