package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/sheetjson/internal/core"
	"github.com/JonMunkholm/sheetjson/internal/logging"
	"github.com/JonMunkholm/sheetjson/internal/output"
	"github.com/JonMunkholm/sheetjson/internal/store"
	"github.com/JonMunkholm/sheetjson/internal/workbook"
)

// multipartMemory is how much of a multipart form is held in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// multipartOverhead allows for form fields and boundaries around the file.
const multipartOverhead = 1 << 20

// upload is a spreadsheet received in a multipart form.
type upload struct {
	name string
	data []byte
}

// handleHealth reports liveness, conversion capacity, and database state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Status      string             `json:"status"`
		Conversions core.LimiterStatus `json:"conversions"`
		Database    string             `json:"database"`
	}{
		Status:      "ok",
		Conversions: s.limiter.Status(),
		Database:    "disabled",
	}

	if s.importer != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		resp.Database = "ok"
		if err := s.importer.Ping(ctx); err != nil {
			logging.FromContext(r.Context()).Warn("database ping failed", "error", err)
			resp.Status = "degraded"
			resp.Database = "unavailable"
		}
	}

	writeJSON(w, r, http.StatusOK, resp)
}

// handleSheets lists the sheet names of an uploaded workbook.
func (s *Server) handleSheets(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	out, err := s.convert(r.Context(), up, core.Options{ListSheets: true})
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	writeJSON(w, r, http.StatusOK, struct {
		File   string   `json:"file"`
		Sheets []string `json:"sheets"`
	}{File: up.name, Sheets: out.Listing})
}

// handleConvert converts an uploaded workbook and responds with the JSON
// records: an array for one sheet, an object keyed by sheet name for all.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	opts, err := parseOptions(r, s.cfg.Convert.DefaultOptions())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	id := uuid.New()
	ctx := logging.WithConversionID(r.Context(), id)

	out, err := s.convert(ctx, up, opts)
	if err != nil {
		s.respondError(w, r.WithContext(ctx), err, 0)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Conversion-ID", id.String())
	if err := output.Write(w, out, opts.Pretty); err != nil {
		logging.FromContext(ctx).Error("write response", "error", err)
	}
}

// handleImport converts an uploaded workbook and stores the records.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		s.respondError(w, r, store.ErrNotConfigured, 0)
		return
	}

	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	opts, err := parseOptions(r, s.cfg.Convert.DefaultOptions())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	opts.ListSheets = false

	id := uuid.New()
	ctx := logging.WithConversionID(r.Context(), id)
	r = r.WithContext(ctx)

	out, err := s.convert(ctx, up, opts)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	summary, err := s.importer.Import(ctx, id, up.name, out.Result)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	logging.FromContext(ctx).Info("conversion imported",
		"file", up.name,
		"records", summary.Records,
		"sheets", len(summary.Sheets),
	)
	writeJSON(w, r, http.StatusCreated, summary)
}

// handleRecords returns the stored records of one sheet of a conversion.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		s.respondError(w, r, store.ErrNotConfigured, 0)
		return
	}

	id, err := conversionID(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	// chi routes on RawPath when the path needed escaping.
	sheet := chi.URLParam(r, "sheet")
	if r.URL.RawPath != "" {
		if sheet, err = url.PathUnescape(sheet); err != nil {
			s.respondError(w, r, fmt.Errorf("invalid option %q: %w", "sheet", err), 0)
			return
		}
	}

	records, err := s.importer.Records(r.Context(), id, sheet)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, records)
}

// handleDeleteConversion removes a stored conversion and its records.
func (s *Server) handleDeleteConversion(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		s.respondError(w, r, store.ErrNotConfigured, 0)
		return
	}

	id, err := conversionID(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	if err := s.importer.Delete(r.Context(), id); err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	logging.FromContext(logging.WithConversionID(r.Context(), id)).Info("conversion deleted")
	w.WriteHeader(http.StatusNoContent)
}

// conversionID parses the {id} route parameter.
func conversionID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid option %q: %w", "id", err)
	}
	return id, nil
}

// readUpload reads the "file" field of a multipart form, enforcing the
// configured size limit.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	maxSize := s.cfg.Convert.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("file too large: limit is %d bytes", maxSize)
		}
		return nil, fmt.Errorf("no file provided: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("no file provided: %w", err)
	}
	defer file.Close()

	if header.Size > maxSize {
		return nil, fmt.Errorf("file too large: %d bytes exceeds limit of %d", header.Size, maxSize)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return &upload{name: header.Filename, data: data}, nil
}

// convert runs one conversion while holding a limiter slot.
func (s *Server) convert(ctx context.Context, up *upload, opts core.Options) (*core.Output, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	start := time.Now()
	wb, err := workbook.OpenBytes(up.data, up.name, s.readOpts)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	out, err := core.SelectAndProcess(ctx, wb, opts)
	if err != nil {
		return nil, err
	}

	if !out.IsListing() {
		logging.FromContext(ctx).Info("conversion completed",
			"file", up.name,
			"size", len(up.data),
			"sheets", len(out.Result.Sheets),
			"records", out.Result.RowCount(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return out, nil
}

// parseOptions overlays form values on defaults. Recognised fields: sheet,
// all_sheets, list_sheets, header, add_id, camel_case, pretty. A boolean
// field sent more than once takes its last value, so a checkbox can follow a
// hidden "false" input of the same name.
func parseOptions(r *http.Request, defaults core.Options) (core.Options, error) {
	opts := defaults
	opts.Sheet = strings.TrimSpace(r.FormValue("sheet"))

	flags := []struct {
		name string
		dst  *bool
	}{
		{"all_sheets", &opts.AllSheets},
		{"list_sheets", &opts.ListSheets},
		{"add_id", &opts.AddID},
		{"camel_case", &opts.CamelCase},
		{"pretty", &opts.Pretty},
	}
	for _, f := range flags {
		raw := lastFormValue(r, f.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return core.Options{}, fmt.Errorf("invalid option %q: %w", f.name, err)
		}
		*f.dst = v
	}

	if raw := r.FormValue("header"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return core.Options{}, fmt.Errorf("invalid option %q: must be a non-negative integer", "header")
		}
		opts.HeaderRow = n
	}

	return opts, nil
}

// lastFormValue returns the last value submitted for name, or "".
func lastFormValue(r *http.Request, name string) string {
	if r.Form == nil {
		_ = r.ParseMultipartForm(multipartMemory)
	}
	values := r.Form[name]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[len(values)-1])
}

func asSheetNotFound(err error) (*core.SheetNotFoundError, bool) {
	var notFound *core.SheetNotFoundError
	ok := errors.As(err, &notFound)
	return notFound, ok
}
