package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sheetjson/internal/config"
	"github.com/JonMunkholm/sheetjson/internal/core"
	"github.com/JonMunkholm/sheetjson/internal/store"
)

const peopleCSV = "First Name,Last-Name,Age\nAnn,Lee,30\n,,\nBob,Ray,\n"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, RequestTimeout: 10 * time.Second, ShutdownTimeout: time.Second},
		Convert: config.ConvertConfig{
			MaxFileSize:   1 << 20,
			MaxConcurrent: 2,
			MaxWaitTime:   50 * time.Millisecond,
			SheetWorkers:  2,
			CSVEncoding:   "utf-8",
		},
		Rate:    config.RateLimitConfig{Enabled: false},
		Logging: config.LoggingConfig{Level: "info", Format: "text"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, importer Importer) *Server {
	t.Helper()
	s := NewServer(cfg, importer)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

// multipartRequest builds a POST with an optional file part and form fields.
func multipartRequest(t *testing.T, path, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()

	pairs := make([][2]string, 0, len(fields))
	for k, v := range fields {
		pairs = append(pairs, [2]string{k, v})
	}
	return multipartRequestPairs(t, path, filename, content, pairs...)
}

// multipartRequestPairs is multipartRequest with ordered, repeatable fields.
func multipartRequestPairs(t *testing.T, path, filename string, content []byte, fields ...[2]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range fields {
		require.NoError(t, mw.WriteField(f[0], f[1]))
	}
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, body io.Reader) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp
}

func workbookBytes(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "Sales"))
	require.NoError(t, f.SetCellValue("Sales", "A1", "Region"))
	require.NoError(t, f.SetCellValue("Sales", "A2", "North"))
	_, err := f.NewSheet("Summary")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Summary", "A1", "Total"))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

type fakeImporter struct {
	source  string
	result  *core.Result
	err     error
	pingErr error

	records map[uuid.UUID]map[string][]json.RawMessage
	deleted []uuid.UUID
}

func (f *fakeImporter) Records(_ context.Context, id uuid.UUID, sheet string) ([]json.RawMessage, error) {
	sheets, ok := f.records[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, store.ErrConversionNotFound)
	}
	if recs, ok := sheets[sheet]; ok {
		return recs, nil
	}
	return []json.RawMessage{}, nil
}

func (f *fakeImporter) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.records[id]; !ok {
		return fmt.Errorf("%s: %w", id, store.ErrConversionNotFound)
	}
	delete(f.records, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeImporter) Import(_ context.Context, id uuid.UUID, source string, res *core.Result) (*store.ImportSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.source, f.result = source, res
	return &store.ImportSummary{
		ConversionID: id,
		Source:       source,
		Records:      int64(res.RowCount()),
		Sheets:       store.SheetCounts(res),
	}, nil
}

func (f *fakeImporter) Ping(context.Context) error { return f.pingErr }

func TestHealth(t *testing.T) {
	t.Run("without database", func(t *testing.T) {
		s := newTestServer(t, testConfig(), nil)
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok","database":"disabled","conversions":{"active":0,"available":2,"max_concurrent":2}}`, rec.Body.String())
	})

	t.Run("database down", func(t *testing.T) {
		s := newTestServer(t, testConfig(), &fakeImporter{pingErr: errors.New("connection refused")})
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"database":"unavailable"`)
		assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
	})
}

func TestIndex(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sheet to JSON")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestConvert(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	req := multipartRequest(t, "/api/convert", "people.csv", []byte(peopleCSV), map[string]string{
		"camel_case": "true",
		"add_id":     "true",
	})
	rec := serve(s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `[
		{"id":0,"firstName":"Ann","lastName":"Lee","age":30},
		{"id":1,"firstName":"Bob","lastName":"Ray","age":null}
	]`, rec.Body.String())

	_, err := uuid.Parse(rec.Header().Get("X-Conversion-ID"))
	assert.NoError(t, err)
}

func TestConvert_AllSheetsXLSX(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	req := multipartRequest(t, "/api/convert", "book.xlsx", workbookBytes(t), map[string]string{
		"all_sheets": "true",
		"camel_case": "true",
	})
	rec := serve(s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"Sales":[{"region":"North"}],"Summary":[]}`, rec.Body.String())
}

func TestConvert_Errors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		fields   map[string]string
		status   int
		code     string
	}{
		{
			name:     "unknown sheet",
			filename: "people.csv",
			content:  []byte(peopleCSV),
			fields:   map[string]string{"sheet": "Q1"},
			status:   http.StatusNotFound,
			code:     "SHEET001",
		},
		{
			name:     "unsupported format",
			filename: "report.pdf",
			content:  []byte("%PDF"),
			status:   http.StatusUnsupportedMediaType,
			code:     "FILE002",
		},
		{
			name:   "no file",
			fields: map[string]string{"sheet": "Sheet1"},
			status: http.StatusBadRequest,
			code:   "FILE004",
		},
		{
			name:     "bad header option",
			filename: "people.csv",
			content:  []byte(peopleCSV),
			fields:   map[string]string{"header": "-1"},
			status:   http.StatusBadRequest,
			code:     "CONV004",
		},
		{
			name:     "bad boolean option",
			filename: "people.csv",
			content:  []byte(peopleCSV),
			fields:   map[string]string{"camel_case": "maybe"},
			status:   http.StatusBadRequest,
			code:     "CONV004",
		},
		{
			name:     "empty csv",
			filename: "empty.csv",
			content:  []byte{},
			status:   http.StatusUnprocessableEntity,
			code:     "SHEET002",
		},
		{
			name:     "corrupt workbook",
			filename: "broken.xlsx",
			content:  []byte("not a zip"),
			status:   http.StatusUnprocessableEntity,
			code:     "FILE007",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig(), nil)
			rec := serve(s, multipartRequest(t, "/api/convert", tt.filename, tt.content, tt.fields))

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			resp := decodeError(t, rec.Body)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestConvert_SheetNotFoundListsAvailable(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	rec := serve(s, multipartRequest(t, "/api/convert", "book.xlsx", workbookBytes(t), map[string]string{"sheet": "Q1"}))

	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec.Body)
	assert.Equal(t, []string{"Sales", "Summary"}, resp.Available)
	assert.Contains(t, resp.Error, `sheet not found: "Q1"`)
}

func TestConvert_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Convert.MaxFileSize = 16

	s := newTestServer(t, cfg, nil)
	rec := serve(s, multipartRequest(t, "/api/convert", "people.csv", []byte(peopleCSV), nil))

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE001", decodeError(t, rec.Body).Code)
}

func TestConvert_Busy(t *testing.T) {
	cfg := testConfig()
	cfg.Convert.MaxConcurrent = 1

	s := newTestServer(t, cfg, nil)
	require.NoError(t, s.limiter.Acquire(context.Background()))
	defer s.limiter.Release()

	rec := serve(s, multipartRequest(t, "/api/convert", "people.csv", []byte(peopleCSV), nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "CONV001", decodeError(t, rec.Body).Code)
}

func TestConvert_HTMXError(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	req := multipartRequest(t, "/api/convert", "report.pdf", []byte("x"), nil)
	req.Header.Set("HX-Request", "true")

	rec := serve(s, req)

	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `role="alert"`)
	assert.Contains(t, rec.Body.String(), "FILE002")
}

func TestSheets(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	rec := serve(s, multipartRequest(t, "/api/sheets", "book.xlsx", workbookBytes(t), nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"file":"book.xlsx","sheets":["Sales","Summary"]}`, rec.Body.String())
}

func TestImport(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		s := newTestServer(t, testConfig(), nil)
		rec := serve(s, multipartRequest(t, "/api/import", "people.csv", []byte(peopleCSV), nil))

		require.Equal(t, http.StatusNotImplemented, rec.Code)
		assert.Equal(t, "DB003", decodeError(t, rec.Body).Code)
	})

	t.Run("stores result", func(t *testing.T) {
		imp := &fakeImporter{}
		s := newTestServer(t, testConfig(), imp)
		rec := serve(s, multipartRequest(t, "/api/import", "people.csv", []byte(peopleCSV), map[string]string{
			"all_sheets": "true",
		}))

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, "people.csv", imp.source)
		require.NotNil(t, imp.result)
		assert.True(t, imp.result.Keyed)
		assert.Equal(t, 2, imp.result.RowCount())

		var summary store.ImportSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
		assert.Equal(t, int64(2), summary.Records)
		assert.Equal(t, map[string]int{"Sheet1": 2}, summary.Sheets)
	})

	t.Run("duplicate import", func(t *testing.T) {
		imp := &fakeImporter{err: errors.New("ERROR: duplicate key value violates unique constraint")}
		s := newTestServer(t, testConfig(), imp)
		rec := serve(s, multipartRequest(t, "/api/import", "people.csv", []byte(peopleCSV), nil))

		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "DB001", decodeError(t, rec.Body).Code)
	})

	t.Run("api key required", func(t *testing.T) {
		cfg := testConfig()
		cfg.Security.APIKeys = []string{"secret"}
		s := newTestServer(t, cfg, &fakeImporter{})

		rec := serve(s, multipartRequest(t, "/api/import", "people.csv", []byte(peopleCSV), nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "AUTH001", decodeError(t, rec.Body).Code)

		req := multipartRequest(t, "/api/import", "people.csv", []byte(peopleCSV), nil)
		req.Header.Set("X-API-Key", "secret")
		rec = serve(s, req)
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})
}

func TestConvert_UncheckedOptionOverridesDefault(t *testing.T) {
	cfg := testConfig()
	cfg.Convert.CamelCase = true
	cfg.Convert.AddID = true
	s := newTestServer(t, cfg, nil)

	// camel_case unchecked submits only the hidden "false"; add_id checked
	// submits "false" then "true".
	req := multipartRequestPairs(t, "/api/convert", "people.csv", []byte(peopleCSV),
		[2]string{"camel_case", "false"},
		[2]string{"add_id", "false"},
		[2]string{"add_id", "true"},
	)
	rec := serve(s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `[
		{"id":0,"First Name":"Ann","Last-Name":"Lee","Age":30},
		{"id":1,"First Name":"Bob","Last-Name":"Ray","Age":null}
	]`, rec.Body.String())
}

func TestConversions(t *testing.T) {
	known := uuid.New()
	newImporter := func() *fakeImporter {
		return &fakeImporter{records: map[uuid.UUID]map[string][]json.RawMessage{
			known: {"Sales": {
				json.RawMessage(`{"id":0,"region":"North"}`),
				json.RawMessage(`{"id":1,"region":"South"}`),
			}},
		}}
	}

	t.Run("records in stored order", func(t *testing.T) {
		s := newTestServer(t, testConfig(), newImporter())
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/conversions/"+known.String()+"/sheets/Sales", nil))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, `[{"id":0,"region":"North"},{"id":1,"region":"South"}]`+"\n", rec.Body.String())
	})

	t.Run("escaped sheet name", func(t *testing.T) {
		imp := newImporter()
		imp.records[known]["Q1 Sales"] = []json.RawMessage{json.RawMessage(`{"total":3}`)}
		s := newTestServer(t, testConfig(), imp)
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/conversions/"+known.String()+"/sheets/Q1%20Sales", nil))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `[{"total":3}]`, rec.Body.String())
	})

	t.Run("sheet name with slash and percent", func(t *testing.T) {
		imp := newImporter()
		imp.records[known]["Q1/100%"] = []json.RawMessage{json.RawMessage(`{"total":4}`)}
		s := newTestServer(t, testConfig(), imp)
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/conversions/"+known.String()+"/sheets/Q1%2F100%25", nil))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `[{"total":4}]`, rec.Body.String())
	})

	t.Run("unknown sheet is empty", func(t *testing.T) {
		s := newTestServer(t, testConfig(), newImporter())
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/conversions/"+known.String()+"/sheets/Other", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("unknown conversion", func(t *testing.T) {
		s := newTestServer(t, testConfig(), newImporter())
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/conversions/"+uuid.NewString()+"/sheets/Sales", nil))

		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "DB004", decodeError(t, rec.Body).Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		s := newTestServer(t, testConfig(), newImporter())
		rec := serve(s, httptest.NewRequest(http.MethodDelete, "/api/conversions/not-a-uuid", nil))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "CONV004", decodeError(t, rec.Body).Code)
	})

	t.Run("delete", func(t *testing.T) {
		imp := newImporter()
		s := newTestServer(t, testConfig(), imp)

		rec := serve(s, httptest.NewRequest(http.MethodDelete, "/api/conversions/"+known.String(), nil))
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		assert.Equal(t, []uuid.UUID{known}, imp.deleted)

		rec = serve(s, httptest.NewRequest(http.MethodDelete, "/api/conversions/"+known.String(), nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "DB004", decodeError(t, rec.Body).Code)
	})

	t.Run("not configured", func(t *testing.T) {
		s := newTestServer(t, testConfig(), nil)
		rec := serve(s, httptest.NewRequest(http.MethodDelete, "/api/conversions/"+known.String(), nil))

		require.Equal(t, http.StatusNotImplemented, rec.Code)
		assert.Equal(t, "DB003", decodeError(t, rec.Body).Code)
	})

	t.Run("api key required", func(t *testing.T) {
		cfg := testConfig()
		cfg.Security.APIKeys = []string{"secret"}
		s := newTestServer(t, cfg, newImporter())

		rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/conversions/"+known.String()+"/sheets/Sales", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		req := httptest.NewRequest(http.MethodGet, "/api/conversions/"+known.String()+"/sheets/Sales", nil)
		req.Header.Set("X-API-Key", "wrong")
		rec = serve(s, req)
		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "AUTH002", decodeError(t, rec.Body).Code)
	})
}

func TestRespondError_HidesInternalDetails(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	s.respondError(rec, req, errors.New("pq: secret internal detail"), 0)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec.Body)
	assert.Equal(t, "ERR000", resp.Code)
	assert.Equal(t, "An unexpected error occurred", resp.Error)
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, ConvertLimit: 1}

	s := newTestServer(t, cfg, nil)

	first := serve(s, multipartRequest(t, "/api/convert", "people.csv", []byte(peopleCSV), nil))
	require.Equal(t, http.StatusOK, first.Code)

	second := serve(s, multipartRequest(t, "/api/convert", "people.csv", []byte(peopleCSV), nil))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "RATE001", decodeError(t, second.Body).Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))

	// Pages are only subject to the general limit.
	page := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, page.Code)
}

func TestRateLimiter_Window(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     2,
		window:   time.Minute,
		now:      func() time.Time { return now },
	}

	assert.True(t, rl.allow("1.2.3.4"))
	assert.True(t, rl.allow("1.2.3.4"))
	assert.False(t, rl.allow("1.2.3.4"))
	assert.True(t, rl.allow("5.6.7.8"), "limits are per client")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.allow("1.2.3.4"), "window reset")
}

func TestParseOptions(t *testing.T) {
	defaults := core.Options{CamelCase: true, HeaderRow: 1, Workers: 3}

	req := multipartRequest(t, "/api/convert", "", nil, map[string]string{
		"sheet":      "  Sales ",
		"camel_case": "false",
		"add_id":     "1",
		"header":     "0",
	})
	require.NoError(t, req.ParseMultipartForm(1<<20))

	opts, err := parseOptions(req, defaults)
	require.NoError(t, err)
	assert.Equal(t, core.Options{Sheet: "Sales", AddID: true, Workers: 3}, opts)
}
