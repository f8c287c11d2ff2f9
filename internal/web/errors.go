package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err, statusCode); status 0 derives it from the error
//  3. Error is mapped via core.MapError to get a user-friendly message
//  4. Technical error is logged with the request id for correlation
//  5. User message is rendered as an HTML fragment for the upload page
//     (HX-Request) or as JSON for everything else

import (
	"encoding/json"
	"net/http"

	"github.com/JonMunkholm/sheetjson/internal/core"
	"github.com/JonMunkholm/sheetjson/internal/logging"
	"github.com/JonMunkholm/sheetjson/internal/web/templates"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error     string   `json:"error"`
	Message   string   `json:"message"`
	Action    string   `json:"action,omitempty"`
	Code      string   `json:"code"`
	Available []string `json:"available,omitempty"` // Sheet names, for SHEET001
}

// respondError logs err and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userErr := core.NewUserError(err)
	userMsg := userErr.User
	if statusCode == 0 {
		statusCode = statusForCode(userMsg.Code)
	}

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", userErr.Technical.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request rejected", attrs...)
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(statusCode)
		if err := templates.ErrorAlert(userMsg.Message, userMsg.Action, userMsg.Code).Render(r.Context(), w); err != nil {
			logger.Error("render error alert", "error", err)
		}
		return
	}

	resp := ErrorResponse{
		Error:   err.Error(),
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	}
	if !core.IsUserFacing(err) {
		// Internal details stay in the log.
		resp.Error = userErr.Error()
	}
	if notFound, ok := asSheetNotFound(err); ok {
		resp.Available = notFound.Available
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("json encode error", "error", err)
	}
}

// statusForCode maps an error code to an HTTP status.
func statusForCode(code string) int {
	switch code {
	case "SHEET001", "DB004":
		return http.StatusNotFound
	case "SHEET002", "FILE003", "FILE007":
		return http.StatusUnprocessableEntity
	case "FILE001":
		return http.StatusRequestEntityTooLarge
	case "FILE002":
		return http.StatusUnsupportedMediaType
	case "FILE004", "CONV004":
		return http.StatusBadRequest
	case "CONV001", "DB002":
		return http.StatusServiceUnavailable
	case "CONV003":
		return http.StatusGatewayTimeout
	case "DB001":
		return http.StatusConflict
	case "DB003":
		return http.StatusNotImplemented
	case "AUTH001":
		return http.StatusUnauthorized
	case "AUTH002":
		return http.StatusForbidden
	case "RATE001":
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}

// isHTMX checks if the request comes from the upload page script.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
