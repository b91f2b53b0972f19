// Package handler implements the REST endpoints of the editor API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/matthewbaird/adops/internal/ctxlog"
	"github.com/matthewbaird/adops/internal/editor"
)

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ctxlog.FromContext(r.Context()).Warn("writeJSON encode error", "error", err)
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, r, status, errorBody{Error: message, Code: code})
}

// decodeJSON decodes the request body into v. An empty body leaves v as is.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// statusFor maps an editor error code to an HTTP status.
var statusFor = map[string]int{
	editor.CodeInvariantViolation: http.StatusConflict,
	editor.CodeValidation:         http.StatusUnprocessableEntity,
	editor.CodeNotFound:           http.StatusNotFound,
	editor.CodeInvalidRequest:     http.StatusBadRequest,
	editor.CodeResolution:         http.StatusBadGateway,
}

// domainErrorToHTTP maps editor, taxonomy and tree errors to HTTP responses.
func domainErrorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	code := editor.ErrorCode(err)
	status, ok := statusFor[code]
	if !ok {
		ctxlog.FromContext(r.Context()).Error("internal error", "error", err)
		writeError(w, r, http.StatusInternalServerError, editor.CodeInternal, "internal server error")
		return
	}

	body := errorBody{Error: err.Error(), Code: code}
	var verr *editor.ValidationError
	if errors.As(err, &verr) {
		body.Field = verr.Field
	}
	writeJSON(w, r, status, body)
}

// parseLimit reads a positive "limit" query parameter, capped at max.
func parseLimit(r *http.Request, def, max int) int {
	n := def
	if v := r.URL.Query().Get("limit"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			n = p
		}
	}
	if n > max {
		n = max
	}
	return n
}
