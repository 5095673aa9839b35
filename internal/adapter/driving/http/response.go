package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ericfisherdev/wecomkit/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeText writes a plain body. The callback endpoints answer the platform
// with bare strings, not JSON.
func writeText(w http.ResponseWriter, status int, contentType, body string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// statusFor maps a domain error to an HTTP status code and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrSignatureMismatch):
		return http.StatusForbidden, "signature mismatch"
	case errors.Is(err, model.ErrDecryption):
		return http.StatusBadRequest, "decryption failed"
	case errors.Is(err, model.ErrMalformedInput):
		return http.StatusBadRequest, "malformed request"
	case errors.Is(err, model.ErrScopeNotConfigured):
		return http.StatusServiceUnavailable, "secret scope not configured"
	case errors.Is(err, model.ErrCredentialFetch):
		return http.StatusBadGateway, "credential fetch failed"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
