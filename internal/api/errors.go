package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/finance-coach/internal/errors"
	"github.com/finance-coach/internal/logging"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondServiceError maps a service error onto its status code. Server-side
// failures are logged with their cause; the client only sees the message.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	catErr := apperrors.Categorize(err)
	if !apperrors.IsUserError(catErr) {
		logging.FromContext(r.Context()).WithError(err).WithField("code", catErr.Code).Error("Request failed")
	}
	respondError(w, catErr.StatusCode, catErr.Code, catErr.Message)
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// Common error codes
const (
	ErrCodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	ErrCodeInternalError   = "INTERNAL_ERROR"
	ErrCodeRateLimited     = "RATE_LIMIT_EXCEEDED"
)
