// Package httputil writes JSON responses and maps domain errors to HTTP
// status codes.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/nivekithan/gig-marketplace/internal/apperr"
)

// MaxBodyBytes caps every JSON request body.
const MaxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrInsufficientCredits):
		return http.StatusPaymentRequired
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as an ErrorResponse. Server faults are logged and
// their details hidden from the client.
func WriteError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := StatusFor(err)
	resp := ErrorResponse{Error: err.Error(), Code: apperr.Code(err)}
	var fe *apperr.FieldError
	if errors.As(err, &fe) {
		resp.Field = fe.Field
		resp.Error = fe.Message
	}
	if status >= http.StatusInternalServerError {
		if log != nil {
			log.Error("request failed", zap.Error(err), zap.String("code", resp.Code))
		}
		resp.Error = "internal server error"
		resp.Field = ""
	}
	WriteJSON(w, status, resp)
}

// WriteMessage writes a bare error body for failures outside the taxonomy,
// such as 401 and 429.
func WriteMessage(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

// ReadBody reads at most MaxBodyBytes of the request body.
func ReadBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		return nil, apperr.Field("body", apperr.ErrValidation, "request body is too large or unreadable")
	}
	return body, nil
}
