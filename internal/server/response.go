package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"venuerag/internal/domain"
	"venuerag/internal/validation"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(data)
}

func writeBadRequest(w http.ResponseWriter, message string, details map[string]string) error {
	return writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "bad_request",
		Message: message,
		Details: details,
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrConfiguration), errors.Is(err, domain.ErrEmptyQuery):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, domain.ErrProvider):
		return http.StatusBadGateway, "provider_error"
	case errors.Is(err, domain.ErrData):
		return http.StatusUnprocessableEntity, "invalid_data"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(w http.ResponseWriter, err error) error {
	var verr *validation.Error
	if errors.As(err, &verr) {
		return writeBadRequest(w, "validation failed", verr.Fields)
	}
	status, code := statusFor(err)
	return writeJSON(w, status, ErrorResponse{Error: code, Message: err.Error()})
}
