package apperr

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Body is the JSON error envelope returned to clients.
type Body struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
}

// Status maps a Kind to its HTTP status code.
func Status(kind Kind) int {
	switch kind {
	case InvalidAssertion, ValidationFailure, EmailConflict:
		return http.StatusBadRequest
	case AccountInactive, Unauthenticated, TokenExpired, TokenInvalid:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case RateLimited:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// BodyOf builds the client-facing body for err. Unclassified errors and
// InternalError never expose their detail.
func BodyOf(err error) Body {
	var e *Error
	if !errors.As(err, &e) || e.Kind == InternalError {
		return Body{Message: "Internal server error"}
	}
	return Body{Message: e.Message, Code: e.Code, Field: e.Field}
}

// Write writes err as a JSON error response.
func Write(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(Status(KindOf(err)))
	_ = json.NewEncoder(w).Encode(BodyOf(err))
}
