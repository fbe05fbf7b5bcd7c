// Package jsonio reads and writes JSON request and response bodies.
package jsonio

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dalemusser/dashhub/internal/app/system/apperr"
)

// MaxBody bounds request bodies.
const MaxBody = 64 << 10

// Decode reads r's body into v. A missing, oversized or malformed body is
// a ValidationFailure.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return apperr.New(apperr.ValidationFailure, "Request body is required.")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBody))
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperr.New(apperr.ValidationFailure, "Request body is required.")
		case errors.As(err, &tooBig):
			return apperr.New(apperr.ValidationFailure, "Request body is too large.")
		default:
			return apperr.Wrap(apperr.ValidationFailure, "Request body must be valid JSON.", err)
		}
	}
	return nil
}

// Write encodes v with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
