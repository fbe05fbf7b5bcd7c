// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/dalemusser/dashhub/internal/app/system/apperr"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrorLogger writes classified errors to clients and logs the ones that
// are server faults with enough request context to find them again.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger creates an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorLogger{log: logger}
}

// Log records err against r without writing a response.
func (e *ErrorLogger) Log(r *http.Request, msg string, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	)
	if apperr.KindOf(err) == apperr.InternalError {
		e.log.Error(msg, fields...)
		return
	}
	e.log.Debug(msg, fields...)
}

// Write logs err when it is internal and writes the JSON error body.
// msg names the operation that failed.
func (e *ErrorLogger) Write(w http.ResponseWriter, r *http.Request, msg string, err error, fields ...zap.Field) {
	e.Log(r, msg, err, fields...)
	apperr.Write(w, err)
}

// NotFound is the router's fallback for unknown paths.
func NotFound(w http.ResponseWriter, r *http.Request) {
	apperr.Write(w, apperr.New(apperr.NotFound, "Not found"))
}

// MethodNotAllowed is the router's fallback for a known path with the
// wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	_, _ = w.Write([]byte(`{"message":"Method not allowed"}` + "\n"))
}
