// Package apperr defines the error taxonomy shared by the identity, session,
// directory and guard components.
//
// Every error that should reach a client is an *Error carrying a Kind. The
// HTTP layer maps the Kind to a status code; anything that is not an *Error
// is treated as an internal failure and its detail is never returned.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the boundary.
type Kind string

const (
	InvalidAssertion  Kind = "InvalidAssertion"
	AccountInactive   Kind = "AccountInactive"
	Unauthenticated   Kind = "Unauthenticated"
	TokenExpired      Kind = "TokenExpired"
	TokenInvalid      Kind = "TokenInvalid"
	EmailConflict     Kind = "EmailConflict"
	NotFound          Kind = "NotFound"
	ValidationFailure Kind = "ValidationFailure"
	Forbidden         Kind = "Forbidden"
	RateLimited       Kind = "RateLimited"
	InternalError     Kind = "InternalError"
)

// Stable machine-readable codes.
const (
	CodeUserInactive  = "USER_INACTIVE"
	CodeEmailConflict = "EMAIL_CONFLICT"
)

// Error is a classified error.
type Error struct {
	Kind    Kind
	Message string
	Code    string // machine-readable, optional
	Field   string // offending input field, optional
	Err     error  // underlying cause, never shown to clients
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind, so errors.Is(err, &Error{Kind: NotFound})
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// New returns an *Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap returns an *Error of the given kind with an underlying cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Inactive is the error for a deactivated account. It always carries
// CodeUserInactive so clients can react to deactivation specifically.
func Inactive(msg string) *Error {
	return &Error{Kind: AccountInactive, Message: msg, Code: CodeUserInactive}
}

// Conflict is the error for an email already held by another principal.
func Conflict() *Error {
	return &Error{Kind: EmailConflict, Message: "Email already exists", Code: CodeEmailConflict, Field: "email"}
}

// Invalid is a validation failure on a single input field.
func Invalid(field, msg string) *Error {
	return &Error{Kind: ValidationFailure, Message: msg, Field: field}
}

// KindOf returns the Kind of err, or InternalError if err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return InternalError
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
