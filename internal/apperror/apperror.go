// Package apperror defines the tagged error type services return to the
// HTTP layer. Each error carries an explicit kind; the HTTP status mapping
// lives here so handlers never improvise status codes.
package apperror

import "net/http"

// Kind classifies a service failure.
type Kind int

const (
	// KindInvalidInput marks client-correctable input problems.
	KindInvalidInput Kind = iota + 1
	// KindInvalidCredentials covers both unknown username and wrong
	// password; callers must not be able to tell the two apart.
	KindInvalidCredentials
	// KindInvalidToken covers unknown, expired and already-consumed reset
	// tokens, again deliberately indistinguishable.
	KindInvalidToken
	// KindForbidden marks an authenticated caller lacking the required role.
	KindForbidden
	// KindConflict marks unique-constraint collisions on creation.
	KindConflict
	// KindInternal is surfaced to clients as a generic server error.
	KindInternal
)

// Error is a service-level failure with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// New constructs an Error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Internal returns the generic internal error. Details stay in the logs.
func Internal() *Error {
	return &Error{Kind: KindInternal, Message: "internal server error"}
}

// Status maps the error kind to an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindInvalidInput, KindInvalidToken, KindConflict:
		return http.StatusBadRequest
	case KindInvalidCredentials:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
