// Package apperr defines the error taxonomy shared by the write-path
// services, the outbox dispatcher, and the ingress consumer.
package apperr

import "fmt"

// Kind classifies a failure so callers can branch without string matching.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindConflict   Kind = "conflict"
	KindValidation Kind = "validation"
	KindStorage    Kind = "storage"
	KindBus        Kind = "bus"
)

// Error wraps an underlying cause with a Kind.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func NotFound(msg string) *Error             { return newErr(KindNotFound, msg, nil) }
func Forbidden(msg string) *Error            { return newErr(KindForbidden, msg, nil) }
func Conflict(msg string) *Error             { return newErr(KindConflict, msg, nil) }
func Validation(msg string) *Error           { return newErr(KindValidation, msg, nil) }
func Storage(msg string, cause error) *Error { return newErr(KindStorage, msg, cause) }
func Bus(msg string, cause error) *Error     { return newErr(KindBus, msg, cause) }

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
