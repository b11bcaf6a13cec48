// Package apperr defines the error taxonomy shared by the domain and the
// transport. Each error carries a Kind, a message that is safe to show to
// API callers and an optional internal detail that only goes to the logs.
package apperr

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
)

// Kind classifies an application error.
type Kind int

const (
	// KindInternal is used for errors that carry no classification.
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindPermissionDenied
	KindNotFound
	KindDataAccess
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindPermissionDenied:
		return "permission_denied"
	case KindNotFound:
		return "not_found"
	case KindDataAccess:
		return "data_access"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code for the kind. Permission failures
// answer 401, matching the public API clients already rely on.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated, KindPermissionDenied:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Common user-facing messages.
const (
	MsgMissingParameters       = "Missing parameters"
	MsgInsufficientPermissions = "Insufficient permissions"
	MsgProcedureError          = "Database procedure error"
	MsgUnauthorized            = "Unauthorized"
	MsgInternal                = "Internal server error"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	// Detail is internal context for logs. It is never sent to callers.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Message, e.Detail, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Detail != "":
		return e.Message + ": " + e.Detail
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind and message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// Validation returns a bad-input error.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Validationf is Validation with an internal detail.
func Validationf(msg, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: msg, Detail: fmt.Sprintf(format, args...)}
}

// MissingParameters is the validation error for absent required fields.
func MissingParameters(field string) *Error {
	return &Error{Kind: KindValidation, Message: MsgMissingParameters, Detail: "missing " + field}
}

// Unauthenticated returns an identity failure wrapping cause.
func Unauthenticated(cause error) *Error {
	return &Error{Kind: KindUnauthenticated, Message: MsgUnauthorized, Err: cause}
}

// PermissionDenied returns the authorization failure for detail.
func PermissionDenied(detail string) *Error {
	return &Error{Kind: KindPermissionDenied, Message: MsgInsufficientPermissions, Detail: detail}
}

// NotFound returns a not-found error with a user-facing message.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// DataAccess wraps a data layer fault. The caller only ever sees
// MsgProcedureError.
func DataAccess(detail string, cause error) *Error {
	return &Error{Kind: KindDataAccess, Message: MsgProcedureError, Detail: detail, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Public returns the status code and the caller-safe message for err.
// Unclassified errors are reported as generic internal failures.
func Public(err error) (int, string) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind.Status(), e.Message
	}
	return http.StatusInternalServerError, MsgInternal
}
