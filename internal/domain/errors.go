package domain

import (
	"errors"
	"fmt"
)

// Error codes. The HTTP layer maps each to a status.
const (
	EINVALID      = "invalid"
	EUNAUTHORIZED = "unauthorized"
	ENOTFOUND     = "not_found"
	ECONFLICT     = "conflict"
	ETOOLARGE     = "too_large"
	ERATELIMIT    = "rate_limit"
	ESTORE        = "store"       // the database refused a write; its message is shown
	EUNAVAILABLE  = "unavailable" // geocoder, router or bucket failed
	EINTERNAL     = "internal"
)

const internalMessage = "An internal error occurred. Please try again later."

// Error is the application error carried from services to handlers.
// Message is safe to show to the caller except for EINTERNAL.
type Error struct {
	Code    string
	Op      string // e.g. "LocationService.Create"
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return e.Op + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code, op, message string, cause error) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: cause}
}

func Errorf(code, op, format string, args ...any) *Error {
	return newError(code, op, fmt.Sprintf(format, args...), nil)
}

func NotFound(op, resource, id string) *Error {
	return Errorf(ENOTFOUND, op, "%s with ID %q not found", resource, id)
}

func Invalid(op, message string) *Error { return newError(EINVALID, op, message, nil) }

func Unauthorized(op, message string) *Error { return newError(EUNAUTHORIZED, op, message, nil) }

func Conflict(op, message string) *Error { return newError(ECONFLICT, op, message, nil) }

func TooLarge(op, message string) *Error { return newError(ETOOLARGE, op, message, nil) }

func RateLimit(op string) *Error {
	return newError(ERATELIMIT, op, "Too many requests. Please try again later.", nil)
}

// Internal hides cause from the caller but keeps it for logging and errors.Is.
func Internal(cause error, op, message string) *Error {
	return newError(EINTERNAL, op, message, cause)
}

// Store reports a rejected database operation with the driver's message,
// so constraint violations reach the admin verbatim.
func Store(cause error, op string) *Error {
	return newError(ESTORE, op, cause.Error(), cause)
}

func Unavailable(cause error, op, message string) *Error {
	return newError(EUNAVAILABLE, op, message, cause)
}

// ErrorCode returns the code of the first *Error in err's chain. A
// ValidationError anywhere in the chain is EINVALID; anything else EINTERNAL.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if ve := (*ValidationError)(nil); errors.As(err, &ve) {
		return EINVALID
	}
	if e := (*Error)(nil); errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns what may be shown to the caller.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if ve := (*ValidationError)(nil); errors.As(err, &ve) {
		return ve.First()
	}
	if e := (*Error)(nil); errors.As(err, &e) && e.Code != EINTERNAL {
		return e.Message
	}
	return internalMessage
}

func ErrorOp(err error) string {
	if e := (*Error)(nil); errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// ValidationError collects per-field messages. Order keeps the sequence in
// which fields first failed; the first one is what the caller sees.
type ValidationError struct {
	Op     string
	Fields map[string]string
	Order  []string
}

func (e *ValidationError) Error() string {
	return e.Op + ": validation failed"
}

func (e *ValidationError) First() string {
	if len(e.Order) == 0 {
		return "validation failed"
	}
	return e.Fields[e.Order[0]]
}

func NewValidationError(op, field, message string) *ValidationError {
	return &ValidationError{
		Op:     op,
		Fields: map[string]string{field: message},
		Order:  []string{field},
	}
}

// AddFieldError records message for field on the ValidationError in err, or
// starts a new one. A repeated field keeps its position and takes the newer
// message.
func AddFieldError(err error, field, message string) *ValidationError {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return NewValidationError("", field, message)
	}
	if _, seen := ve.Fields[field]; !seen {
		ve.Order = append(ve.Order, field)
	}
	ve.Fields[field] = message
	return ve
}
