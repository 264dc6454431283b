package apperror

import (
	"errors"
	"net/http"
)

// Kind classifies an error independently of the transport that reports it.
type Kind string

const (
	KindValidation            Kind = "validation_failed"
	KindNotFound              Kind = "not_found"
	KindForbidden             Kind = "forbidden"
	KindCapacityExceeded      Kind = "capacity_exceeded"
	KindOutsideOperatingHours Kind = "outside_operating_hours"
	KindSlotUnavailable       Kind = "slot_unavailable"
	KindAlreadyCancelled      Kind = "already_cancelled"
	KindConflict              Kind = "conflict"
	KindInternal              Kind = "internal"
)

// AppError is a custom error type that includes an HTTP status code and an optional internal error code.
type AppError struct {
	Kind    Kind   // Domain classification
	Code    int    // HTTP Status Code (e.g., 400, 404)
	Message string // User-facing error message
	Err     error  // The underlying error, if any (not exposed to user)
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with a status code and message.
func New(code int, message string) *AppError {
	return &AppError{
		Kind:    kindFor(code),
		Code:    code,
		Message: message,
	}
}

// NewKind creates a new AppError of an explicit kind.
func NewKind(kind Kind, code int, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new AppError wrapping an existing error.
func Wrap(err error, code int, message string) *AppError {
	return &AppError{
		Kind:    kindFor(code),
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Detail returns an error of the same kind as sentinel carrying a more specific message.
// errors.Is(Detail(s, msg), s) holds.
func Detail(sentinel *AppError, message string) *AppError {
	return &AppError{
		Kind:    sentinel.Kind,
		Code:    sentinel.Code,
		Message: message,
		Err:     sentinel,
	}
}

// KindOf returns the Kind of the first AppError in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind != "" {
		return appErr.Kind
	}
	return KindInternal
}

func kindFor(code int) Kind {
	switch code {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusForbidden, http.StatusUnauthorized:
		return KindForbidden
	case http.StatusConflict:
		return KindConflict
	default:
		return KindInternal
	}
}
