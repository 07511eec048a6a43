package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    "BAD_REQUEST",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// AuthRequired marks an operation that needs a valid session before it can
// run. It is user-actionable and must never be silently retried.
func AuthRequired(message string, err error) *AppError {
	return &AppError{
		Code:    "AUTH_REQUIRED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

// Network wraps a transient REST or transport failure. Recoverable.
func Network(message string, err error) *AppError {
	return &AppError{
		Code:    "NETWORK",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}

// NotReady is returned for sends attempted before a push connection has
// reached its open state.
func NotReady(message string) *AppError {
	return &AppError{
		Code:    "NOT_READY",
		Message: message,
		Status:  http.StatusConflict,
		Err:     nil,
	}
}

// Disconnected reports a remote close or transport error. Recoverable; the
// owning scope decides whether to re-mount.
func Disconnected(message string, err error) *AppError {
	return &AppError{
		Code:    "DISCONNECTED",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}

// StaleResponse marks a load or poll result that arrived after its request
// was superseded. Callers discard it silently.
func StaleResponse(message string) *AppError {
	return &AppError{
		Code:    "STALE_RESPONSE",
		Message: message,
		Status:  http.StatusConflict,
		Err:     nil,
	}
}

// MalformedPayload marks an unrecognized push frame. Logged and dropped.
func MalformedPayload(message string, err error) *AppError {
	return &AppError{
		Code:    "MALFORMED_PAYLOAD",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

func TooManyRequests(message string) *AppError {
	return &AppError{
		Code:    "TOO_MANY_REQUESTS",
		Message: message,
		Status:  http.StatusTooManyRequests,
		Err:     nil,
	}
}

func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
