package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrConfiguration = errors.New("server configuration error")
	ErrUpstream      = errors.New("upstream request failed")
	ErrTransport     = errors.New("upstream transport failure")
	ErrTimeout       = errors.New("operation timed out")
	ErrCircuitOpen   = errors.New("upstream circuit open")
	ErrCanceled      = errors.New("request canceled")
	ErrInternal      = errors.New("internal error")
)

// StatusClientClosedRequest is reported when the caller went away before
// the upstream answered. Nothing is normally left to read it.
const StatusClientClosedRequest = 499

// AppError carries the status code and the client-safe message for a
// failure. Detail is optional diagnostic text that is safe to show callers.
type AppError struct {
	Err        error
	Message    string
	Detail     string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Canceled reports that the caller's own context ended. The result matches
// both ErrCanceled and cause under errors.Is.
func Canceled(cause error) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %w", ErrCanceled, cause),
		Message:    "request canceled",
		StatusCode: StatusClientClosedRequest,
	}
}

// WithDetail returns a copy of e carrying detail.
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrCanceled):
		return StatusClientClosedRequest
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message that may be shown to API callers. Errors
// that are not AppErrors never leak their text.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}
