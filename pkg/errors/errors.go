package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrMalformedMarkup  = errors.New("malformed markup")
	ErrInvalidQuery     = errors.New("invalid query")
	ErrStaleHit         = errors.New("stale hit")
	ErrIndexUnavailable = errors.New("index unavailable")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
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

// NotFoundf builds a 404 AppError wrapping ErrNotFound.
func NotFoundf(format string, args ...any) *AppError {
	return Newf(ErrNotFound, http.StatusNotFound, format, args...)
}

// Kind returns the short name of the sentinel err wraps, for logs and JSON
// error bodies.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrMalformedMarkup):
		return "malformed_markup"
	case errors.Is(err, ErrInvalidQuery):
		return "invalid_query"
	case errors.Is(err, ErrStaleHit):
		return "stale_hit"
	case errors.Is(err, ErrIndexUnavailable):
		return "index_unavailable"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "internal"
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidQuery), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrMalformedMarkup):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrStaleHit):
		return http.StatusConflict
	case errors.Is(err, ErrIndexUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
