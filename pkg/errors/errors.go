// Package errors defines the sentinel errors shared by the discovery service
// and maps them onto HTTP status codes.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrStoreUnavailable means the record store could not be reached or a
	// query against it failed. It is fatal to the current call.
	ErrStoreUnavailable = errors.New("record store unavailable")
	// ErrCacheUnavailable means the cache store could not be reached. It is
	// always absorbed by the cache layer and never reaches a caller.
	ErrCacheUnavailable = errors.New("cache store unavailable")
	// ErrCacheCorrupt means a cached value failed to decode or validate.
	ErrCacheCorrupt     = errors.New("cache entry corrupt")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrTimeout          = errors.New("operation timed out")
	ErrInternal         = errors.New("internal error")
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

// InvalidParameter builds a 400 AppError for a rejected caller argument.
func InvalidParameter(format string, args ...any) *AppError {
	return Newf(ErrInvalidParameter, http.StatusBadRequest, format, args...)
}

// StoreUnavailable wraps a record store failure. Deadline expiry is reported
// as ErrTimeout as well so callers can tell slow stores from broken ones.
func StoreUnavailable(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w: %w", op, ErrStoreUnavailable, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
