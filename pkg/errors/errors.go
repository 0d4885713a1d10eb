package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrDataInvalid marks a dataset that cannot be trained on.
	ErrDataInvalid = errors.New("invalid dataset")
	// ErrIO marks filesystem failures while reading or writing artifacts.
	ErrIO = errors.New("io failure")
	// ErrArtifactCorrupt is an ErrIO subtype for unreadable artifact contents.
	ErrArtifactCorrupt = fmt.Errorf("%w: artifact corrupt", ErrIO)

	ErrServiceUnavailable = errors.New("service unavailable")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInternal           = errors.New("internal error")
	ErrTimeout            = errors.New("operation timed out")
	ErrNotFound           = errors.New("not found")
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

// Data wraps a dataset failure as a 400-class error.
func Data(format string, args ...any) *AppError {
	return Newf(ErrDataInvalid, http.StatusBadRequest, format, args...)
}

// IO wraps a filesystem failure, keeping the cause reachable via errors.Is.
func IO(cause error, format string, args ...any) error {
	return fmt.Errorf("%w: %w", Newf(ErrIO, http.StatusInternalServerError, format, args...), cause)
}

// Corrupt reports an artifact whose contents fail validation.
func Corrupt(format string, args ...any) *AppError {
	return Newf(ErrArtifactCorrupt, http.StatusInternalServerError, format, args...)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrDataInvalid):
		return http.StatusBadRequest
	case errors.Is(err, ErrServiceUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
