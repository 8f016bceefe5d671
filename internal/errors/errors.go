package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Base error types
var (
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrTimeout            = errors.New("timeout")
	ErrCanceled           = errors.New("canceled")
	ErrInvalidImage       = errors.New("invalid image")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInternalError      = errors.New("internal error")
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypePrecondition ErrorType = "precondition"
	ErrorTypeRender       ErrorType = "render"
	ErrorTypeDecode       ErrorType = "decode"
	ErrorTypeCompose      ErrorType = "compose"
	ErrorTypeDeliver      ErrorType = "deliver"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeCanceled     ErrorType = "canceled"
	ErrorTypeInternal     ErrorType = "internal"
)

// ExportError is a structured error for export operations
type ExportError struct {
	Type      ErrorType
	Op        string // Operation that failed (e.g., "export_pdf", "rasterize")
	Format    string // Output format if applicable
	Reason    string // Human readable precondition, if any
	Err       error  // Underlying error
	Timestamp time.Time
	Retryable bool
}

func (e *ExportError) Error() string {
	detail := e.Reason
	if e.Err != nil {
		if detail != "" {
			detail += ": "
		}
		detail += e.Err.Error()
	}
	if e.Format != "" {
		return fmt.Sprintf("%s (%s) failed: %s", e.Op, e.Format, detail)
	}
	return fmt.Sprintf("%s failed: %s", e.Op, detail)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is interface
func (e *ExportError) Is(target error) bool {
	if target == nil {
		return false
	}

	switch target {
	case ErrPreconditionFailed:
		return e.Type == ErrorTypePrecondition
	case ErrTimeout:
		return e.Type == ErrorTypeTimeout
	case ErrCanceled:
		return e.Type == ErrorTypeCanceled
	case ErrInvalidImage:
		if e.Type == ErrorTypeDecode {
			return true
		}
	}

	return errors.Is(e.Err, target)
}

// NewExportError creates a new ExportError
func NewExportError(errorType ErrorType, op string, err error) *ExportError {
	return &ExportError{
		Type:      errorType,
		Op:        op,
		Err:       err,
		Timestamp: time.Now(),
		Retryable: isRetryable(errorType, err),
	}
}

// WithFormat adds the output format to the error
func (e *ExportError) WithFormat(format string) *ExportError {
	e.Format = format
	return e
}

// isRetryable determines if an error should be retried
func isRetryable(errorType ErrorType, err error) bool {
	switch errorType {
	case ErrorTypeTimeout, ErrorTypeDeliver:
		return true
	case ErrorTypePrecondition, ErrorTypeDecode, ErrorTypeCanceled:
		return false
	default:
		if err != nil {
			return !errors.Is(err, ErrInvalidInput)
		}
		return false
	}
}

// Helper functions

// Precondition reports an export that could not start, e.g. a chart that
// has not rendered yet.
func Precondition(op, reason string) error {
	e := NewExportError(ErrorTypePrecondition, op, nil)
	e.Reason = reason
	return e
}

// WrapContextError maps a context error to a timeout or cancellation.
func WrapContextError(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewExportError(ErrorTypeTimeout, op, err)
	default:
		return NewExportError(ErrorTypeCanceled, op, err)
	}
}

// IsPrecondition checks if an error is a precondition failure
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrPreconditionFailed)
}

// IsRetryableError checks if an error should be retried
func IsRetryableError(err error) bool {
	var expErr *ExportError
	if errors.As(err, &expErr) {
		return expErr.Retryable
	}
	return errors.Is(err, ErrTimeout)
}

// Reason returns the precondition reason of err, if any.
func Reason(err error) string {
	var expErr *ExportError
	if errors.As(err, &expErr) && expErr.Reason != "" {
		return expErr.Reason
	}
	if err == nil {
		return ""
	}
	return strings.TrimSpace(err.Error())
}
