// Package apperror provides structured error handling for the label pipeline.
// Fatal errors abort the run; degraded errors are logged and substituted by the
// component that caught them.
package apperror

import (
	"errors"
	"fmt"
)

// Error codes
const (
	// Infrastructure errors
	CodeInternal = "INTERNAL_ERROR"

	// Configuration errors
	CodeConfig        = "CONFIG_ERROR"
	CodeMissingColumn = "MISSING_COLUMN"

	// Collaborator errors
	CodeAcquisition      = "ACQUISITION_ERROR"
	CodeDownloadNotFound = "DOWNLOAD_NOT_FOUND"
	CodeDelivery         = "DELIVERY_ERROR"

	// Rendering errors
	CodeRender = "RENDER_ERROR"
)

// Severity tells the caller whether the run can continue.
type Severity string

const (
	SeverityFatal    Severity = "fatal"
	SeverityDegraded Severity = "degraded"
)

// AppError is the standard error type for the pipeline.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string

	// Message is a human-readable error description
	Message string

	// Details contains additional context (column, branch, file, etc.)
	Details map[string]any

	Severity Severity

	// Err is the underlying error
	Err error
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewConfig creates a fatal configuration error.
func NewConfig(message string) *AppError {
	return &AppError{
		Code:     CodeConfig,
		Message:  message,
		Severity: SeverityFatal,
	}
}

// NewMissingColumn is returned when a required column is absent from an export.
func NewMissingColumn(column string) *AppError {
	return &AppError{
		Code:     CodeMissingColumn,
		Message:  fmt.Sprintf("column %q not found", column),
		Severity: SeverityFatal,
		Details:  map[string]any{"column": column},
	}
}

// NewAcquisition creates a fatal error raised while driving the ERP session.
func NewAcquisition(step string, err error) *AppError {
	return &AppError{
		Code:     CodeAcquisition,
		Message:  fmt.Sprintf("erp step %q failed", step),
		Severity: SeverityFatal,
		Details:  map[string]any{"step": step},
		Err:      err,
	}
}

// NewDownloadNotFound is returned when an expected download never lands on disk.
func NewDownloadNotFound(ext, dir string) *AppError {
	return &AppError{
		Code:     CodeDownloadNotFound,
		Message:  fmt.Sprintf("no .%s file found after download", ext),
		Severity: SeverityFatal,
		Details:  map[string]any{"extension": ext, "dir": dir},
	}
}

// NewRender creates a degraded error for a single label element.
func NewRender(element string, err error) *AppError {
	return &AppError{
		Code:     CodeRender,
		Message:  fmt.Sprintf("failed to render %s", element),
		Severity: SeverityDegraded,
		Err:      err,
	}
}

// NewDelivery creates a degraded error for a single recipient.
func NewDelivery(recipient string, err error) *AppError {
	return &AppError{
		Code:     CodeDelivery,
		Message:  "failed to deliver message",
		Severity: SeverityDegraded,
		Details:  map[string]any{"recipient": recipient},
		Err:      err,
	}
}

// NewInternal creates a fatal internal error.
func NewInternal(err error) *AppError {
	return &AppError{
		Code:     CodeInternal,
		Message:  "internal error",
		Severity: SeverityFatal,
		Err:      err,
	}
}

// --- Helper functions ---

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsFatal reports whether err must abort the run. Errors that are not AppError
// are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr.Severity != SeverityDegraded
	}
	return true
}

// IsMissingColumn checks if error is CodeMissingColumn
func IsMissingColumn(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeMissingColumn
	}
	return false
}

// IsConfig checks if error is CodeConfig
func IsConfig(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeConfig
	}
	return false
}
