// Package errors provides structured error types for edfparse.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryIO        ErrorCategory = "IO"
	ErrCategoryFormat    ErrorCategory = "FORMAT"
	ErrCategoryDecode    ErrorCategory = "DECODE"
	ErrCategoryContainer ErrorCategory = "CONTAINER"
	ErrCategoryStorage   ErrorCategory = "STORAGE"
	ErrCategoryInternal  ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// IO codes
	CodeFileNotFound = "FILE_NOT_FOUND"

	// Format codes
	CodeBadPreamble = "BAD_PREAMBLE"

	// Decode codes
	CodeTruncatedRecord   = "TRUNCATED_RECORD"
	CodeUnknownRecordType = "UNKNOWN_RECORD_TYPE"
	CodeTimeRegression    = "TIME_REGRESSION"
	CodeBadRecord         = "BAD_RECORD"

	// Container codes
	CodeUnsupportedColumnType = "UNSUPPORTED_COLUMN_TYPE"
	CodeCorruptMapping        = "CORRUPT_MAPPING"
	CodeCorruptDataset        = "CORRUPT_DATASET"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// ParseError is the structured error type used throughout the system.
type ParseError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *ParseError) Is(target error) bool {
	var t *ParseError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new ParseError.
func New(category ErrorCategory, code, message string) *ParseError {
	return &ParseError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new ParseError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *ParseError {
	return &ParseError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *ParseError) WithDetails(details map[string]interface{}) *ParseError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a ParseError.
func GetCategory(err error) ErrorCategory {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a ParseError.
func GetCode(err error) string {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. Nothing in the
// decode or persistence path retries; only transient object storage
// operations qualify, and the retry itself belongs to the caller.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewFileNotFoundError(path string) *ParseError {
	return New(ErrCategoryIO, CodeFileNotFound, fmt.Sprintf("file does not exist: %s", path))
}

func NewFormatError(code, message string) *ParseError {
	return New(ErrCategoryFormat, code, message)
}

func NewDecodeError(code, message string) *ParseError {
	return New(ErrCategoryDecode, code, message)
}

func NewContainerError(code, message string, cause error) *ParseError {
	return Wrap(ErrCategoryContainer, code, message, cause)
}

func NewStorageError(code, message string, cause error) *ParseError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *ParseError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
