// Package errors provides structured error types for qrsheet.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the pipeline packages
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Every fatal condition of a run maps to one code:
//   - CONFIG_ERROR: degenerate geometry, invalid options, nothing to merge
//   - RENDER_ERROR: a tile could not be produced for an identifier
//   - ENCODE_ERROR: a page canvas could not be encoded
//   - IO_ERROR: a page or merged document could not be persisted
//   - MERGE_ERROR: a constituent page document is structurally invalid
//   - PUBLISH_ERROR: the merged document could not be uploaded
//
// # Usage
//
//	err := errors.New(errors.ErrCodeConfig, "margin must be non-negative, got %d", m)
//	if errors.Is(err, errors.ErrCodeConfig) {
//	    // Handle configuration error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeIO, origErr, "write %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for the failure taxonomy of a run.
const (
	ErrCodeConfig  Code = "CONFIG_ERROR"
	ErrCodeRender  Code = "RENDER_ERROR"
	ErrCodeEncode  Code = "ENCODE_ERROR"
	ErrCodeIO      Code = "IO_ERROR"
	ErrCodeMerge   Code = "MERGE_ERROR"
	ErrCodePublish Code = "PUBLISH_ERROR"

	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInternal     Code = "INTERNAL_ERROR"
)

// coder is implemented by typed errors that carry their own code.
type coder interface {
	ErrorCode() Code
}

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It walks the error chain and stops at the first error carrying a code.
func Is(err error, code Code) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if no error in the chain carries a code.
func GetCode(err error) Code {
	for err != nil {
		switch e := err.(type) {
		case *Error:
			return e.Code
		case coder:
			return e.ErrorCode()
		}
		err = errors.Unwrap(err)
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// RenderError reports that no tile could be produced for an identifier.
type RenderError struct {
	ID    int   // Offending identifier
	Cause error // Failure reported by the code renderer or captioner
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	return fmt.Sprintf("%s: render identifier %d: %v", ErrCodeRender, e.ID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *RenderError) Unwrap() error { return e.Cause }

// ErrorCode returns the error code for this error type.
func (e *RenderError) ErrorCode() Code { return ErrCodeRender }

// MergeError reports a page document that could not be merged.
type MergeError struct {
	Path    string // Page document location
	FirstID int    // First identifier on the page
	LastID  int    // Last identifier on the page
	Cause   error
}

// Error implements the error interface.
func (e *MergeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", ErrCodeMerge, e.Cause)
	}
	return fmt.Sprintf("%s: page %s (identifiers %d-%d): %v", ErrCodeMerge, e.Path, e.FirstID, e.LastID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *MergeError) Unwrap() error { return e.Cause }

// ErrorCode returns the error code for this error type.
func (e *MergeError) ErrorCode() Code { return ErrCodeMerge }
