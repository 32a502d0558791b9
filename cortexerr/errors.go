// Package cortexerr provides the structured error type used across the
// memory engine's core packages.
package cortexerr

import "fmt"

// Code classifies an Error into one of the kinds defined by the design.
type Code string

const (
	// Validation covers empty content, malformed URIs, invalid roles.
	Validation Code = "VALIDATION"
	// NotFound covers a missing memory id or URI.
	NotFound Code = "NOT_FOUND"
	// Parse covers LLM JSON output that remains unparseable after the
	// fence-stripping fallback.
	Parse Code = "PARSE"
	// VectorStore covers backend I/O errors and schema mismatches.
	VectorStore Code = "VECTOR_STORE"
	// LLM covers provider errors or timeouts from the chat/embedding model.
	LLM Code = "LLM"
	// Config covers dimension mismatches and missing required configuration.
	Config Code = "CONFIG"
	// Other wraps unexpected errors that do not fit another kind.
	Other Code = "OTHER"
)

// Error is the structured error type returned by every exported operation
// in the core packages.
type Error struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Cause     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a new Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause attaches an underlying cause and returns the receiver.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable and returns the receiver.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// CodeOf extracts the Code from err, or "" if err is not a *Error.
func CodeOf(err error) Code {
	var e *Error
	if as(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable reports whether err is a retryable *Error.
func IsRetryable(err error) bool {
	var e *Error
	if as(err, &e) {
		return e.Retryable
	}
	return false
}

// as is a tiny local shim over errors.As to avoid importing "errors" twice
// under different aliases across this small file.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
