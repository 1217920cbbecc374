package types

import "fmt"

// ErrorCode classifies a runtime error across the framework.
type ErrorCode string

// Graph and run error codes
const (
	ErrTopology          ErrorCode = "TOPOLOGY"
	ErrGraphNotFound     ErrorCode = "GRAPH_NOT_FOUND"
	ErrRunNotFound       ErrorCode = "RUN_NOT_FOUND"
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"
	ErrStoreUnavailable  ErrorCode = "STORE_UNAVAILABLE"
	ErrBusUnavailable    ErrorCode = "BUS_UNAVAILABLE"
	ErrInternalError     ErrorCode = "INTERNAL_ERROR"
)

// Error is a structured error with a code, message, and optional cause.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// GetErrorCode extracts the error code from an error, or "" when the error
// is not a *Error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
