package errors

import "fmt"

// ErrorDetails represents detailed information about an error.
type ErrorDetails struct {
	// Message (required) is the user-defined error message.
	// E.g. "quantity must be positive".
	Message string

	// Code (required) is one of the ErrorCode values.
	Code string

	// Field (optional) is the related field the error occurred on, if any.
	Field string

	// cause is the lower level error that produced this one, if any.
	cause error
}

// NewErrorDetails creates a new ErrorDetails struct with the given parameters.
func NewErrorDetails(message, code, field string) *ErrorDetails {
	return &ErrorDetails{
		Message: message,
		Code:    code,
		Field:   field,
	}
}

// New creates ErrorDetails for code with a formatted message.
func New(code ErrorCode, format string, args ...any) *ErrorDetails {
	return &ErrorDetails{
		Message: fmt.Sprintf(format, args...),
		Code:    string(code),
	}
}

// WithField returns a copy of e bound to field.
func (e *ErrorDetails) WithField(field string) *ErrorDetails {
	c := *e
	c.Field = field
	return &c
}

// WithCause returns a copy of e wrapping cause.
func (e *ErrorDetails) WithCause(cause error) *ErrorDetails {
	c := *e
	c.cause = cause
	return &c
}

// Error() is used to implement the Golang `error` interface.
func (e *ErrorDetails) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped cause.
func (e *ErrorDetails) Unwrap() error {
	return e.cause
}

// Is makes errors.Is match any ErrorDetails with the same code, so sentinel
// values compare by code rather than by pointer.
func (e *ErrorDetails) Is(target error) bool {
	t, ok := target.(*ErrorDetails)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// ErrorCodeEquals checks whether a given `error` has a specific code.
func ErrorCodeEquals(err error, code string) bool {
	errDetails, ok := err.(*ErrorDetails)
	if !ok {
		return false
	}

	return errDetails.Code == code
}
