// Package errors provides structured error types for tmpldb.
// All errors carry a category, code and message so callers can tell a
// malformed statement from a missing record or a rendering failure.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryQuery         ErrorCategory = "QUERY"
	ErrCategoryStore         ErrorCategory = "STORE"
	ErrCategorySerialization ErrorCategory = "SERIALIZATION"
	ErrCategoryInternal      ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Query codes
	CodeSyntaxError       = "SYNTAX_ERROR"
	CodeInvalidLiteral    = "INVALID_LITERAL"
	CodeUnterminatedBlock = "UNTERMINATED_BLOCK"

	// Store codes
	CodeInstanceAlreadyExists = "INSTANCE_ALREADY_EXISTS"
	CodeTemplateNotFound      = "TEMPLATE_NOT_FOUND"
	CodeInstanceNotFound      = "INSTANCE_NOT_FOUND"
	CodeFieldNotFound         = "FIELD_NOT_FOUND"

	// Serialization codes
	CodeSerializationFailed = "SERIALIZATION_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// TmplError is the structured error type used throughout the system.
type TmplError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
}

// Error returns a formatted error string.
func (e *TmplError) Error() string {
	msg := fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
	if line, ok := e.Details["line"]; ok {
		msg = fmt.Sprintf("%s (line %v)", msg, line)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *TmplError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *TmplError) Is(target error) bool {
	var t *TmplError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new TmplError.
func New(category ErrorCategory, code, message string) *TmplError {
	return &TmplError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// Wrap creates a new TmplError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *TmplError {
	return &TmplError{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    cause,
	}
}

// WithDetails returns a copy of the error with additional details merged in.
func (e *TmplError) WithDetails(details map[string]interface{}) *TmplError {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+len(details))
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	for k, v := range details {
		cp.Details[k] = v
	}
	return &cp
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a TmplError.
func GetCategory(err error) ErrorCategory {
	var te *TmplError
	if errors.As(err, &te) {
		return te.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a TmplError.
func GetCode(err error) string {
	var te *TmplError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// IsSyntax reports whether err is a malformed-statement error.
func IsSyntax(err error) bool {
	return GetCategory(err) == ErrCategoryQuery
}

// IsNotFound reports whether err is a failed lookup by name.
func IsNotFound(err error) bool {
	switch GetCode(err) {
	case CodeTemplateNotFound, CodeInstanceNotFound, CodeFieldNotFound:
		return true
	}
	return false
}

// IsAlreadyExists reports whether err rejected a duplicate definition.
func IsAlreadyExists(err error) bool {
	return GetCode(err) == CodeInstanceAlreadyExists
}

// IsSerialization reports whether err came from rendering output.
func IsSerialization(err error) bool {
	return GetCategory(err) == ErrCategorySerialization
}

// Convenience constructors for common errors.

func NewSyntaxError(message string) *TmplError {
	return New(ErrCategoryQuery, CodeSyntaxError, message)
}

func NewInvalidLiteral(message string, cause error) *TmplError {
	return Wrap(ErrCategoryQuery, CodeInvalidLiteral, message, cause)
}

func NewUnterminatedBlock(message string) *TmplError {
	return New(ErrCategoryQuery, CodeUnterminatedBlock, message)
}

func NewAlreadyExists(message string) *TmplError {
	return New(ErrCategoryStore, CodeInstanceAlreadyExists, message)
}

func NewTemplateNotFound(name string) *TmplError {
	return New(ErrCategoryStore, CodeTemplateNotFound, fmt.Sprintf("template %q not found", name))
}

func NewInstanceNotFound(name string) *TmplError {
	return New(ErrCategoryStore, CodeInstanceNotFound, fmt.Sprintf("instance %q not found", name))
}

func NewFieldNotFound(message string, cause error) *TmplError {
	return Wrap(ErrCategoryStore, CodeFieldNotFound, message, cause)
}

func NewSerializationError(message string, cause error) *TmplError {
	return Wrap(ErrCategorySerialization, CodeSerializationFailed, message, cause)
}

func NewInternalError(message string, cause error) *TmplError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
