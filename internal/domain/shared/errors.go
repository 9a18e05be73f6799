package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches any DomainError carrying the same code, so a wrapped error
// still satisfies errors.Is against its sentinel.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Wrap returns a copy of the sentinel that carries cause.
func Wrap(sentinel *DomainError, cause error) *DomainError {
	return &DomainError{
		Code:    sentinel.Code,
		Message: sentinel.Message,
		cause:   cause,
	}
}

// WithMessage returns a copy of the sentinel with a more specific message.
func WithMessage(sentinel *DomainError, message string) *DomainError {
	return &DomainError{
		Code:    sentinel.Code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound     = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrUnauthorized = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")

	// ErrSourceUnavailable covers auth, network and timeout failures reaching the linked spreadsheet.
	ErrSourceUnavailable = NewDomainError("SOURCE_UNAVAILABLE", "The linked spreadsheet could not be reached")
	// ErrNoSourceLinked is returned when the user has not connected a spreadsheet yet.
	ErrNoSourceLinked = NewDomainError("NO_SOURCE_LINKED", "No inventory linked for this user")
	// ErrInsufficientData is returned when the products or sales tab is empty.
	ErrInsufficientData = NewDomainError("INSUFFICIENT_DATA", "Link a sheet with populated products and sales tabs")
	// ErrMalformedSource is returned when a stored or submitted link is not a spreadsheet URL.
	ErrMalformedSource = NewDomainError("MALFORMED_SOURCE", "Invalid Google Sheet URL")
	// ErrNoTabs is returned when a spreadsheet being connected has no tabs.
	ErrNoTabs = NewDomainError("NO_TABS", "No sheets found in the spreadsheet")
	// ErrMalformedSheet is returned when a tab lacks the columns an operation needs.
	ErrMalformedSheet = NewDomainError("MALFORMED_SHEET", "Sheet is missing required columns")
)
