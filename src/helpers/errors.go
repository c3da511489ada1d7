package helpers

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type ObserverError struct {
	Message string
	Cause   error
}

func (e *ObserverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ObserverError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As checks
type ConfigurationError struct{ ObserverError }
type TransportError struct{ ObserverError }
type ParseError struct{ ObserverError }
type DatabaseError struct{ ObserverError }

// -----------------------------------------------------------------------------

// ErrDuplicate reports a write whose key already exists; the stored row is left untouched.
var ErrDuplicate = errors.New("duplicate key")

// -----------------------------------------------------------------------------
// Constructors
// -----------------------------------------------------------------------------

func NewConfigurationError(cause error, format string, args ...interface{}) error {
	return &ConfigurationError{ObserverError{Message: fmt.Sprintf(format, args...), Cause: cause}}
}

func NewTransportError(cause error, format string, args ...interface{}) error {
	return &TransportError{ObserverError{Message: fmt.Sprintf(format, args...), Cause: cause}}
}

func NewParseError(cause error, format string, args ...interface{}) error {
	return &ParseError{ObserverError{Message: fmt.Sprintf(format, args...), Cause: cause}}
}

func NewDatabaseError(cause error, format string, args ...interface{}) error {
	return &DatabaseError{ObserverError{Message: fmt.Sprintf(format, args...), Cause: cause}}
}

// -----------------------------------------------------------------------------

// IsDuplicate reports whether err signals an absorbed duplicate write.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
