package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain operations
var (
	// ErrBackendUnreachable indicates the backend process could not be reached
	ErrBackendUnreachable = errors.New("backend is unreachable")

	// ErrAuthFailed indicates the gateway rejected our bearer token
	ErrAuthFailed = errors.New("gateway token is invalid")

	// ErrAccountNotFound indicates the requested account does not exist
	ErrAccountNotFound = errors.New("account not found")

	// ErrEmptyToken indicates a refresh token submission with no content
	ErrEmptyToken = errors.New("refresh token is required")

	// ErrEmptyPath indicates a database import with no path
	ErrEmptyPath = errors.New("database path is required")
)

// ErrorKind classifies a failure for display. It never affects retry.
type ErrorKind string

const (
	KindGeneric           ErrorKind = "generic"
	KindCredentialMissing ErrorKind = "credential_missing"
	KindEnvironment       ErrorKind = "environment"
	KindValidation        ErrorKind = "validation"
)

// ParseErrorKind maps a wire value to an ErrorKind, defaulting to generic
func ParseErrorKind(s string) ErrorKind {
	switch ErrorKind(s) {
	case KindCredentialMissing, KindEnvironment, KindValidation:
		return ErrorKind(s)
	default:
		return KindGeneric
	}
}

// GatewayError is a failure reported by, or on the way to, the backend.
type GatewayError struct {
	Op      string
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s failed", e.Op)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NewGatewayError builds a GatewayError for op
func NewGatewayError(op string, kind ErrorKind, message string) *GatewayError {
	return &GatewayError{Op: op, Kind: kind, Message: message}
}

// KindOf returns the display kind of err. Errors that carry no kind are generic,
// except the client-side validation sentinels and transport failures.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindGeneric
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) && gwErr.Kind != "" {
		return gwErr.Kind
	}
	switch {
	case errors.Is(err, ErrEmptyToken), errors.Is(err, ErrEmptyPath):
		return KindValidation
	case errors.Is(err, ErrBackendUnreachable):
		return KindEnvironment
	}
	return KindGeneric
}

// ErrorMessage returns the human readable part of err without op prefixes
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Error()
	}
	return err.Error()
}
