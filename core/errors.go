package core

import (
	"errors"
	"strings"
)

var (
	// ErrDuplicateEmail is returned when the email is already registered,
	// whether found by lookup or rejected by the store's unique constraint.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials is returned when email/password is wrong.
	// Unknown email and wrong password share it on purpose.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAuthorizationRequired is returned when no bearer token was presented.
	ErrAuthorizationRequired = errors.New("authorization required")
	// ErrInvalidToken covers malformed, tampered and expired tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrUserNotFound is returned by repositories when no row matches.
	ErrUserNotFound = errors.New("user not found")
)

// FieldError is a single violated rule for one request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every rule violation found in a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
