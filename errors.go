package inkwell

import (
	"errors"
	"fmt"
)

var (
	ErrPostExists             = errors.New("post already exists")
	ErrPostNotFound           = errors.New("post not found")
	ErrForbidden              = errors.New("actor is not the owner of the post")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrAccountExists          = errors.New("account already exists")
	ErrAccountNotFound        = errors.New("account not found")
	ErrInvalidCredentials     = errors.New("invalid username or password")
	ErrSearchUnsupported      = errors.New("full-text search is not supported by this store")
)

// ValidationError is returned when user supplied input is malformed.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is, or wraps, a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
