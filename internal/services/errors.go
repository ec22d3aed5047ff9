package services

import (
	"errors"
	"fmt"
)

// Error kinds returned by the services. Handlers map them to HTTP statuses.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCode        = errors.New("invalid code")
	ErrCodeExpired        = errors.New("code expired")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotVerified        = errors.New("account is not verified")
	ErrInvalidStatus      = errors.New("status must be APPROVED or REJECTED")
	ErrAlreadyDecided     = errors.New("request has already been decided")
)

// Error carries a client-facing message alongside its kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ValidationError reports malformed input.
func ValidationError(format string, args ...any) error {
	return newError(ErrValidation, format, args...)
}

func notFound(entity string) error {
	return newError(ErrNotFound, "%s not found", entity)
}

func forbidden(format string, args ...any) error {
	return newError(ErrForbidden, format, args...)
}
