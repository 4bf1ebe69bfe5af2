package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned when a non-active member tries to log in.
	ErrAccountInactive = errors.New("account is not active")
	// ErrForbidden is returned when the caller lacks access to a resource.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation marks input errors; use errors.Is to detect any *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidWebhookToken indicates a webhook call with a missing or wrong hottok.
	ErrInvalidWebhookToken = errors.New("invalid webhook token")
	// ErrUnavailable is returned when an optional integration is not configured.
	ErrUnavailable = errors.New("feature not configured")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
