package service

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrValidation = errors.New("validation error")
	// ErrNotFound covers both missing rows and rows owned by someone else.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable is returned when an optional backing service is not configured.
	ErrUnavailable = errors.New("service unavailable")
)

// ValidationError carries a user-facing message that is safe to surface verbatim.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(msg string) error { return &ValidationError{Msg: msg} }

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
