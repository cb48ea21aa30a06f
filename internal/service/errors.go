package service

import (
	"errors"
	"fmt"

	"github.com/proctorhub/assessment-backend/internal/model"
)

// Error kinds. Every domain error returned by this package wraps exactly one
// of them so callers can branch with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
)

// Domain errors.
var (
	ErrExamNotFound      = fmt.Errorf("%w: exam not found or inactive", ErrNotFound)
	ErrAttemptNotFound   = fmt.Errorf("%w: attempt not found", ErrNotFound)
	ErrNoExamAccess      = fmt.Errorf("%w: purchase or select this exam first", ErrForbidden)
	ErrAttemptClosed     = fmt.Errorf("%w: attempt already closed", ErrConflict)
	ErrTimeOver          = fmt.Errorf("%w: time is over, attempt auto-submitted", ErrConflict)
	ErrUnknownViolation  = fmt.Errorf("%w: unknown violation type", ErrValidation)
	ErrInvalidNavigation = fmt.Errorf("%w: unknown navigation mode", ErrValidation)
	ErrEmptyAnswer       = fmt.Errorf("%w: answer payload is empty", ErrValidation)
	ErrConcurrentWrite   = fmt.Errorf("%w: attempt was modified concurrently, retry", ErrConflict)
)

// AttemptClosedError is returned when a write reaches an attempt that is no
// longer in progress. It matches ErrAttemptClosed.
type AttemptClosedError struct {
	Status model.AttemptStatus
}

func (e *AttemptClosedError) Error() string {
	return fmt.Sprintf("%s (%s)", ErrAttemptClosed, e.Status)
}

func (e *AttemptClosedError) Unwrap() error { return ErrAttemptClosed }

// errAttemptFinal aborts a store update without writing when the attempt is
// already terminal.
var errAttemptFinal = errors.New("attempt already final")
