package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/KebabObama/school-reservation/internal/persistence"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the reservation, series or room does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrInvalidInterval is returned when an end time is not after its start time.
	ErrInvalidInterval = errors.New("application: end time must be after start time")
	// ErrNoOp is returned when an edit supplies no fields or changes no rows.
	ErrNoOp = errors.New("application: no changes were made")
	// ErrConflict is matched by every *ConflictError.
	ErrConflict = errors.New("application: time conflict")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	messages := make([]string, 0, len(fields))
	for _, field := range fields {
		messages = append(messages, v.FieldErrors[field])
	}
	return strings.Join(messages, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message per field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func fieldError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.add(field, message)
	return v
}

// ConflictError reports the active reservation a candidate collided with.
type ConflictError struct {
	Message  string
	Conflict persistence.Reservation
	// Occurrence is the calendar date of the failing occurrence when the
	// candidate was part of a recurring series.
	Occurrence *time.Time
}

func (e *ConflictError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap lets errors.Is(err, ErrConflict) match.
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// StoreError wraps an unexpected persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("store failure during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// mapStoreError converts persistence errors into the application taxonomy.
// Errors that already belong to it pass through.
func mapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		vErr *ValidationError
		cErr *ConflictError
		sErr *StoreError
	)
	switch {
	case errors.As(err, &vErr), errors.As(err, &cErr), errors.As(err, &sErr):
		return err
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoOp), errors.Is(err, ErrInvalidInterval), errors.Is(err, ErrUnauthorized):
		return err
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return fieldError("room_id", "Room does not exist")
	case errors.Is(err, persistence.ErrConstraintViolation):
		return fieldError("time", "End time must be after start time")
	}
	return &StoreError{Op: op, Err: err}
}
