package application

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/KebabObama/school-reservation/internal/persistence"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"title": "Title is required", "room_id": "Room is required"}}
	if got := withFields.Error(); got != "Room is required; Title is required" {
		t.Fatalf("expected messages ordered by field, got %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if err := (&ValidationError{}).HasErrors(); err {
		t.Fatalf("expected HasErrors to report false for empty error")
	}

	if err := (&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors(); !err {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", "value")
	base.add("first", "ignored")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected first message to win, got %q", got)
	}

	other := &ValidationError{FieldErrors: map[string]string{"second": "another"}}
	base.merge(other)
	if got := base.FieldErrors["second"]; got != "another" {
		t.Fatalf("expected merge to copy field, got %q", got)
	}

	base.merge(nil)
	if len(base.FieldErrors) != 2 {
		t.Fatalf("expected merge with nil to leave fields unchanged")
	}
}

func TestConflictError_MatchesSentinel(t *testing.T) {
	t.Parallel()

	date := time.Date(2024, time.January, 8, 0, 0, 0, 0, time.UTC)
	var err error = fmt.Errorf("create: %w", &ConflictError{Message: "Time conflict", Occurrence: &date})

	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ConflictError to match ErrConflict")
	}
	var cErr *ConflictError
	if !errors.As(err, &cErr) || cErr.Occurrence == nil || !cErr.Occurrence.Equal(date) {
		t.Fatalf("expected occurrence date to survive wrapping, got %+v", cErr)
	}
}

func TestMapStoreError(t *testing.T) {
	t.Parallel()

	driverErr := errors.New("disk I/O error")
	tests := []struct {
		name string
		err  error
		kind string
	}{
		{name: "nil", err: nil, kind: ""},
		{name: "persistence not found", err: persistence.ErrNotFound, kind: "not_found"},
		{name: "foreign key", err: fmt.Errorf("insert: %w", persistence.ErrForeignKeyViolation), kind: "validation"},
		{name: "constraint", err: persistence.ErrConstraintViolation, kind: "validation"},
		{name: "application error passes through", err: ErrNoOp, kind: "no_op"},
		{name: "conflict passes through", err: &ConflictError{Message: "x"}, kind: "conflict"},
		{name: "driver failure", err: driverErr, kind: "store"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := mapStoreError("op", tt.err)
			if kind := ErrorKind(got); kind != tt.kind {
				t.Fatalf("expected kind %q, got %q (%v)", tt.kind, kind, got)
			}
		})
	}

	var sErr *StoreError
	if err := mapStoreError("write", driverErr); !errors.As(err, &sErr) || !errors.Is(err, driverErr) || sErr.Op != "write" {
		t.Fatalf("expected StoreError wrapping driver error, got %v", err)
	}
}
