// Package events announces committed reservation writes to other systems.
package events

import (
	"context"
	"time"
)

// Type names a reservation lifecycle event.
type Type string

const (
	TypeReservationCreated Type = "reservation.created"
	TypeReservationUpdated Type = "reservation.updated"
)

// Event is the JSON payload published after a write commits.
type Event struct {
	Type           Type      `json:"type"`
	ReservationID  string    `json:"reservation_id"`
	RoomID         string    `json:"room_id,omitempty"`
	UserID         string    `json:"user_id,omitempty"`
	EditScope      string    `json:"edit_scope,omitempty"`
	AffectedRows   int64     `json:"affected_rows,omitempty"`
	OccurrenceIDs  []string  `json:"occurrence_ids,omitempty"`
	ChangedColumns []string  `json:"changed_columns,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher delivers events. Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Noop drops every event.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, Event) error { return nil }
