package persistence

import (
	"context"
	"time"
)

// UpdateScope selects the rows an update statement targets.
type UpdateScope int

const (
	// ScopeRow targets exactly the row with the given id.
	ScopeRow UpdateScope = iota
	// ScopeSeries targets the series root and every row whose parent is the root.
	ScopeSeries
)

// UpdateTarget names the id an update is anchored on and how wide it reaches.
// For ScopeSeries, ID must be the series root id.
type UpdateTarget struct {
	ID    string
	Scope UpdateScope
}

// IntervalStore is the reservation view the conflict detector and the write
// coordinator operate on. Implementations may be bound to a transaction.
type IntervalStore interface {
	GetReservation(ctx context.Context, id string) (Reservation, error)
	// QueryOverlapping returns rows for the room whose status is in statuses and
	// whose interval overlaps [start, end), ordered by start time.
	QueryOverlapping(ctx context.Context, roomID string, start, end time.Time, statuses []Status) ([]Reservation, error)
	InsertReservation(ctx context.Context, reservation Reservation) (string, error)
	BulkInsertReservations(ctx context.Context, reservations []Reservation) ([]string, error)
	UpdateReservations(ctx context.Context, target UpdateTarget, patch ReservationPatch) (int64, error)
	// ListSeries returns the root and its children ordered by start time.
	ListSeries(ctx context.Context, rootID string) ([]Reservation, error)
	GetRoom(ctx context.Context, id string) (Room, error)
}

// Store is an IntervalStore that can open transactional units of work.
type Store interface {
	IntervalStore
	// WithinTx runs fn against a transaction-bound store, committing when fn
	// returns nil and rolling back otherwise.
	WithinTx(ctx context.Context, fn func(tx IntervalStore) error) error
	Ping(ctx context.Context) error
	Close() error
}
