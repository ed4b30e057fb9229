package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/KebabObama/school-reservation/internal/persistence"
)

var (
	roomCounter        uint64
	reservationCounter uint64
)

var referenceTime = time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC)

// ReferenceTime is the baseline instant fixtures are built around.
func ReferenceTime() time.Time {
	return referenceTime
}

// At builds a naive facility-local timestamp.
func At(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

// Date builds a naive calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// RoomOption configures NewRoom.
type RoomOption func(*persistence.Room)

// NewRoom returns an active room with a unique id.
func NewRoom(opts ...RoomOption) persistence.Room {
	idx := atomic.AddUint64(&roomCounter, 1)
	room := persistence.Room{
		ID:        fmt.Sprintf("room-%03d", idx),
		Name:      fmt.Sprintf("Room %03d", idx),
		Capacity:  30,
		IsActive:  true,
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&room)
	}
	return room
}

// WithRoomID overrides the generated room id.
func WithRoomID(id string) RoomOption {
	return func(r *persistence.Room) { r.ID = id }
}

// WithCapacity overrides the room capacity.
func WithCapacity(capacity int) RoomOption {
	return func(r *persistence.Room) { r.Capacity = capacity }
}

// Inactive marks the room as withdrawn from booking.
func Inactive() RoomOption {
	return func(r *persistence.Room) { r.IsActive = false }
}

// ReservationOption configures NewReservation.
type ReservationOption func(*persistence.Reservation)

// NewReservation returns a pending one-hour booking starting at ReferenceTime.
func NewReservation(roomID string, opts ...ReservationOption) persistence.Reservation {
	idx := atomic.AddUint64(&reservationCounter, 1)
	r := persistence.Reservation{
		ID:            fmt.Sprintf("fixture-res-%03d", idx),
		RoomID:        roomID,
		UserID:        "user-1",
		Title:         fmt.Sprintf("Reservation %03d", idx),
		StartTime:     referenceTime,
		EndTime:       referenceTime.Add(time.Hour),
		Status:        persistence.StatusPending,
		RecurringType: persistence.RecurringNone,
		CreatedAt:     referenceTime,
		UpdatedAt:     referenceTime,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// WithReservationID overrides the generated reservation id.
func WithReservationID(id string) ReservationOption {
	return func(r *persistence.Reservation) { r.ID = id }
}

// WithInterval sets the booking interval.
func WithInterval(start, end time.Time) ReservationOption {
	return func(r *persistence.Reservation) {
		r.StartTime = start
		r.EndTime = end
	}
}

// WithStatus sets the booking status.
func WithStatus(status persistence.Status) ReservationOption {
	return func(r *persistence.Reservation) { r.Status = status }
}

// WithTitle sets the booking title.
func WithTitle(title string) ReservationOption {
	return func(r *persistence.Reservation) { r.Title = title }
}

// WithParent links the booking to a series root.
func WithParent(parentID string) ReservationOption {
	return func(r *persistence.Reservation) {
		id := parentID
		r.ParentReservationID = &id
	}
}

// WithRecurrence marks the booking as a series parent.
func WithRecurrence(kind persistence.RecurringType, until time.Time) ReservationOption {
	return func(r *persistence.Reservation) {
		r.RecurringType = kind
		end := until
		r.RecurringEndDate = &end
	}
}
