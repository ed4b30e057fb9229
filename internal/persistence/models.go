package persistence

import "time"

// Layouts used for timezone-naive facility-local timestamps.
const (
	DateTimeLayout = "2006-01-02 15:04:05"
	DateLayout     = "2006-01-02"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether a reservation in this status blocks the room.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusAccepted
}

// ActiveStatuses lists the statuses that participate in conflict detection.
func ActiveStatuses() []Status {
	return []Status{StatusPending, StatusAccepted}
}

// RecurringType identifies how a series repeats.
type RecurringType string

const (
	RecurringNone    RecurringType = "none"
	RecurringDaily   RecurringType = "daily"
	RecurringWeekly  RecurringType = "weekly"
	RecurringMonthly RecurringType = "monthly"
)

// Valid reports whether t is one of the known recurrence types.
func (t RecurringType) Valid() bool {
	switch t {
	case RecurringNone, RecurringDaily, RecurringWeekly, RecurringMonthly:
		return true
	}
	return false
}

// Room is the subset of the room catalog needed to validate bookings.
type Room struct {
	ID        string
	Name      string
	Capacity  int
	IsActive  bool
	CreatedAt time.Time
}

// Reservation is a single occurrence row. A series parent has RecurringType
// other than none and no ParentReservationID; its children reference it.
type Reservation struct {
	ID                  string
	RoomID              string
	UserID              string
	PurposeID           *string
	Title               string
	Description         string
	StartTime           time.Time
	EndTime             time.Time
	Status              Status
	AttendeesCount      int
	SetupRequirements   string
	SpecialRequests     string
	RecurringType       RecurringType
	RecurringEndDate    *time.Time
	ParentReservationID *string
	ApprovedBy          *string
	ApprovedAt          *time.Time
	CancelledAt         *time.Time
	CancellationReason  *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SeriesRootID returns the parent id for children and the row's own id otherwise.
func (r Reservation) SeriesRootID() string {
	if r.ParentReservationID != nil && *r.ParentReservationID != "" {
		return *r.ParentReservationID
	}
	return r.ID
}

// Overlaps applies the half-open [start, end) rule against another interval.
func (r Reservation) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && r.EndTime.After(start)
}
