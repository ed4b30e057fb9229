package application

import "github.com/KebabObama/school-reservation/internal/persistence"

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// EditScope selects how far an edit reaches.
type EditScope string

const (
	// EditScopeSingle updates one occurrence with the full field set.
	EditScopeSingle EditScope = "single"
	// EditScopeSeries updates the root and every child with the shared field subset.
	EditScopeSeries EditScope = "series"
)

// CreateReservationInput is the parsed body of a booking request. Datetimes
// use "YYYY-MM-DD HH:MM:SS" facility-local time and dates use "YYYY-MM-DD".
type CreateReservationInput struct {
	RoomID            string
	Title             string
	StartTime         string
	EndTime           string
	PurposeID         *string
	Description       string
	AttendeesCount    int
	SetupRequirements string
	SpecialRequests   string
	RecurringType     string
	RecurringEndDate  string
}

// CreateReservationParams wraps the data required to create a reservation.
type CreateReservationParams struct {
	Principal Principal
	Input     CreateReservationInput
}

// CreateResult describes the rows a create wrote.
type CreateResult struct {
	ReservationID string
	// Recurring is set when the booking is the head of a series.
	Recurring bool
	// RecurringInstances counts the child rows created after the parent.
	RecurringInstances int
	// TotalReservations counts the parent plus its children.
	TotalReservations int
}

// EditReservationInput carries the fields an edit wants to change. Nil fields
// are left untouched.
type EditReservationInput struct {
	RoomID             *string
	PurposeID          *string
	Title              *string
	Description        *string
	StartTime          *string
	EndTime            *string
	Status             *string
	AttendeesCount     *int
	SetupRequirements  *string
	SpecialRequests    *string
	CancellationReason *string
	EditScope          string
}

// EditReservationParams wraps the data required to edit a reservation.
type EditReservationParams struct {
	Principal     Principal
	ReservationID string
	Input         EditReservationInput
}

// EditResult reports the outcome of an edit.
type EditResult struct {
	AffectedRows int64
	EditScope    EditScope
}

// AvailabilityQuery asks whether a room is free for an interval.
type AvailabilityQuery struct {
	RoomID    string
	StartTime string
	EndTime   string
	ExcludeID string
}

// Availability is the answer to an AvailabilityQuery.
type Availability struct {
	Available bool
	Conflict  *persistence.Reservation
	Message   string
}
