package persistence

import "time"

// Column names a reservation column that may appear in an UPDATE statement.
type Column string

const (
	ColumnRoomID             Column = "room_id"
	ColumnPurposeID          Column = "purpose_id"
	ColumnTitle              Column = "title"
	ColumnDescription        Column = "description"
	ColumnStartTime          Column = "start_time"
	ColumnEndTime            Column = "end_time"
	ColumnStatus             Column = "status"
	ColumnAttendeesCount     Column = "attendees_count"
	ColumnSetupRequirements  Column = "setup_requirements"
	ColumnSpecialRequests    Column = "special_requests"
	ColumnApprovedBy         Column = "approved_by"
	ColumnApprovedAt         Column = "approved_at"
	ColumnCancelledAt        Column = "cancelled_at"
	ColumnCancellationReason Column = "cancellation_reason"
)

// Assignment is one "column = value" pair of an UPDATE statement.
type Assignment struct {
	Column Column
	Value  any
}

// ReservationPatch carries the fields an edit wants to change. Nil fields are
// left untouched. A blank PurposeID clears the purpose.
type ReservationPatch struct {
	RoomID             *string
	PurposeID          *string
	Title              *string
	Description        *string
	StartTime          *time.Time
	EndTime            *time.Time
	Status             *Status
	AttendeesCount     *int
	SetupRequirements  *string
	SpecialRequests    *string
	ApprovedBy         *string
	ApprovedAt         *time.Time
	CancelledAt        *time.Time
	CancellationReason *string
}

// Assignments returns the set fields in a fixed column order. Only columns
// listed here can ever reach an UPDATE statement.
func (p ReservationPatch) Assignments() []Assignment {
	out := make([]Assignment, 0, 14)
	add := func(col Column, set bool, value func() any) {
		if set {
			out = append(out, Assignment{Column: col, Value: value()})
		}
	}
	add(ColumnRoomID, p.RoomID != nil, func() any { return *p.RoomID })
	add(ColumnPurposeID, p.PurposeID != nil, func() any {
		if *p.PurposeID == "" {
			return nil
		}
		return *p.PurposeID
	})
	add(ColumnTitle, p.Title != nil, func() any { return *p.Title })
	add(ColumnDescription, p.Description != nil, func() any { return *p.Description })
	add(ColumnStartTime, p.StartTime != nil, func() any { return *p.StartTime })
	add(ColumnEndTime, p.EndTime != nil, func() any { return *p.EndTime })
	add(ColumnStatus, p.Status != nil, func() any { return string(*p.Status) })
	add(ColumnAttendeesCount, p.AttendeesCount != nil, func() any { return *p.AttendeesCount })
	add(ColumnSetupRequirements, p.SetupRequirements != nil, func() any { return *p.SetupRequirements })
	add(ColumnSpecialRequests, p.SpecialRequests != nil, func() any { return *p.SpecialRequests })
	add(ColumnApprovedBy, p.ApprovedBy != nil, func() any { return *p.ApprovedBy })
	add(ColumnApprovedAt, p.ApprovedAt != nil, func() any { return *p.ApprovedAt })
	add(ColumnCancelledAt, p.CancelledAt != nil, func() any { return *p.CancelledAt })
	add(ColumnCancellationReason, p.CancellationReason != nil, func() any { return *p.CancellationReason })
	return out
}

// IsEmpty reports whether the patch changes nothing.
func (p ReservationPatch) IsEmpty() bool {
	return len(p.Assignments()) == 0
}

// SeriesShared keeps only the fields every occurrence of a series shares.
// Room and timing stay per occurrence. Approval and cancellation stamps travel
// with the status they describe.
func (p ReservationPatch) SeriesShared() ReservationPatch {
	return ReservationPatch{
		PurposeID:          p.PurposeID,
		Title:              p.Title,
		Description:        p.Description,
		Status:             p.Status,
		AttendeesCount:     p.AttendeesCount,
		SetupRequirements:  p.SetupRequirements,
		SpecialRequests:    p.SpecialRequests,
		ApprovedBy:         p.ApprovedBy,
		ApprovedAt:         p.ApprovedAt,
		CancelledAt:        p.CancelledAt,
		CancellationReason: p.CancellationReason,
	}
}

// Apply returns a copy of r with the patch fields written over it.
func (p ReservationPatch) Apply(r Reservation) Reservation {
	if p.RoomID != nil {
		r.RoomID = *p.RoomID
	}
	if p.PurposeID != nil {
		r.PurposeID = nil
		if id := *p.PurposeID; id != "" {
			r.PurposeID = &id
		}
	}
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.StartTime != nil {
		r.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		r.EndTime = *p.EndTime
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.AttendeesCount != nil {
		r.AttendeesCount = *p.AttendeesCount
	}
	if p.SetupRequirements != nil {
		r.SetupRequirements = *p.SetupRequirements
	}
	if p.SpecialRequests != nil {
		r.SpecialRequests = *p.SpecialRequests
	}
	if p.ApprovedBy != nil {
		by := *p.ApprovedBy
		r.ApprovedBy = &by
	}
	if p.ApprovedAt != nil {
		at := *p.ApprovedAt
		r.ApprovedAt = &at
	}
	if p.CancelledAt != nil {
		at := *p.CancelledAt
		r.CancelledAt = &at
	}
	if p.CancellationReason != nil {
		reason := *p.CancellationReason
		r.CancellationReason = &reason
	}
	return r
}
