package application

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/KebabObama/school-reservation/internal/persistence"
	"github.com/KebabObama/school-reservation/internal/recurrence"
)

const maxTitleLength = 255

var dateTimeLayouts = []string{
	persistence.DateTimeLayout,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseDateTime reads a facility-local timestamp. The result carries no zone
// information beyond UTC.
func ParseDateTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateTimeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q", value)
}

// ParseDate reads a "YYYY-MM-DD" calendar date.
func ParseDate(value string) (time.Time, error) {
	ts, err := time.Parse(persistence.DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", value)
	}
	return ts, nil
}

// createPlan is a validated create request.
type createPlan struct {
	template  persistence.Reservation
	recurring bool
	frequency recurrence.Frequency
	until     time.Time
}

func validateCreate(in CreateReservationInput) (createPlan, error) {
	vErr := &ValidationError{}

	roomID := strings.TrimSpace(in.RoomID)
	if roomID == "" {
		vErr.add("room_id", "Room is required")
	}
	title := validateTitle(in.Title, vErr)

	start := requireDateTime("start_time", "Start time", in.StartTime, vErr)
	end := requireDateTime("end_time", "End time", in.EndTime, vErr)

	if in.AttendeesCount < 0 {
		vErr.add("attendees_count", "Attendees count cannot be negative")
	}

	recurringType := persistence.RecurringType(strings.ToLower(strings.TrimSpace(in.RecurringType)))
	if recurringType == "" {
		recurringType = persistence.RecurringNone
	}
	if !recurringType.Valid() {
		vErr.add("recurring_type", "Recurring type must be one of none, daily, weekly, monthly")
	}

	var (
		until    time.Time
		hasUntil bool
	)
	if strings.TrimSpace(in.RecurringEndDate) != "" && recurringType != persistence.RecurringNone {
		parsed, err := ParseDate(in.RecurringEndDate)
		if err != nil {
			vErr.add("recurring_end_date", "Recurring end date must use YYYY-MM-DD")
		} else {
			until, hasUntil = parsed, true
		}
	}

	if vErr.HasErrors() {
		return createPlan{}, vErr
	}
	if !end.After(start) {
		return createPlan{}, ErrInvalidInterval
	}

	recurring := recurringType != persistence.RecurringNone && hasUntil
	if recurring && until.Before(truncateToDate(start)) {
		return createPlan{}, fieldError("recurring_end_date", "Recurring end date cannot be before the start date")
	}

	template := persistence.Reservation{
		RoomID:            roomID,
		PurposeID:         optionalID(in.PurposeID),
		Title:             title,
		Description:       in.Description,
		StartTime:         start,
		EndTime:           end,
		Status:            persistence.StatusPending,
		AttendeesCount:    in.AttendeesCount,
		SetupRequirements: in.SetupRequirements,
		SpecialRequests:   in.SpecialRequests,
		RecurringType:     persistence.RecurringNone,
	}
	plan := createPlan{template: template, recurring: recurring}
	if recurring {
		plan.template.RecurringType = recurringType
		plan.template.RecurringEndDate = &until
		plan.frequency = recurrence.Frequency(recurringType)
		plan.until = until
	}
	return plan, nil
}

// buildPatch turns edit input into an allow-listed patch.
func buildPatch(in EditReservationInput) (persistence.ReservationPatch, EditScope, error) {
	vErr := &ValidationError{}
	var patch persistence.ReservationPatch

	scope := EditScope(strings.ToLower(strings.TrimSpace(in.EditScope)))
	switch scope {
	case "":
		scope = EditScopeSingle
	case EditScopeSingle, EditScopeSeries:
	default:
		vErr.add("edit_scope", "Edit scope must be single or series")
	}

	if in.RoomID != nil {
		roomID := strings.TrimSpace(*in.RoomID)
		if roomID == "" {
			vErr.add("room_id", "Room is required")
		}
		patch.RoomID = &roomID
	}
	if in.Title != nil {
		title := validateTitle(*in.Title, vErr)
		patch.Title = &title
	}
	if in.StartTime != nil {
		start := requireDateTime("start_time", "Start time", *in.StartTime, vErr)
		patch.StartTime = &start
	}
	if in.EndTime != nil {
		end := requireDateTime("end_time", "End time", *in.EndTime, vErr)
		patch.EndTime = &end
	}
	if in.Status != nil {
		status := persistence.Status(strings.ToLower(strings.TrimSpace(*in.Status)))
		if !status.Valid() {
			vErr.add("status", "Status must be one of pending, accepted, rejected, cancelled")
		}
		patch.Status = &status
	}
	if in.AttendeesCount != nil {
		if *in.AttendeesCount < 0 {
			vErr.add("attendees_count", "Attendees count cannot be negative")
		}
		count := *in.AttendeesCount
		patch.AttendeesCount = &count
	}
	patch.PurposeID = trimmedPtr(in.PurposeID)
	patch.Description = copyPtr(in.Description)
	patch.SetupRequirements = copyPtr(in.SetupRequirements)
	patch.SpecialRequests = copyPtr(in.SpecialRequests)
	patch.CancellationReason = copyPtr(in.CancellationReason)

	if vErr.HasErrors() {
		return persistence.ReservationPatch{}, scope, vErr
	}
	return patch, scope, nil
}

func validateTitle(raw string, vErr *ValidationError) string {
	title := strings.TrimSpace(raw)
	switch {
	case title == "":
		vErr.add("title", "Title is required")
	case utf8.RuneCountInString(title) > maxTitleLength:
		vErr.add("title", fmt.Sprintf("Title cannot exceed %d characters", maxTitleLength))
	}
	return title
}

func requireDateTime(field, label, raw string, vErr *ValidationError) time.Time {
	if strings.TrimSpace(raw) == "" {
		vErr.add(field, label+" is required")
		return time.Time{}
	}
	ts, err := ParseDateTime(raw)
	if err != nil {
		vErr.add(field, label+" must use YYYY-MM-DD HH:MM:SS")
		return time.Time{}
	}
	return ts
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}

func optionalID(value *string) *string {
	trimmed := trimmedPtr(value)
	if trimmed == nil || *trimmed == "" {
		return nil
	}
	return trimmed
}

func copyPtr(value *string) *string {
	if value == nil {
		return nil
	}
	out := *value
	return &out
}
