package http

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/KebabObama/school-reservation/internal/application"
	"github.com/KebabObama/school-reservation/internal/persistence"
)

// flexibleID accepts identifiers sent either as JSON strings or numbers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("id must be a string or a number")
	}
	*f = flexibleID(n.String())
	return nil
}

func (f *flexibleID) ptr() *string {
	if f == nil {
		return nil
	}
	s := string(*f)
	return &s
}

type createReservationRequest struct {
	RoomID            flexibleID  `json:"room_id"`
	Title             string      `json:"title"`
	StartTime         string      `json:"start_time"`
	EndTime           string      `json:"end_time"`
	PurposeID         *flexibleID `json:"purpose_id"`
	Description       string      `json:"description"`
	AttendeesCount    int         `json:"attendees_count"`
	SetupRequirements string      `json:"setup_requirements"`
	SpecialRequests   string      `json:"special_requests"`
	RecurringType     string      `json:"recurring_type"`
	RecurringEndDate  string      `json:"recurring_end_date"`
}

func (r createReservationRequest) input() application.CreateReservationInput {
	return application.CreateReservationInput{
		RoomID:            string(r.RoomID),
		Title:             r.Title,
		StartTime:         r.StartTime,
		EndTime:           r.EndTime,
		PurposeID:         r.PurposeID.ptr(),
		Description:       r.Description,
		AttendeesCount:    r.AttendeesCount,
		SetupRequirements: r.SetupRequirements,
		SpecialRequests:   r.SpecialRequests,
		RecurringType:     r.RecurringType,
		RecurringEndDate:  r.RecurringEndDate,
	}
}

type editReservationRequest struct {
	ID                 *flexibleID `json:"id"`
	RoomID             *flexibleID `json:"room_id"`
	PurposeID          *flexibleID `json:"purpose_id"`
	Title              *string     `json:"title"`
	Description        *string     `json:"description"`
	StartTime          *string     `json:"start_time"`
	EndTime            *string     `json:"end_time"`
	Status             *string     `json:"status"`
	AttendeesCount     *int        `json:"attendees_count"`
	SetupRequirements  *string     `json:"setup_requirements"`
	SpecialRequests    *string     `json:"special_requests"`
	CancellationReason *string     `json:"cancellation_reason"`
	EditScope          string      `json:"edit_scope"`
}

func (r editReservationRequest) input() application.EditReservationInput {
	return application.EditReservationInput{
		RoomID:             r.RoomID.ptr(),
		PurposeID:          r.PurposeID.ptr(),
		Title:              r.Title,
		Description:        r.Description,
		StartTime:          r.StartTime,
		EndTime:            r.EndTime,
		Status:             r.Status,
		AttendeesCount:     r.AttendeesCount,
		SetupRequirements:  r.SetupRequirements,
		SpecialRequests:    r.SpecialRequests,
		CancellationReason: r.CancellationReason,
		EditScope:          r.EditScope,
	}
}

type createReservationResponse struct {
	ReservationID      string `json:"reservation_id"`
	RecurringInstances *int   `json:"recurring_instances,omitempty"`
	TotalReservations  *int   `json:"total_reservations,omitempty"`
}

func newCreateResponse(result application.CreateResult) createReservationResponse {
	resp := createReservationResponse{ReservationID: result.ReservationID}
	if result.Recurring {
		instances, total := result.RecurringInstances, result.TotalReservations
		resp.RecurringInstances = &instances
		resp.TotalReservations = &total
	}
	return resp
}

type editReservationResponse struct {
	Success      bool   `json:"success"`
	AffectedRows int64  `json:"affected_rows"`
	EditScope    string `json:"edit_scope"`
}

type reservationResponse struct {
	ID                  string  `json:"id"`
	RoomID              string  `json:"room_id"`
	UserID              string  `json:"user_id"`
	PurposeID           *string `json:"purpose_id"`
	Title               string  `json:"title"`
	Description         string  `json:"description"`
	StartTime           string  `json:"start_time"`
	EndTime             string  `json:"end_time"`
	Status              string  `json:"status"`
	AttendeesCount      int     `json:"attendees_count"`
	SetupRequirements   string  `json:"setup_requirements"`
	SpecialRequests     string  `json:"special_requests"`
	RecurringType       string  `json:"recurring_type"`
	RecurringEndDate    *string `json:"recurring_end_date"`
	ParentReservationID *string `json:"parent_reservation_id"`
	ApprovedBy          *string `json:"approved_by"`
	ApprovedAt          *string `json:"approved_at"`
	CancelledAt         *string `json:"cancelled_at"`
	CancellationReason  *string `json:"cancellation_reason"`
}

func newReservationResponse(r persistence.Reservation) reservationResponse {
	return reservationResponse{
		ID:                  r.ID,
		RoomID:              r.RoomID,
		UserID:              r.UserID,
		PurposeID:           r.PurposeID,
		Title:               r.Title,
		Description:         r.Description,
		StartTime:           r.StartTime.Format(persistence.DateTimeLayout),
		EndTime:             r.EndTime.Format(persistence.DateTimeLayout),
		Status:              string(r.Status),
		AttendeesCount:      r.AttendeesCount,
		SetupRequirements:   r.SetupRequirements,
		SpecialRequests:     r.SpecialRequests,
		RecurringType:       string(r.RecurringType),
		RecurringEndDate:    formatOptional(r.RecurringEndDate, persistence.DateLayout),
		ParentReservationID: r.ParentReservationID,
		ApprovedBy:          r.ApprovedBy,
		ApprovedAt:          formatOptional(r.ApprovedAt, persistence.DateTimeLayout),
		CancelledAt:         formatOptional(r.CancelledAt, persistence.DateTimeLayout),
		CancellationReason:  r.CancellationReason,
	}
}

type seriesResponse struct {
	Reservations []reservationResponse `json:"reservations"`
}

type availabilityResponse struct {
	Available bool              `json:"available"`
	Conflict  *conflictResponse `json:"conflict,omitempty"`
}

type conflictResponse struct {
	ReservationID string `json:"reservation_id"`
	Title         string `json:"title"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Message       string `json:"message"`
}

func newAvailabilityResponse(a application.Availability) availabilityResponse {
	resp := availabilityResponse{Available: a.Available}
	if a.Conflict != nil {
		resp.Conflict = &conflictResponse{
			ReservationID: a.Conflict.ID,
			Title:         a.Conflict.Title,
			StartTime:     a.Conflict.StartTime.Format(persistence.DateTimeLayout),
			EndTime:       a.Conflict.EndTime.Format(persistence.DateTimeLayout),
			Message:       a.Message,
		}
	}
	return resp
}

type healthResponse struct {
	Status string `json:"status"`
}

func formatOptional(t *time.Time, layout string) *string {
	if t == nil {
		return nil
	}
	s := t.Format(layout)
	return &s
}
