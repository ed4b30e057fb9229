// Package scheduler decides whether a candidate interval collides with the
// active reservations of a room.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/KebabObama/school-reservation/internal/persistence"
)

// ErrInvalidInterval indicates the candidate does not end after it starts.
var ErrInvalidInterval = errors.New("scheduler: end time must be after start time")

// Reader is the read side of the interval store used for detection.
type Reader interface {
	GetReservation(ctx context.Context, id string) (persistence.Reservation, error)
	QueryOverlapping(ctx context.Context, roomID string, start, end time.Time, statuses []persistence.Status) ([]persistence.Reservation, error)
}

// Query describes one conflict check.
type Query struct {
	RoomID    string
	Start     time.Time
	End       time.Time
	ExcludeID string
}

// Exclusion removes a reservation and its whole series from a scan.
type Exclusion struct {
	ID     string
	RootID string
}

// Excludes reports whether r belongs to the excluded reservation or its series.
func (e Exclusion) Excludes(r persistence.Reservation) bool {
	if e.ID == "" && e.RootID == "" {
		return false
	}
	if r.ID == e.ID || r.ID == e.RootID {
		return true
	}
	return e.RootID != "" && r.ParentReservationID != nil && *r.ParentReservationID == e.RootID
}

// Overlaps applies the half-open rule: touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// ResolveExclusion maps id onto its series root. An id the store does not
// know is excluded on its own.
func ResolveExclusion(ctx context.Context, reader Reader, id string) (Exclusion, error) {
	if id == "" {
		return Exclusion{}, nil
	}
	existing, err := reader.GetReservation(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Exclusion{ID: id, RootID: id}, nil
		}
		return Exclusion{}, err
	}
	return Exclusion{ID: id, RootID: existing.SeriesRootID()}, nil
}

// FirstConflict scans rows for the earliest active reservation in roomID that
// overlaps [start, end) and is not excluded.
func FirstConflict(rows []persistence.Reservation, roomID string, start, end time.Time, exclusion Exclusion) (persistence.Reservation, bool) {
	candidates := make([]persistence.Reservation, 0, len(rows))
	for _, row := range rows {
		if row.RoomID != roomID || !row.Status.Active() {
			continue
		}
		if !Overlaps(row.StartTime, row.EndTime, start, end) {
			continue
		}
		if exclusion.Excludes(row) {
			continue
		}
		candidates = append(candidates, row)
	}
	if len(candidates) == 0 {
		return persistence.Reservation{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].StartTime.Before(candidates[j].StartTime)
	})
	return candidates[0], true
}

// FindConflict returns the first active reservation colliding with q, or nil.
func FindConflict(ctx context.Context, reader Reader, q Query) (*persistence.Reservation, error) {
	if !q.End.After(q.Start) {
		return nil, ErrInvalidInterval
	}

	exclusion, err := ResolveExclusion(ctx, reader, q.ExcludeID)
	if err != nil {
		return nil, fmt.Errorf("resolve exclusion: %w", err)
	}

	rows, err := reader.QueryOverlapping(ctx, q.RoomID, q.Start, q.End, persistence.ActiveStatuses())
	if err != nil {
		return nil, fmt.Errorf("query overlapping reservations: %w", err)
	}

	conflict, ok := FirstConflict(rows, q.RoomID, q.Start, q.End, exclusion)
	if !ok {
		return nil, nil
	}
	return &conflict, nil
}

// FormatConflict renders the user-facing message for a conflicting row.
func FormatConflict(r persistence.Reservation) string {
	return fmt.Sprintf("Time conflict: Room is already reserved from %s to %s for '%s'",
		r.StartTime.Format(persistence.DateTimeLayout),
		r.EndTime.Format(persistence.DateTimeLayout),
		r.Title,
	)
}

// FormatOccurrenceConflict names the occurrence date that failed.
func FormatOccurrenceConflict(r persistence.Reservation, occurrence time.Time) string {
	return fmt.Sprintf("%s (recurring occurrence on %s)", FormatConflict(r), occurrence.Format(persistence.DateLayout))
}
