package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KebabObama/school-reservation/internal/persistence"
)

const reservationColumns = `id, room_id, user_id, purpose_id, title, description, start_time, end_time, status,
	attendees_count, setup_requirements, special_requests, recurring_type, recurring_end_date,
	parent_reservation_id, approved_by, approved_at, cancelled_at, cancellation_reason, created_at, updated_at`

const reservationColumnCount = 21

// bulkChunk keeps multi-row inserts under SQLite's bound-parameter limit.
const bulkChunk = 40

// repository implements persistence.IntervalStore on top of a queryer.
type repository struct {
	q       queryer
	dialect Dialect
	inTx    bool
	newID   func() string
	now     func() time.Time
}

var _ persistence.IntervalStore = repository{}

func (r repository) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	if id == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	row := r.q.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	reservation, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Reservation{}, persistence.ErrNotFound
		}
		return persistence.Reservation{}, mapError(err)
	}
	return reservation, nil
}

func (r repository) QueryOverlapping(ctx context.Context, roomID string, start, end time.Time, statuses []persistence.Status) ([]persistence.Reservation, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(statuses)+3)
	args = append(args, roomID)
	for _, status := range statuses {
		args = append(args, string(status))
	}
	args = append(args, formatDateTime(end), formatDateTime(start))

	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE room_id = ? AND status IN (` + placeholders(len(statuses)) + `)
		AND start_time < ? AND end_time > ?
		ORDER BY start_time, id`
	if r.inTx && r.dialect == DialectMySQL {
		// Locks the scanned range until commit so concurrent writers serialise.
		query += ` FOR UPDATE`
	}

	return r.list(ctx, query, args...)
}

func (r repository) ListSeries(ctx context.Context, rootID string) ([]persistence.Reservation, error) {
	return r.list(ctx, `SELECT `+reservationColumns+` FROM reservations
		WHERE id = ? OR parent_reservation_id = ?
		ORDER BY start_time, id`, rootID, rootID)
}

func (r repository) list(ctx context.Context, query string, args ...any) ([]persistence.Reservation, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]persistence.Reservation, 0)
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, mapError(err)
		}
		out = append(out, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func (r repository) InsertReservation(ctx context.Context, reservation persistence.Reservation) (string, error) {
	ids, err := r.BulkInsertReservations(ctx, []persistence.Reservation{reservation})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

func (r repository) BulkInsertReservations(ctx context.Context, reservations []persistence.Reservation) ([]string, error) {
	if len(reservations) == 0 {
		return nil, nil
	}

	now := r.now()
	ids := make([]string, 0, len(reservations))
	for start := 0; start < len(reservations); start += bulkChunk {
		end := start + bulkChunk
		if end > len(reservations) {
			end = len(reservations)
		}
		chunk := reservations[start:end]

		var sb strings.Builder
		sb.WriteString(`INSERT INTO reservations (` + reservationColumns + `) VALUES `)
		args := make([]any, 0, len(chunk)*reservationColumnCount)
		for i, reservation := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(" + placeholders(reservationColumnCount) + ")")

			if reservation.ID == "" {
				reservation.ID = r.newID()
			}
			if reservation.CreatedAt.IsZero() {
				reservation.CreatedAt = now
			}
			if reservation.UpdatedAt.IsZero() {
				reservation.UpdatedAt = reservation.CreatedAt
			}
			args = append(args, reservationArgs(reservation)...)
			ids = append(ids, reservation.ID)
		}

		if _, err := r.q.ExecContext(ctx, sb.String(), args...); err != nil {
			return nil, fmt.Errorf("insert reservations: %w", mapError(err))
		}
	}
	return ids, nil
}

func (r repository) UpdateReservations(ctx context.Context, target persistence.UpdateTarget, patch persistence.ReservationPatch) (int64, error) {
	assignments := patch.Assignments()
	if len(assignments) == 0 || target.ID == "" {
		return 0, nil
	}

	sets := make([]string, 0, len(assignments)+1)
	args := make([]any, 0, len(assignments)+3)
	for _, assignment := range assignments {
		sets = append(sets, string(assignment.Column)+" = ?")
		args = append(args, bindValue(assignment.Value))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, formatDateTime(r.now()))

	query := `UPDATE reservations SET ` + strings.Join(sets, ", ")
	switch target.Scope {
	case persistence.ScopeSeries:
		query += ` WHERE id = ? OR parent_reservation_id = ?`
		args = append(args, target.ID, target.ID)
	default:
		query += ` WHERE id = ?`
		args = append(args, target.ID)
	}

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update reservations: %w", mapError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update reservations: rows affected: %w", err)
	}
	return affected, nil
}

func (r repository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	if id == "" {
		return persistence.Room{}, persistence.ErrNotFound
	}
	var (
		room    persistence.Room
		created nullTime
	)
	err := r.q.QueryRowContext(ctx, `SELECT id, name, capacity, is_active, created_at FROM rooms WHERE id = ?`, id).
		Scan(&room.ID, &room.Name, &room.Capacity, &room.IsActive, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Room{}, persistence.ErrNotFound
		}
		return persistence.Room{}, mapError(err)
	}
	room.CreatedAt = created.Time
	return room, nil
}

func (r repository) CreateRoom(ctx context.Context, room persistence.Room) (persistence.Room, error) {
	if room.ID == "" {
		room.ID = r.newID()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = r.now()
	}
	_, err := r.q.ExecContext(ctx, `INSERT INTO rooms (id, name, capacity, is_active, created_at) VALUES (?, ?, ?, ?, ?)`,
		room.ID, room.Name, room.Capacity, room.IsActive, formatDateTime(room.CreatedAt))
	if err != nil {
		return persistence.Room{}, fmt.Errorf("insert room: %w", mapError(err))
	}
	return room, nil
}

func reservationArgs(r persistence.Reservation) []any {
	recurringType := r.RecurringType
	if recurringType == "" {
		recurringType = persistence.RecurringNone
	}
	return []any{
		r.ID,
		r.RoomID,
		r.UserID,
		nullString(r.PurposeID),
		r.Title,
		r.Description,
		formatDateTime(r.StartTime),
		formatDateTime(r.EndTime),
		string(r.Status),
		r.AttendeesCount,
		r.SetupRequirements,
		r.SpecialRequests,
		string(recurringType),
		nullDate(r.RecurringEndDate),
		nullString(r.ParentReservationID),
		nullString(r.ApprovedBy),
		nullDateTime(r.ApprovedAt),
		nullDateTime(r.CancelledAt),
		nullString(r.CancellationReason),
		formatDateTime(r.CreatedAt),
		formatDateTime(r.UpdatedAt),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var (
		r                                          persistence.Reservation
		purposeID, parentID, approvedBy, reason    sql.NullString
		status, recurringType                      string
		start, end, endDate, approvedAt, cancelled nullTime
		created, updated                           nullTime
	)
	err := row.Scan(
		&r.ID, &r.RoomID, &r.UserID, &purposeID, &r.Title, &r.Description,
		&start, &end, &status, &r.AttendeesCount, &r.SetupRequirements, &r.SpecialRequests,
		&recurringType, &endDate, &parentID, &approvedBy, &approvedAt, &cancelled, &reason,
		&created, &updated,
	)
	if err != nil {
		return persistence.Reservation{}, err
	}

	r.Status = persistence.Status(status)
	r.RecurringType = persistence.RecurringType(recurringType)
	r.StartTime = start.Time
	r.EndTime = end.Time
	r.CreatedAt = created.Time
	r.UpdatedAt = updated.Time
	r.PurposeID = stringPtr(purposeID)
	r.ParentReservationID = stringPtr(parentID)
	r.ApprovedBy = stringPtr(approvedBy)
	r.CancellationReason = stringPtr(reason)
	r.RecurringEndDate = endDate.ptr()
	r.ApprovedAt = approvedAt.ptr()
	r.CancelledAt = cancelled.ptr()
	return r, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
