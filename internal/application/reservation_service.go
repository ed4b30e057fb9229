package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/KebabObama/school-reservation/internal/events"
	"github.com/KebabObama/school-reservation/internal/lock"
	"github.com/KebabObama/school-reservation/internal/persistence"
	"github.com/KebabObama/school-reservation/internal/recurrence"
	"github.com/KebabObama/school-reservation/internal/scheduler"
)

const reservationServiceName = "reservation"

// ReservationService coordinates conflict detection, recurrence expansion and
// persistence for booking writes.
type ReservationService struct {
	store     persistence.Store
	locker    lock.RoomLocker
	publisher events.Publisher
	engine    *recurrence.Engine
	now       func() time.Time
	logger    *slog.Logger
}

// NewReservationService wires dependencies for reservation operations. Nil
// collaborators fall back to no-op or default implementations.
func NewReservationService(store persistence.Store, locker lock.RoomLocker, publisher events.Publisher, engine *recurrence.Engine, now func() time.Time, logger *slog.Logger) *ReservationService {
	if locker == nil {
		locker = lock.Noop{}
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	if engine == nil {
		engine = recurrence.NewEngine(recurrence.MaxOccurrences)
	}
	if now == nil {
		now = time.Now
	}
	return &ReservationService{
		store:     store,
		locker:    locker,
		publisher: publisher,
		engine:    engine,
		now:       now,
		logger:    defaultLogger(logger),
	}
}

// Create books a room for a single interval or for every occurrence of a
// recurring series. Either all rows are written or none are.
func (s *ReservationService) Create(ctx context.Context, params CreateReservationParams) (CreateResult, error) {
	if s == nil || s.store == nil {
		return CreateResult{}, fmt.Errorf("reservation service not configured")
	}
	logger := serviceLogger(ctx, s.logger, reservationServiceName, "create", "room_id", params.Input.RoomID)

	result, err := s.create(ctx, params)
	if err != nil {
		logFailure(ctx, logger, "create reservation failed", err)
		return CreateResult{}, err
	}
	logger.InfoContext(ctx, "reservation created",
		"reservation_id", result.ReservationID,
		"total_reservations", result.TotalReservations,
	)
	return result, nil
}

func (s *ReservationService) create(ctx context.Context, params CreateReservationParams) (CreateResult, error) {
	principal := params.Principal
	if principal.UserID == "" {
		return CreateResult{}, ErrUnauthorized
	}

	plan, err := validateCreate(params.Input)
	if err != nil {
		return CreateResult{}, err
	}

	intervals := []recurrence.Interval{{Start: plan.template.StartTime, End: plan.template.EndTime}}
	if plan.recurring {
		intervals, err = s.engine.Expand(plan.template.StartTime, plan.template.EndTime, plan.frequency, plan.until)
		if err != nil {
			if errors.Is(err, recurrence.ErrInvalidDuration) {
				return CreateResult{}, ErrInvalidInterval
			}
			return CreateResult{}, fieldError("recurring_type", err.Error())
		}
	}

	if err := ensureDisjoint(intervals); err != nil {
		return CreateResult{}, err
	}

	unlock, err := s.lockRooms(ctx, plan.template.RoomID)
	if err != nil {
		return CreateResult{}, err
	}
	defer unlock()

	var ids []string
	err = s.store.WithinTx(ctx, func(tx persistence.IntervalStore) error {
		if err := ensureRoomBookable(ctx, tx, plan.template.RoomID, plan.template.AttendeesCount); err != nil {
			return err
		}

		for _, iv := range intervals {
			conflict, err := scheduler.FindConflict(ctx, tx, scheduler.Query{
				RoomID: plan.template.RoomID,
				Start:  iv.Start,
				End:    iv.End,
			})
			if err != nil {
				return mapSchedulerError(err)
			}
			if conflict != nil {
				if plan.recurring {
					return newOccurrenceConflict(*conflict, iv.Start)
				}
				return newConflict(*conflict)
			}
		}

		parent := plan.template
		parent.UserID = principal.UserID
		parent.Status = persistence.StatusPending
		parentID, err := tx.InsertReservation(ctx, parent)
		if err != nil {
			return err
		}
		ids = append(ids, parentID)

		if len(intervals) > 1 {
			children := make([]persistence.Reservation, 0, len(intervals)-1)
			for _, iv := range intervals[1:] {
				children = append(children, childOf(parent, parentID, iv))
			}
			childIDs, err := tx.BulkInsertReservations(ctx, children)
			if err != nil {
				return err
			}
			ids = append(ids, childIDs...)
		}
		return nil
	})
	if err != nil {
		return CreateResult{}, mapStoreError("create reservation", err)
	}

	result := CreateResult{
		ReservationID:     ids[0],
		Recurring:         plan.recurring,
		TotalReservations: len(ids),
	}
	if plan.recurring {
		result.RecurringInstances = len(ids) - 1
	}

	s.publish(ctx, events.Event{
		Type:          events.TypeReservationCreated,
		ReservationID: result.ReservationID,
		RoomID:        plan.template.RoomID,
		UserID:        principal.UserID,
		OccurrenceIDs: ids[1:],
		OccurredAt:    wallClock(s.now()),
	})
	return result, nil
}

// ensureDisjoint rejects a series whose occurrences would collide with each
// other. Intervals arrive sorted by start and share one duration, so checking
// neighbours is enough.
func ensureDisjoint(intervals []recurrence.Interval) error {
	for i := 1; i < len(intervals); i++ {
		if intervals[i].Start.Before(intervals[i-1].End) {
			return fieldError("recurring_type", "Reservation duration must be shorter than the recurrence interval")
		}
	}
	return nil
}

// childOf clones the descriptive fields of parent onto one later occurrence.
func childOf(parent persistence.Reservation, parentID string, iv recurrence.Interval) persistence.Reservation {
	child := parent
	child.ID = ""
	child.StartTime = iv.Start
	child.EndTime = iv.End
	child.RecurringType = persistence.RecurringNone
	child.RecurringEndDate = nil
	root := parentID
	child.ParentReservationID = &root
	if parent.PurposeID != nil {
		purpose := *parent.PurposeID
		child.PurposeID = &purpose
	}
	return child
}

// Edit applies a patch to one occurrence or to a whole series. Series scope
// only propagates the fields every occurrence shares.
func (s *ReservationService) Edit(ctx context.Context, params EditReservationParams) (EditResult, error) {
	if s == nil || s.store == nil {
		return EditResult{}, fmt.Errorf("reservation service not configured")
	}
	logger := serviceLogger(ctx, s.logger, reservationServiceName, "edit", "reservation_id", params.ReservationID)

	result, err := s.edit(ctx, params)
	if err != nil {
		logFailure(ctx, logger, "edit reservation failed", err)
		return EditResult{}, err
	}
	logger.InfoContext(ctx, "reservation edited",
		"edit_scope", result.EditScope,
		"affected_rows", result.AffectedRows,
	)
	return result, nil
}

func (s *ReservationService) edit(ctx context.Context, params EditReservationParams) (EditResult, error) {
	principal := params.Principal
	if principal.UserID == "" {
		return EditResult{}, ErrUnauthorized
	}

	patch, scope, err := buildPatch(params.Input)
	if err != nil {
		return EditResult{}, err
	}

	existing, err := s.store.GetReservation(ctx, params.ReservationID)
	if err != nil {
		return EditResult{}, mapStoreError("load reservation", err)
	}
	if !mayEdit(existing, principal) {
		return EditResult{}, ErrUnauthorized
	}
	if patch.IsEmpty() {
		return EditResult{}, ErrNoOp
	}
	if scope == EditScopeSeries && patch.SeriesShared().IsEmpty() {
		return EditResult{}, ErrNoOp
	}

	rootID := existing.SeriesRootID()
	activating := patch.Status != nil && patch.Status.Active()

	rooms := []string{existing.RoomID}
	if patch.RoomID != nil {
		rooms = append(rooms, *patch.RoomID)
	}
	if scope == EditScopeSeries && activating {
		members, err := s.store.ListSeries(ctx, rootID)
		if err != nil {
			return EditResult{}, mapStoreError("list series", err)
		}
		for _, member := range members {
			rooms = append(rooms, member.RoomID)
		}
	}

	unlock, err := s.lockRooms(ctx, rooms...)
	if err != nil {
		return EditResult{}, err
	}
	defer unlock()

	var (
		affected int64
		applied  persistence.ReservationPatch
	)
	err = s.store.WithinTx(ctx, func(tx persistence.IntervalStore) error {
		current, err := tx.GetReservation(ctx, existing.ID)
		if err != nil {
			return err
		}
		if !mayEdit(current, principal) {
			return ErrUnauthorized
		}
		if decidesApproval(patch, current) && !principal.IsAdmin {
			return ErrUnauthorized
		}

		applied = s.stampStatus(patch, current, principal)
		if scope == EditScopeSeries {
			applied = applied.SeriesShared()
		}

		merged := applied.Apply(current)
		if !merged.EndTime.After(merged.StartTime) {
			return ErrInvalidInterval
		}

		if applied.RoomID != nil || applied.AttendeesCount != nil {
			if err := ensureRoomBookable(ctx, tx, merged.RoomID, merged.AttendeesCount); err != nil {
				return err
			}
		}

		checked := false
		if needsRecheck(current, applied) && merged.Status.Active() {
			conflict, err := scheduler.FindConflict(ctx, tx, scheduler.Query{
				RoomID:    merged.RoomID,
				Start:     merged.StartTime,
				End:       merged.EndTime,
				ExcludeID: current.ID,
			})
			if err != nil {
				return mapSchedulerError(err)
			}
			if conflict != nil {
				return newConflict(*conflict)
			}
			checked = true
		}

		if scope == EditScopeSeries && activating {
			skipID := ""
			if checked {
				skipID = current.ID
			}
			if err := checkInactiveMembers(ctx, tx, rootID, skipID); err != nil {
				return err
			}
		}

		target := persistence.UpdateTarget{ID: current.ID, Scope: persistence.ScopeRow}
		if scope == EditScopeSeries {
			target = persistence.UpdateTarget{ID: rootID, Scope: persistence.ScopeSeries}
		}
		affected, err = tx.UpdateReservations(ctx, target, applied)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNoOp
		}
		return nil
	})
	if err != nil {
		return EditResult{}, mapStoreError("edit reservation", err)
	}

	columns := make([]string, 0)
	for _, assignment := range applied.Assignments() {
		columns = append(columns, string(assignment.Column))
	}
	s.publish(ctx, events.Event{
		Type:           events.TypeReservationUpdated,
		ReservationID:  existing.ID,
		RoomID:         existing.RoomID,
		UserID:         principal.UserID,
		EditScope:      string(scope),
		AffectedRows:   affected,
		ChangedColumns: columns,
		OccurredAt:     wallClock(s.now()),
	})

	return EditResult{AffectedRows: affected, EditScope: scope}, nil
}

func mayEdit(r persistence.Reservation, principal Principal) bool {
	return principal.IsAdmin || r.UserID == principal.UserID
}

// needsRecheck reports whether the patch can introduce a new collision: the
// room or interval moves, or the status enters or moves within the active set.
func needsRecheck(current persistence.Reservation, patch persistence.ReservationPatch) bool {
	if patch.RoomID != nil && *patch.RoomID != current.RoomID {
		return true
	}
	if patch.StartTime != nil && !patch.StartTime.Equal(current.StartTime) {
		return true
	}
	if patch.EndTime != nil && !patch.EndTime.Equal(current.EndTime) {
		return true
	}
	return patch.Status != nil && *patch.Status != current.Status && patch.Status.Active()
}

// checkInactiveMembers re-validates every rejected or cancelled occurrence of
// a series that a series-wide status edit is about to make active. Members
// that are already active hold their slot. skipID has already been checked by
// the caller.
func checkInactiveMembers(ctx context.Context, tx persistence.IntervalStore, rootID, skipID string) error {
	members, err := tx.ListSeries(ctx, rootID)
	if err != nil {
		return err
	}
	for _, member := range members {
		if member.ID == skipID || member.Status.Active() {
			continue
		}
		conflict, err := scheduler.FindConflict(ctx, tx, scheduler.Query{
			RoomID:    member.RoomID,
			Start:     member.StartTime,
			End:       member.EndTime,
			ExcludeID: rootID,
		})
		if err != nil {
			return mapSchedulerError(err)
		}
		if conflict != nil {
			return newOccurrenceConflict(*conflict, member.StartTime)
		}
	}
	return nil
}

func decidesApproval(patch persistence.ReservationPatch, current persistence.Reservation) bool {
	if patch.Status == nil || *patch.Status == current.Status {
		return false
	}
	return *patch.Status == persistence.StatusAccepted || *patch.Status == persistence.StatusRejected
}

// stampStatus returns patch with who decided a booking and when it was
// decided or cancelled.
func (s *ReservationService) stampStatus(patch persistence.ReservationPatch, current persistence.Reservation, principal Principal) persistence.ReservationPatch {
	if patch.Status == nil || *patch.Status == current.Status {
		return patch
	}
	now := wallClock(s.now())
	switch *patch.Status {
	case persistence.StatusAccepted, persistence.StatusRejected:
		by := principal.UserID
		patch.ApprovedBy = &by
		patch.ApprovedAt = &now
	case persistence.StatusCancelled:
		patch.CancelledAt = &now
	}
	return patch
}

// CheckAvailability runs conflict detection without writing anything.
func (s *ReservationService) CheckAvailability(ctx context.Context, query AvailabilityQuery) (Availability, error) {
	if s == nil || s.store == nil {
		return Availability{}, fmt.Errorf("reservation service not configured")
	}
	logger := serviceLogger(ctx, s.logger, reservationServiceName, "check_availability", "room_id", query.RoomID)

	availability, err := s.checkAvailability(ctx, query)
	if err != nil {
		logFailure(ctx, logger, "availability check failed", err)
		return Availability{}, err
	}
	logger.DebugContext(ctx, "availability checked", "available", availability.Available)
	return availability, nil
}

func (s *ReservationService) checkAvailability(ctx context.Context, query AvailabilityQuery) (Availability, error) {
	vErr := &ValidationError{}
	if query.RoomID == "" {
		vErr.add("room_id", "Room is required")
	}
	start := requireDateTime("start_time", "Start time", query.StartTime, vErr)
	end := requireDateTime("end_time", "End time", query.EndTime, vErr)
	if vErr.HasErrors() {
		return Availability{}, vErr
	}
	if !end.After(start) {
		return Availability{}, ErrInvalidInterval
	}

	if _, err := s.store.GetRoom(ctx, query.RoomID); err != nil {
		return Availability{}, mapStoreError("load room", err)
	}

	conflict, err := scheduler.FindConflict(ctx, s.store, scheduler.Query{
		RoomID:    query.RoomID,
		Start:     start,
		End:       end,
		ExcludeID: query.ExcludeID,
	})
	if err != nil {
		return Availability{}, mapStoreError("find conflict", mapSchedulerError(err))
	}
	if conflict == nil {
		return Availability{Available: true}, nil
	}
	return Availability{Conflict: conflict, Message: scheduler.FormatConflict(*conflict)}, nil
}

// ListSeries returns every occurrence of the series id belongs to, root first.
func (s *ReservationService) ListSeries(ctx context.Context, id string) ([]persistence.Reservation, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("reservation service not configured")
	}
	logger := serviceLogger(ctx, s.logger, reservationServiceName, "list_series", "reservation_id", id)

	reservation, err := s.store.GetReservation(ctx, id)
	if err != nil {
		err = mapStoreError("load reservation", err)
		logFailure(ctx, logger, "list series failed", err)
		return nil, err
	}
	series, err := s.store.ListSeries(ctx, reservation.SeriesRootID())
	if err != nil {
		err = mapStoreError("list series", err)
		logFailure(ctx, logger, "list series failed", err)
		return nil, err
	}
	return series, nil
}

// lockRooms takes the room locks in a stable order and returns a release
// function for all of them.
func (s *ReservationService) lockRooms(ctx context.Context, roomIDs ...string) (lock.Unlock, error) {
	seen := make(map[string]struct{}, len(roomIDs))
	ordered := make([]string, 0, len(roomIDs))
	for _, id := range roomIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	held := make([]lock.Unlock, 0, len(ordered))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
	for _, id := range ordered {
		unlock, err := s.locker.Lock(ctx, id)
		if err != nil {
			release()
			return nil, &StoreError{Op: "lock room " + id, Err: err}
		}
		held = append(held, unlock)
	}
	return release, nil
}

func (s *ReservationService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		serviceLogger(ctx, s.logger, reservationServiceName, "publish").
			WarnContext(ctx, "failed to publish reservation event", "type", event.Type, "reservation_id", event.ReservationID, "error", err)
	}
}

type roomReader interface {
	GetRoom(ctx context.Context, id string) (persistence.Room, error)
}

// ensureRoomBookable checks the room exists, accepts bookings and fits the party.
func ensureRoomBookable(ctx context.Context, rooms roomReader, roomID string, attendees int) error {
	room, err := rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return fmt.Errorf("room %s: %w", roomID, ErrNotFound)
		}
		return err
	}
	if !room.IsActive {
		return fmt.Errorf("room %s is not active: %w", roomID, ErrNotFound)
	}
	if room.Capacity > 0 && attendees > room.Capacity {
		return fieldError("attendees_count", fmt.Sprintf("Attendees count exceeds room capacity of %d", room.Capacity))
	}
	return nil
}

func mapSchedulerError(err error) error {
	if errors.Is(err, scheduler.ErrInvalidInterval) {
		return ErrInvalidInterval
	}
	return err
}

func newConflict(conflict persistence.Reservation) *ConflictError {
	return &ConflictError{Message: scheduler.FormatConflict(conflict), Conflict: conflict}
}

func newOccurrenceConflict(conflict persistence.Reservation, occurrence time.Time) *ConflictError {
	date := truncateToDate(occurrence)
	return &ConflictError{
		Message:    scheduler.FormatOccurrenceConflict(conflict, occurrence),
		Conflict:   conflict,
		Occurrence: &date,
	}
}

// wallClock drops the zone of t while keeping its local reading, matching how
// reservation timestamps are stored.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}
