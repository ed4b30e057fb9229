package sqlstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KebabObama/school-reservation/internal/persistence"
	"github.com/KebabObama/school-reservation/internal/recurrence"
	"github.com/KebabObama/school-reservation/internal/testfixtures"
)

func TestStore_SeriesRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := testfixtures.NewSQLiteHarness(t)
	room := h.SeedRoom(t)

	start := testfixtures.At(2024, time.January, 1, 9, 0)
	until := testfixtures.Date(2024, time.January, 22)
	intervals, err := recurrence.Expand(start, start.Add(time.Hour), recurrence.FrequencyWeekly, until)
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}

	parent := testfixtures.NewReservation(room.ID,
		testfixtures.WithReservationID(""),
		testfixtures.WithInterval(intervals[0].Start, intervals[0].End),
		testfixtures.WithRecurrence(persistence.RecurringWeekly, until),
	)

	var parentID string
	err = h.Store.WithinTx(ctx, func(tx persistence.IntervalStore) error {
		id, err := tx.InsertReservation(ctx, parent)
		if err != nil {
			return err
		}
		parentID = id
		children := make([]persistence.Reservation, 0, len(intervals)-1)
		for _, iv := range intervals[1:] {
			children = append(children, testfixtures.NewReservation(room.ID,
				testfixtures.WithReservationID(""),
				testfixtures.WithInterval(iv.Start, iv.End),
				testfixtures.WithParent(id),
			))
		}
		_, err = tx.BulkInsertReservations(ctx, children)
		return err
	})
	if err != nil {
		t.Fatalf("WithinTx returned error: %v", err)
	}

	series, err := h.Store.ListSeries(ctx, parentID)
	if err != nil {
		t.Fatalf("ListSeries returned error: %v", err)
	}
	if len(series) != len(intervals) {
		t.Fatalf("expected %d rows, got %d", len(intervals), len(series))
	}
	for i, row := range series {
		if !row.StartTime.Equal(intervals[i].Start) || !row.EndTime.Equal(intervals[i].End) {
			t.Fatalf("row %d: expected [%s, %s), got [%s, %s)", i, intervals[i].Start, intervals[i].End, row.StartTime, row.EndTime)
		}
	}
	if series[0].ID != parentID || series[0].RecurringEndDate == nil || !series[0].RecurringEndDate.Equal(until) {
		t.Fatalf("unexpected parent row: %+v", series[0])
	}
	issued := make(map[string]bool)
	for _, id := range h.IDs.Issued() {
		issued[id] = true
	}
	for _, row := range series {
		if !issued[row.ID] {
			t.Fatalf("row id %q was not assigned by the store id generator", row.ID)
		}
	}
	for _, child := range series[1:] {
		if child.ParentReservationID == nil || *child.ParentReservationID != parentID {
			t.Fatalf("child %s not linked to parent", child.ID)
		}
		if child.RecurringType != persistence.RecurringNone || child.RecurringEndDate != nil {
			t.Fatalf("child %s should not carry recurrence", child.ID)
		}
	}
}

func TestStore_QueryOverlapping(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := testfixtures.NewSQLiteHarness(t)
	room := h.SeedRoom(t)
	other := h.SeedRoom(t)

	day := func(hour, minute int) time.Time { return testfixtures.At(2024, time.January, 10, hour, minute) }
	h.SeedReservation(t,
		testfixtures.NewReservation(room.ID, testfixtures.WithReservationID("accepted"), testfixtures.WithInterval(day(9, 0), day(10, 0)), testfixtures.WithStatus(persistence.StatusAccepted)),
		testfixtures.NewReservation(room.ID, testfixtures.WithReservationID("pending"), testfixtures.WithInterval(day(8, 0), day(9, 15)), testfixtures.WithStatus(persistence.StatusPending)),
		testfixtures.NewReservation(room.ID, testfixtures.WithReservationID("cancelled"), testfixtures.WithInterval(day(9, 0), day(10, 0)), testfixtures.WithStatus(persistence.StatusCancelled)),
		testfixtures.NewReservation(other.ID, testfixtures.WithReservationID("elsewhere"), testfixtures.WithInterval(day(9, 0), day(10, 0)), testfixtures.WithStatus(persistence.StatusAccepted)),
	)

	rows, err := h.Store.QueryOverlapping(ctx, room.ID, day(9, 0), day(9, 30), persistence.ActiveStatuses())
	if err != nil {
		t.Fatalf("QueryOverlapping returned error: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != "pending" || rows[1].ID != "accepted" {
		t.Fatalf("expected [pending accepted] ordered by start, got %+v", ids(rows))
	}

	rows, err = h.Store.QueryOverlapping(ctx, room.ID, day(10, 0), day(11, 0), persistence.ActiveStatuses())
	if err != nil {
		t.Fatalf("QueryOverlapping returned error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected touching interval to be free, got %v", ids(rows))
	}
}

func TestStore_UpdateReservations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := testfixtures.NewSQLiteHarness(t)
	room := h.SeedRoom(t)

	first := testfixtures.At(2024, time.January, 1, 9, 0)
	solo := testfixtures.NewReservation(room.ID, testfixtures.WithReservationID("solo"), testfixtures.WithInterval(first.AddDate(0, 0, 1), first.AddDate(0, 0, 1).Add(time.Hour)))
	purpose := "lecture"
	solo.PurposeID = &purpose
	h.SeedReservation(t,
		testfixtures.NewReservation(room.ID, testfixtures.WithReservationID("root"), testfixtures.WithInterval(first, first.Add(time.Hour))),
		testfixtures.NewReservation(room.ID, testfixtures.WithReservationID("child"), testfixtures.WithInterval(first.AddDate(0, 0, 7), first.AddDate(0, 0, 7).Add(time.Hour)), testfixtures.WithParent("root")),
		solo,
	)

	title := "Renamed series"
	stamped := h.Clock.Advance(2 * time.Hour)
	affected, err := h.Store.UpdateReservations(ctx, persistence.UpdateTarget{ID: "root", Scope: persistence.ScopeSeries}, persistence.ReservationPatch{Title: &title})
	if err != nil {
		t.Fatalf("UpdateReservations returned error: %v", err)
	}
	if affected != 2 {
		t.Fatalf("expected 2 affected rows, got %d", affected)
	}

	child, err := h.Store.GetReservation(ctx, "child")
	if err != nil {
		t.Fatalf("GetReservation returned error: %v", err)
	}
	if child.Title != title || !child.StartTime.Equal(first.AddDate(0, 0, 7)) {
		t.Fatalf("unexpected child after update: %+v", child)
	}
	if !child.UpdatedAt.Equal(stamped) {
		t.Fatalf("expected updated_at %v, got %v", stamped, child.UpdatedAt)
	}
	solo, err = h.Store.GetReservation(ctx, "solo")
	if err != nil {
		t.Fatalf("GetReservation returned error: %v", err)
	}
	if solo.Title == title {
		t.Fatalf("series update leaked to an unrelated row")
	}

	blank := ""
	if _, err := h.Store.UpdateReservations(ctx, persistence.UpdateTarget{ID: "solo", Scope: persistence.ScopeRow}, persistence.ReservationPatch{PurposeID: &blank}); err != nil {
		t.Fatalf("UpdateReservations returned error: %v", err)
	}
	solo, err = h.Store.GetReservation(ctx, "solo")
	if err != nil {
		t.Fatalf("GetReservation returned error: %v", err)
	}
	if solo.PurposeID != nil {
		t.Fatalf("expected blank purpose to be stored as NULL, got %q", *solo.PurposeID)
	}

	affected, err = h.Store.UpdateReservations(ctx, persistence.UpdateTarget{ID: "missing"}, persistence.ReservationPatch{Title: &title})
	if err != nil {
		t.Fatalf("UpdateReservations returned error: %v", err)
	}
	if affected != 0 {
		t.Fatalf("expected no rows for a missing id, got %d", affected)
	}
}

func TestStore_WithinTxRollsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := testfixtures.NewSQLiteHarness(t)
	room := h.SeedRoom(t)

	boom := errors.New("abort")
	err := h.Store.WithinTx(ctx, func(tx persistence.IntervalStore) error {
		if _, err := tx.InsertReservation(ctx, testfixtures.NewReservation(room.ID, testfixtures.WithReservationID("orphan"))); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected abort error, got %v", err)
	}

	if _, err := h.Store.GetReservation(ctx, "orphan"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected rolled back row to be missing, got %v", err)
	}
}

func TestStore_ErrorMapping(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := testfixtures.NewSQLiteHarness(t)

	if _, err := h.Store.GetRoom(ctx, "nope"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing room, got %v", err)
	}

	_, err := h.Store.InsertReservation(ctx, testfixtures.NewReservation("no-such-room"))
	if !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
	}

	room := h.SeedRoom(t)
	start := testfixtures.At(2024, time.January, 1, 9, 0)
	_, err = h.Store.InsertReservation(ctx, testfixtures.NewReservation(room.ID, testfixtures.WithInterval(start, start)))
	if !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation for empty interval, got %v", err)
	}

	dup := testfixtures.NewReservation(room.ID, testfixtures.WithReservationID("dup"))
	h.SeedReservation(t, dup)
	if _, err := h.Store.InsertReservation(ctx, dup); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func ids(rows []persistence.Reservation) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ID)
	}
	return out
}
