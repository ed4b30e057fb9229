package testfixtures

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/KebabObama/school-reservation/internal/persistence"
	"github.com/KebabObama/school-reservation/internal/persistence/sqlstore"
)

// SQLiteHarness is a migrated SQLite database living in a test temp dir.
type SQLiteHarness struct {
	Store *sqlstore.Store
	Clock *Clock
	IDs   *IDGenerator
}

// NewSQLiteHarness opens and migrates a fresh database. It is closed through
// tb.Cleanup.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "reservations.db")
	clock := NewClock(ReferenceTime())
	ids := NewIDGenerator("res")

	ctx := context.Background()
	store, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver: sqlstore.DialectSQLite,
		DSN:    fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path),
	}, sqlstore.WithIDGenerator(ids.NextFunc()), sqlstore.WithClock(clock.NowFunc()))
	if err != nil {
		tb.Fatalf("failed to open sqlite store: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(ctx); err != nil {
		tb.Fatalf("failed to migrate sqlite store: %v", err)
	}

	return &SQLiteHarness{Store: store, Clock: clock, IDs: ids}
}

// SeedRoom inserts a room fixture.
func (h *SQLiteHarness) SeedRoom(tb testing.TB, opts ...RoomOption) persistence.Room {
	tb.Helper()
	room, err := h.Store.CreateRoom(context.Background(), NewRoom(opts...))
	if err != nil {
		tb.Fatalf("failed to seed room: %v", err)
	}
	return room
}

// SeedReservation inserts reservation rows exactly as given.
func (h *SQLiteHarness) SeedReservation(tb testing.TB, reservations ...persistence.Reservation) []string {
	tb.Helper()
	ids, err := h.Store.BulkInsertReservations(context.Background(), reservations)
	if err != nil {
		tb.Fatalf("failed to seed reservations: %v", err)
	}
	return ids
}
