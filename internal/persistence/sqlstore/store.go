// Package sqlstore implements persistence.Store over database/sql for SQLite
// (modernc.org/sqlite) and MySQL (github.com/go-sql-driver/mysql).
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KebabObama/school-reservation/internal/persistence"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Option customises a Store.
type Option func(*Store)

// WithIDGenerator overrides the uuid based id generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithClock overrides the time source used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store is a persistence.Store backed by a relational database.
type Store struct {
	db          *sql.DB
	dialect     Dialect
	busyRetries int
	newID       func() string
	now         func() time.Time
	logger      *slog.Logger
	repo        repository
}

var _ persistence.Store = (*Store)(nil)

// Open connects to the configured database.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := New(db, cfg.Driver, opts...)
	store.busyRetries = cfg.BusyRetries
	return store, nil
}

// New wraps an already opened database handle.
func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{
		db:          db,
		dialect:     dialect,
		busyRetries: 3,
		newID:       uuid.NewString,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.repo = s.bind(db, false)
	return s
}

func (s *Store) bind(q queryer, inTx bool) repository {
	return repository{
		q:       q,
		dialect: s.dialect,
		inTx:    inTx,
		newID:   s.newID,
		now:     s.now,
	}
}

// Migrate creates the tables the store needs when they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	raw, err := schemaFS.ReadFile(fmt.Sprintf("schema/%s.sql", s.dialect))
	if err != nil {
		return fmt.Errorf("sqlstore: load schema: %w", err)
	}
	for _, stmt := range strings.Split(string(raw), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: apply schema: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithinTx runs fn against a transaction-bound store. Lock contention replays
// the whole unit.
func (s *Store) WithinTx(ctx context.Context, fn func(tx persistence.IntervalStore) error) error {
	return retryBusy(ctx, s.logger, s.busyRetries, func() error {
		return withTransaction(ctx, s.db, func(tx *sql.Tx) error {
			return fn(s.bind(tx, true))
		})
	})
}

func (s *Store) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	return s.repo.GetReservation(ctx, id)
}

func (s *Store) QueryOverlapping(ctx context.Context, roomID string, start, end time.Time, statuses []persistence.Status) ([]persistence.Reservation, error) {
	return s.repo.QueryOverlapping(ctx, roomID, start, end, statuses)
}

func (s *Store) InsertReservation(ctx context.Context, reservation persistence.Reservation) (string, error) {
	return s.repo.InsertReservation(ctx, reservation)
}

func (s *Store) BulkInsertReservations(ctx context.Context, reservations []persistence.Reservation) ([]string, error) {
	return s.repo.BulkInsertReservations(ctx, reservations)
}

func (s *Store) UpdateReservations(ctx context.Context, target persistence.UpdateTarget, patch persistence.ReservationPatch) (int64, error) {
	return s.repo.UpdateReservations(ctx, target, patch)
}

func (s *Store) ListSeries(ctx context.Context, rootID string) ([]persistence.Reservation, error) {
	return s.repo.ListSeries(ctx, rootID)
}

func (s *Store) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	return s.repo.GetRoom(ctx, id)
}

// CreateRoom inserts a catalog entry. Room management lives outside this
// service; the method exists for seeding and tests.
func (s *Store) CreateRoom(ctx context.Context, room persistence.Room) (persistence.Room, error) {
	return s.repo.CreateRoom(ctx, room)
}
