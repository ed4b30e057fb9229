package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/KebabObama/school-reservation/internal/events"
	"github.com/KebabObama/school-reservation/internal/lock"
	"github.com/KebabObama/school-reservation/internal/persistence"
)

// memStore is an in-memory persistence.Store with snapshot rollback.
type memStore struct {
	mu        sync.Mutex
	rooms     map[string]persistence.Room
	rows      map[string]persistence.Reservation
	seq       int
	queryErr  error
	txCount   int
	updateErr error
}

var _ persistence.Store = (*memStore)(nil)

func newMemStore(rooms ...persistence.Room) *memStore {
	m := &memStore{
		rooms: make(map[string]persistence.Room),
		rows:  make(map[string]persistence.Reservation),
	}
	for _, room := range rooms {
		m.rooms[room.ID] = room
	}
	return m
}

func (m *memStore) seed(rows ...persistence.Reservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		m.rows[row.ID] = row
	}
}

func (m *memStore) get(id string) persistence.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id]
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *memStore) GetReservation(_ context.Context, id string) (persistence.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	return row, nil
}

func (m *memStore) QueryOverlapping(_ context.Context, roomID string, start, end time.Time, statuses []persistence.Status) ([]persistence.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	out := make([]persistence.Reservation, 0)
	for _, row := range m.rows {
		if row.RoomID != roomID || !row.Overlaps(start, end) {
			continue
		}
		for _, status := range statuses {
			if row.Status == status {
				out = append(out, row)
				break
			}
		}
	}
	sortRows(out)
	return out, nil
}

func (m *memStore) InsertReservation(ctx context.Context, reservation persistence.Reservation) (string, error) {
	ids, err := m.BulkInsertReservations(ctx, []persistence.Reservation{reservation})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

func (m *memStore) BulkInsertReservations(_ context.Context, reservations []persistence.Reservation) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(reservations))
	for _, r := range reservations {
		if _, ok := m.rooms[r.RoomID]; !ok {
			return nil, persistence.ErrForeignKeyViolation
		}
		if r.ID == "" {
			m.seq++
			r.ID = fmt.Sprintf("mem-%03d", m.seq)
		}
		m.rows[r.ID] = r
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (m *memStore) UpdateReservations(_ context.Context, target persistence.UpdateTarget, patch persistence.ReservationPatch) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return 0, m.updateErr
	}
	if patch.IsEmpty() {
		return 0, nil
	}
	var affected int64
	for id, row := range m.rows {
		match := row.ID == target.ID
		if target.Scope == persistence.ScopeSeries {
			match = match || (row.ParentReservationID != nil && *row.ParentReservationID == target.ID)
		}
		if match {
			m.rows[id] = patch.Apply(row)
			affected++
		}
	}
	return affected, nil
}

func (m *memStore) ListSeries(_ context.Context, rootID string) ([]persistence.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]persistence.Reservation, 0)
	for _, row := range m.rows {
		if row.ID == rootID || (row.ParentReservationID != nil && *row.ParentReservationID == rootID) {
			out = append(out, row)
		}
	}
	sortRows(out)
	return out, nil
}

func (m *memStore) GetRoom(_ context.Context, id string) (persistence.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return room, nil
}

func (m *memStore) WithinTx(ctx context.Context, fn func(tx persistence.IntervalStore) error) error {
	m.mu.Lock()
	m.txCount++
	snapshot := make(map[string]persistence.Reservation, len(m.rows))
	for id, row := range m.rows {
		snapshot[id] = row
	}
	seq := m.seq
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.rows, m.seq = snapshot, seq
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Close() error               { return nil }

func sortRows(rows []persistence.Reservation) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].StartTime.Equal(rows[j].StartTime) {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].StartTime.Before(rows[j].StartTime)
	})
}

type publisherStub struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *publisherStub) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

type lockerStub struct {
	mu     sync.Mutex
	locked []string
	err    error
	// onLock runs once the lock is granted, standing in for a writer that
	// finished just before us.
	onLock func(roomID string)
}

func (l *lockerStub) Lock(_ context.Context, roomID string) (lock.Unlock, error) {
	l.mu.Lock()
	if l.err != nil {
		l.mu.Unlock()
		return nil, l.err
	}
	l.locked = append(l.locked, roomID)
	hook := l.onLock
	l.mu.Unlock()
	if hook != nil {
		hook(roomID)
	}
	return func() {}, nil
}

var errBoom = errors.New("boom")
