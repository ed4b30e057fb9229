// Package lock serialises write units that touch the same room so the
// check-then-write sequence of a booking never interleaves with another
// writer for that room.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrNotAcquired is returned when a lease could not be obtained before the
// context expired.
var ErrNotAcquired = errors.New("lock: room lock not acquired")

// Unlock releases a held room lock. It is safe to call more than once.
type Unlock func()

// RoomLocker hands out exclusive per-room locks.
type RoomLocker interface {
	Lock(ctx context.Context, roomID string) (Unlock, error)
}

// Memory is a process-local keyed mutex.
type Memory struct {
	mu    sync.Mutex
	rooms map[string]*roomEntry
}

type roomEntry struct {
	ch   chan struct{}
	refs int
}

var _ RoomLocker = (*Memory)(nil)

// NewMemory returns an empty in-process locker.
func NewMemory() *Memory {
	return &Memory{rooms: make(map[string]*roomEntry)}
}

// Lock blocks until the room is free or ctx is done.
func (m *Memory) Lock(ctx context.Context, roomID string) (Unlock, error) {
	m.mu.Lock()
	entry, ok := m.rooms[roomID]
	if !ok {
		entry = &roomEntry{ch: make(chan struct{}, 1)}
		m.rooms[roomID] = entry
	}
	entry.refs++
	m.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(roomID, entry, false)
		return nil, errors.Join(ErrNotAcquired, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { m.release(roomID, entry, true) })
	}, nil
}

func (m *Memory) release(roomID string, entry *roomEntry, held bool) {
	if held {
		<-entry.ch
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(m.rooms, roomID)
	}
}

// Noop grants every lock immediately.
type Noop struct{}

// Lock implements RoomLocker.
func (Noop) Lock(context.Context, string) (Unlock, error) {
	return func() {}, nil
}
