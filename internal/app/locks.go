package app

import (
	"sync"

	"github.com/pointdeck/pointdeck/internal/domain"
)

// roomLocks serializes mutations per room code. Two read-modify-write cycles
// over the same room must not interleave, or the second Save silently drops
// the first one's mutation; holding the room's lock across the whole cycle
// closes that race.
type roomLocks struct {
	mu    sync.Mutex
	locks map[domain.RoomCode]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newRoomLocks() *roomLocks {
	return &roomLocks{locks: make(map[domain.RoomCode]*lockEntry)}
}

// acquire blocks until the room's lock is held and returns the release func.
// Entries are refcounted so abandoned codes do not accumulate.
func (l *roomLocks) acquire(code domain.RoomCode) func() {
	l.mu.Lock()
	e, ok := l.locks[code]
	if !ok {
		e = &lockEntry{}
		l.locks[code] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, code)
		}
		l.mu.Unlock()
	}
}
