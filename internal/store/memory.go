package store

import (
	"context"
	"sync"
	"time"

	"github.com/pointdeck/pointdeck/internal/domain"
)

// Memory is the default in-process RoomStore. It copies rooms on every read
// and write so callers never share state with the map, mimicking the
// round-trip a real driver performs.
type Memory struct {
	mu    sync.RWMutex
	rooms map[domain.RoomCode]*domain.Room
}

func NewMemory() *Memory {
	return &Memory{rooms: make(map[domain.RoomCode]*domain.Room)}
}

func (m *Memory) Insert(_ context.Context, room *domain.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.Code]; ok {
		return domain.ErrRoomExists
	}
	m.rooms[room.Code] = cloneRoom(room)
	return nil
}

func (m *Memory) Get(_ context.Context, code domain.RoomCode) (*domain.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[code]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return cloneRoom(room), nil
}

func (m *Memory) Save(_ context.Context, room *domain.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.Code] = cloneRoom(room)
	return nil
}

func (m *Memory) Delete(_ context.Context, code domain.RoomCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, code)
	return nil
}

func (m *Memory) FindByConnection(_ context.Context, id domain.ConnectionID) (*domain.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, room := range m.rooms {
		if u := room.UserByConnection(id); u != nil {
			return cloneRoom(room), nil
		}
	}
	return nil, domain.ErrRoomNotFound
}

func (m *Memory) StaleRooms(_ context.Context, cutoff time.Time) ([]*domain.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Room
	for _, room := range m.rooms {
		if room.LastActivity.Before(cutoff) && len(room.ConnectedUsers()) == 0 {
			out = append(out, cloneRoom(room))
		}
	}
	return out, nil
}

func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms), nil
}

func cloneRoom(r *domain.Room) *domain.Room {
	c := *r
	c.Users = make([]*domain.User, len(r.Users))
	for i, u := range r.Users {
		uc := *u
		c.Users[i] = &uc
	}
	c.Votes = append([]domain.Vote(nil), r.Votes...)
	return &c
}
