// Package store abstracts persistence for room aggregates, keyed by room code.
package store

import (
	"context"
	"time"

	"github.com/pointdeck/pointdeck/internal/domain"
)

// RoomStore is the engine-facing persistence API. Implementations return
// domain.ErrRoomNotFound for unknown codes and domain.ErrRoomExists on an
// Insert with a taken code. Rooms returned by reads are private copies; the
// caller mutates and Saves them without aliasing store state.
type RoomStore interface {
	Insert(ctx context.Context, room *domain.Room) error
	Get(ctx context.Context, code domain.RoomCode) (*domain.Room, error)
	Save(ctx context.Context, room *domain.Room) error
	Delete(ctx context.Context, code domain.RoomCode) error

	// FindByConnection resolves the room owning the given connection id.
	// Departures can arrive without room context, e.g. on transport disconnect.
	FindByConnection(ctx context.Context, id domain.ConnectionID) (*domain.Room, error)

	// StaleRooms lists rooms whose last activity is before cutoff and which
	// have zero connected users.
	StaleRooms(ctx context.Context, cutoff time.Time) ([]*domain.Room, error)

	// Count reports how many rooms currently exist, for the health endpoint.
	Count(ctx context.Context) (int, error)
}
