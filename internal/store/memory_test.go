package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointdeck/pointdeck/internal/domain"
)

func TestMemoryInsertRejectsDuplicateCode(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	room := domain.NewRoom("AB12CD", "conn-1", "Alice", domain.DeckFibonacci, time.Now())

	require.NoError(t, m.Insert(ctx, room))
	err := m.Insert(ctx, room)
	assert.ErrorIs(t, err, domain.ErrRoomExists)
}

func TestMemoryGetUnknown(t *testing.T) {
	m := NewMemory()

	_, err := m.Get(context.Background(), "NOPE42")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestMemoryReadsAreIsolatedCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	room := domain.NewRoom("AB12CD", "conn-1", "Alice", domain.DeckFibonacci, time.Now())
	require.NoError(t, m.Insert(ctx, room))

	got, err := m.Get(ctx, "AB12CD")
	require.NoError(t, err)
	got.Users[0].Name = "Mallory"
	got.SetVote("Mallory", "13")

	again, err := m.Get(ctx, "AB12CD")
	require.NoError(t, err)
	assert.Equal(t, "Alice", again.Users[0].Name)
	assert.Empty(t, again.Votes)
}

func TestMemoryFindByConnection(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	room := domain.NewRoom("AB12CD", "conn-1", "Alice", domain.DeckFibonacci, time.Now())
	require.NoError(t, m.Insert(ctx, room))

	found, err := m.FindByConnection(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomCode("AB12CD"), found.Code)

	_, err = m.FindByConnection(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestMemoryStaleRooms(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()

	stale := domain.NewRoom("STALE1", "conn-1", "Alice", domain.DeckFibonacci, now.Add(-time.Minute))
	stale.Users[0].Connected = false
	require.NoError(t, m.Save(ctx, stale))

	busy := domain.NewRoom("BUSY01", "conn-2", "Bob", domain.DeckFibonacci, now.Add(-time.Minute))
	require.NoError(t, m.Save(ctx, busy))

	fresh := domain.NewRoom("FRESH1", "conn-3", "Carol", domain.DeckFibonacci, now)
	fresh.Users[0].Connected = false
	require.NoError(t, m.Save(ctx, fresh))

	got, err := m.StaleRooms(ctx, now.Add(-15*time.Second))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.RoomCode("STALE1"), got[0].Code)
}

func TestMemoryDeleteAndCount(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Insert(ctx, domain.NewRoom("AB12CD", "conn-1", "Alice", domain.DeckFibonacci, time.Now())))

	count, err := m.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, m.Delete(ctx, "AB12CD"))
	count, err = m.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Deleting an absent room is not an error.
	assert.NoError(t, m.Delete(ctx, "AB12CD"))
}
