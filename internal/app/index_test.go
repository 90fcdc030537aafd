package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointdeck/pointdeck/internal/domain"
)

type fakeSender struct {
	frames [][]byte
	closed bool
}

func (f *fakeSender) TrySend(data []byte) error {
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeSender) Close() { f.closed = true }

func TestIndexResolve(t *testing.T) {
	ix := NewIndex()
	s := &fakeSender{}
	ix.Bind("conn-1", s, nil)

	// No room yet.
	_, _, ok := ix.Resolve("conn-1")
	assert.False(t, ok)

	ix.SetRoom("conn-1", "AB12CD", "Alice")
	code, name, ok := ix.Resolve("conn-1")
	require.True(t, ok)
	assert.Equal(t, domain.RoomCode("AB12CD"), code)
	assert.Equal(t, "Alice", name)
}

func TestIndexClearRoomKeepsConnection(t *testing.T) {
	ix := NewIndex()
	s := &fakeSender{}
	ix.Bind("conn-1", s, nil)
	ix.SetRoom("conn-1", "AB12CD", "Alice")

	ix.ClearRoom("conn-1")

	_, _, ok := ix.Resolve("conn-1")
	assert.False(t, ok)
	got, ok := ix.Sender("conn-1")
	require.True(t, ok)
	assert.Same(t, s, got.(*fakeSender))
}

func TestIndexMembersOf(t *testing.T) {
	ix := NewIndex()
	ix.Bind("conn-1", &fakeSender{}, nil)
	ix.Bind("conn-2", &fakeSender{}, nil)
	ix.Bind("conn-3", &fakeSender{}, nil)
	ix.SetRoom("conn-1", "AB12CD", "Alice")
	ix.SetRoom("conn-2", "AB12CD", "Bob")
	ix.SetRoom("conn-3", "ZZ99XX", "Zoe")

	members := ix.MembersOf("AB12CD")
	require.Len(t, members, 2)
	names := map[string]bool{}
	for _, m := range members {
		names[m.UserName] = true
	}
	assert.True(t, names["Alice"])
	assert.True(t, names["Bob"])
}

func TestIndexUnbind(t *testing.T) {
	ix := NewIndex()
	ix.Bind("conn-1", &fakeSender{}, nil)
	ix.SetRoom("conn-1", "AB12CD", "Alice")

	ix.Unbind("conn-1")

	_, ok := ix.Sender("conn-1")
	assert.False(t, ok)
	assert.Empty(t, ix.MembersOf("AB12CD"))
}

func TestIndexUnbindCancelsConnectionContext(t *testing.T) {
	ix := NewIndex()
	ctx, cancel := context.WithCancel(context.Background())
	ix.Bind("conn-1", &fakeSender{}, cancel)

	ix.Unbind("conn-1")

	select {
	case <-ctx.Done():
	default:
		t.Fatal("derived context still parented after unbind")
	}
}

func TestIndexSetRoomIgnoresUnknownConnection(t *testing.T) {
	ix := NewIndex()

	ix.SetRoom("ghost", "AB12CD", "Alice")

	_, _, ok := ix.Resolve("ghost")
	assert.False(t, ok)
}
