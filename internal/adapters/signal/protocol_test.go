package signal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointdeck/pointdeck/internal/domain"
)

func TestViewRoomFiltersDisconnectedUsers(t *testing.T) {
	now := time.Now()
	room := domain.NewRoom("AB12CD", "conn-1", "Alice", domain.DeckFibonacci, now)
	room.Users = append(room.Users,
		&domain.User{ConnectionID: "conn-2", Name: "Bob", Connected: false, JoinedAt: now},
		&domain.User{ConnectionID: "conn-3", Name: "Carol", Connected: true, JoinedAt: now},
	)

	view := viewRoom(room)

	require.Len(t, view.Users, 2)
	assert.Equal(t, "Alice", view.Users[0].Name)
	assert.Equal(t, "Carol", view.Users[1].Name)
	assert.Equal(t, domain.RoomCode("AB12CD"), view.Code)
	assert.Equal(t, domain.DeckFibonacci, view.DeckType)
}

func TestAckJSONShape(t *testing.T) {
	ok := ackBase{Type: evAck, ID: "req-1", Success: true}
	b, err := json.Marshal(ok)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ack","id":"req-1","success":true}`, string(b))

	fail := ackBase{Type: evAck, ID: "req-2", Success: false, Error: "room not found"}
	b, err = json.Marshal(fail)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ack","id":"req-2","success":false,"error":"room not found"}`, string(b))
}

func TestRoomUpdatedEventInlinesSnapshot(t *testing.T) {
	room := domain.NewRoom("AB12CD", "conn-1", "Alice", domain.DeckFibonacci, time.Now())

	b, err := json.Marshal(roomUpdatedEvent{Type: evRoomUpdated, roomView: viewRoom(room)})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "room-updated", got["type"])
	assert.Equal(t, "AB12CD", got["code"])
	// Absent unless a host reassignment happened.
	_, hasNewHost := got["newHostName"]
	assert.False(t, hasNewHost)
}

func TestUserLeftEventKeepsNullNewHost(t *testing.T) {
	b, err := json.Marshal(userLeftEvent{Type: evUserLeft, UserName: "Bob"})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	v, present := got["newHost"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestEnvelopeDecodeTolerableUnknownFields(t *testing.T) {
	var env envelope
	err := json.Unmarshal([]byte(`{"type":"cast-vote","id":"7","vote":"5"}`), &env)
	require.NoError(t, err)
	assert.Equal(t, "cast-vote", env.Type)
	assert.Equal(t, "7", env.ID)
}
