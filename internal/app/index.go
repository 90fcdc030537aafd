package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pointdeck/pointdeck/internal/domain"
)

// Sender is the transport endpoint of a live connection.
// Owned by the adapter; the adapter must Close() it.
type Sender interface {
	TrySend(data []byte) error
	Close()
}

type indexEntry struct {
	RoomCode domain.RoomCode
	UserName string
	Sender   Sender
	Cancel   context.CancelFunc
}

// Index maps a live connection id to its transport endpoint and, once a
// create/join succeeds, to its room and user identity. It never outlives the
// room: entries are cleared when the room is deleted or the user departs.
type Index struct {
	mu      sync.RWMutex
	entries map[domain.ConnectionID]*indexEntry
}

func NewIndex() *Index {
	return &Index{entries: make(map[domain.ConnectionID]*indexEntry)}
}

func (ix *Index) Bind(id domain.ConnectionID, sender Sender, cancel context.CancelFunc) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries[id] = &indexEntry{Sender: sender, Cancel: cancel}
	log.Info().Str("module", "app.index").Str("conn", string(id)).Msg("bound connection")
}

// SetRoom records which room/user the connection acts as.
func (ix *Index) SetRoom(id domain.ConnectionID, code domain.RoomCode, userName string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if e, ok := ix.entries[id]; ok {
		e.RoomCode = code
		e.UserName = userName
		log.Info().Str("module", "app.index").Str("conn", string(id)).Str("room", string(code)).Str("user", userName).Msg("bound session")
	}
}

// ClearRoom drops the room association but keeps the live connection.
func (ix *Index) ClearRoom(id domain.ConnectionID) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if e, ok := ix.entries[id]; ok {
		e.RoomCode = ""
		e.UserName = ""
	}
}

// Unbind drops the entry and cancels the connection's derived context so it
// detaches from the server's root context.
func (ix *Index) Unbind(id domain.ConnectionID) {
	ix.mu.Lock()
	e, ok := ix.entries[id]
	delete(ix.entries, id)
	ix.mu.Unlock()
	if ok && e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.index").Str("conn", string(id)).Msg("unbound connection")
}

// Resolve reports the room/user identity of the connection, if it has one.
func (ix *Index) Resolve(id domain.ConnectionID) (domain.RoomCode, string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	e, ok := ix.entries[id]
	if !ok || e.RoomCode == "" {
		return "", "", false
	}
	return e.RoomCode, e.UserName, true
}

func (ix *Index) Sender(id domain.ConnectionID) (Sender, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if e, ok := ix.entries[id]; ok && e.Sender != nil {
		return e.Sender, true
	}
	return nil, false
}

type MemberSnap struct {
	ConnID   domain.ConnectionID
	UserName string
	Sender   Sender
}

// MembersOf lists live connections currently associated with the room.
func (ix *Index) MembersOf(code domain.RoomCode) []MemberSnap {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]MemberSnap, 0, len(ix.entries))
	for id, e := range ix.entries {
		if e.RoomCode == code {
			out = append(out, MemberSnap{ConnID: id, UserName: e.UserName, Sender: e.Sender})
		}
	}
	return out
}
