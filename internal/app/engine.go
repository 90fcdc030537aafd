// Package app owns the room session logic: creation, reconnection, departure,
// host migration, voting rounds and inactivity cleanup. Pure logic over the
// data model, independent of transport.
package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pointdeck/pointdeck/internal/domain"
	"github.com/pointdeck/pointdeck/internal/store"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLen      = 6
	codeAttempts = 5
)

// Engine executes one atomic read-validate-mutate-persist transaction per
// lifecycle event. Every mutation of a room happens under that room's lock.
type Engine struct {
	store store.RoomStore
	locks *roomLocks
	now   func() time.Time
}

func NewEngine(st store.RoomStore) *Engine {
	return &Engine{
		store: st,
		locks: newRoomLocks(),
		now:   time.Now,
	}
}

// JoinResult carries what a joining client needs to restore its state.
type JoinResult struct {
	Room           *domain.Room
	User           *domain.User
	IsReconnection bool
	UserVote       *string
}

// LeaveResult describes a completed departure. Room is nil when the departure
// emptied the room and it was deleted.
type LeaveResult struct {
	Room     *domain.Room
	User     domain.User
	RoomCode domain.RoomCode
	WasHost  bool
}

// Stats is the aggregate view broadcast with votes and departures. Votes and
// Average stay nil while the round is not revealed, keeping in-progress votes
// secret.
type Stats struct {
	TotalUsers int               `json:"totalUsers"`
	VotedUsers int               `json:"votedUsers"`
	Average    *float64          `json:"average"`
	Votes      map[string]string `json:"votes"`
}

// CreateRoom generates a collision-tolerant short code and persists a fresh
// idle room with a single connected host.
func (e *Engine) CreateRoom(ctx context.Context, hostConn domain.ConnectionID, hostName string, deck domain.DeckType) (*domain.Room, error) {
	deck = domain.NormalizeDeck(deck)
	for i := 0; i < codeAttempts; i++ {
		code, err := newRoomCode()
		if err != nil {
			return nil, err
		}
		room := domain.NewRoom(code, hostConn, hostName, deck, e.now())
		err = e.store.Insert(ctx, room)
		if errors.Is(err, domain.ErrRoomExists) {
			continue
		}
		if err != nil {
			return nil, err
		}
		log.Info().Str("module", "app.engine").Str("room", string(code)).Str("host", hostName).Msg("room created")
		return room, nil
	}
	return nil, fmt.Errorf("create room: %w", domain.ErrRoomExists)
}

// Reconnect is the idempotent join: a user with the same name gets its
// connection rebound, anyone else is appended as a new non-host participant.
func (e *Engine) Reconnect(ctx context.Context, code domain.RoomCode, connID domain.ConnectionID, userName string) (*JoinResult, error) {
	unlock := e.locks.acquire(code)
	defer unlock()

	room, err := e.store.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	user := room.UserByName(userName)
	isReconnection := user != nil
	if user != nil {
		user.ConnectionID = connID
		user.Connected = true
		if user.IsHost {
			room.HostConnectionID = connID
		}
	} else {
		user = &domain.User{
			ConnectionID: connID,
			Name:         userName,
			Connected:    true,
			JoinedAt:     e.now(),
		}
		room.Users = append(room.Users, user)
	}
	room.Touch(e.now())

	if err := e.store.Save(ctx, room); err != nil {
		return nil, err
	}

	res := &JoinResult{Room: room, User: user, IsReconnection: isReconnection}
	if v, ok := room.VoteOf(userName); ok {
		res.UserVote = &v
	}
	log.Info().Str("module", "app.engine").Str("room", string(code)).Str("user", userName).Bool("reconnection", isReconnection).Msg("user joined")
	return res, nil
}

// Leave marks the connection's user disconnected, clears its vote and hands
// the host role to the first remaining connected user in join order. The room
// is deleted outright once nobody is left connected. A connection that owns
// no room yields (nil, nil): departures can race transport disconnects, so an
// already-completed leave is not a failure.
func (e *Engine) Leave(ctx context.Context, connID domain.ConnectionID) (*LeaveResult, error) {
	located, err := e.store.FindByConnection(ctx, connID)
	if errors.Is(err, domain.ErrRoomNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	unlock := e.locks.acquire(located.Code)
	defer unlock()

	// Re-read under the lock; a racing leave may have finished first.
	room, err := e.store.Get(ctx, located.Code)
	if errors.Is(err, domain.ErrRoomNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user := room.UserByConnection(connID)
	if user == nil || !user.Connected {
		return nil, nil
	}

	wasHost := user.IsHost
	user.Connected = false
	user.IsHost = false
	room.ClearVote(user.Name)
	room.Touch(e.now())

	connected := room.ConnectedUsers()
	if wasHost && len(connected) > 0 {
		connected[0].IsHost = true
		room.HostConnectionID = connected[0].ConnectionID
		log.Info().Str("module", "app.engine").Str("room", string(room.Code)).Str("new_host", connected[0].Name).Msg("host handover")
	}

	res := &LeaveResult{User: *user, RoomCode: room.Code, WasHost: wasHost}
	if len(connected) == 0 {
		if err := e.store.Delete(ctx, room.Code); err != nil {
			return nil, err
		}
		log.Info().Str("module", "app.engine").Str("room", string(room.Code)).Msg("room emptied, deleted")
		return res, nil
	}

	if err := e.store.Save(ctx, room); err != nil {
		return nil, err
	}
	res.Room = room
	log.Info().Str("module", "app.engine").Str("room", string(room.Code)).Str("user", user.Name).Msg("user left")
	return res, nil
}

// CastVote replaces the user's current vote. Only valid while the round is in
// the voting phase.
func (e *Engine) CastVote(ctx context.Context, code domain.RoomCode, connID domain.ConnectionID, value string) (*domain.Room, error) {
	unlock := e.locks.acquire(code)
	defer unlock()

	room, err := e.store.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	user := room.UserByConnection(connID)
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	if room.RoundState != domain.RoundVoting {
		return nil, domain.ErrVotingNotActive
	}

	room.SetVote(user.Name, value)
	room.Touch(e.now())
	if err := e.store.Save(ctx, room); err != nil {
		return nil, err
	}
	log.Info().Str("module", "app.engine").Str("room", string(code)).Str("user", user.Name).Msg("vote cast")
	return room, nil
}

// StartVoting opens a fresh round, clearing prior votes. Host only. Restarting
// from any state is allowed; clients rely on authorization plus idempotent
// transitions rather than a strict ordering guard.
func (e *Engine) StartVoting(ctx context.Context, code domain.RoomCode, hostConn domain.ConnectionID) (*domain.Room, error) {
	return e.transition(ctx, code, hostConn, domain.RoundVoting, true, "voting started")
}

// RevealVotes makes the current round's votes visible. Host only.
func (e *Engine) RevealVotes(ctx context.Context, code domain.RoomCode, hostConn domain.ConnectionID) (*domain.Room, error) {
	return e.transition(ctx, code, hostConn, domain.RoundRevealed, false, "votes revealed")
}

// ResetRound returns the room to idle and clears all votes. Host only.
func (e *Engine) ResetRound(ctx context.Context, code domain.RoomCode, hostConn domain.ConnectionID) (*domain.Room, error) {
	return e.transition(ctx, code, hostConn, domain.RoundIdle, true, "round reset")
}

func (e *Engine) transition(ctx context.Context, code domain.RoomCode, hostConn domain.ConnectionID, to domain.RoundState, clearVotes bool, msg string) (*domain.Room, error) {
	unlock := e.locks.acquire(code)
	defer unlock()

	room, err := e.store.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.HostConnectionID != hostConn {
		return nil, domain.ErrNotHost
	}

	room.RoundState = to
	if clearVotes {
		room.Votes = []domain.Vote{}
	}
	room.Touch(e.now())
	if err := e.store.Save(ctx, room); err != nil {
		return nil, err
	}
	log.Info().Str("module", "app.engine").Str("room", string(code)).Msg(msg)
	return room, nil
}

// ComputeStats derives the aggregate view. The name→value mapping and the
// numeric average are only exposed once the round is revealed.
func (e *Engine) ComputeStats(ctx context.Context, code domain.RoomCode) (*Stats, error) {
	room, err := e.store.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalUsers: len(room.ConnectedUsers()),
		VotedUsers: len(room.Votes),
	}
	if room.RoundState == domain.RoundRevealed {
		stats.Votes = make(map[string]string, len(room.Votes))
		for _, v := range room.Votes {
			stats.Votes[v.UserName] = v.Value
		}
		stats.Average = average(room.Votes)
	}
	return stats, nil
}

// MakeHost reassigns the host role. The caller must be a tracked member of the
// room and the target must be currently connected: the host invariant is
// defined over connected users, and an absent host would orphan round control.
func (e *Engine) MakeHost(ctx context.Context, code domain.RoomCode, callerConn, targetConn domain.ConnectionID) (*domain.Room, error) {
	unlock := e.locks.acquire(code)
	defer unlock()

	room, err := e.store.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.UserByConnection(callerConn) == nil {
		return nil, domain.ErrUserNotFound
	}
	target := room.UserByConnection(targetConn)
	if target == nil || !target.Connected {
		return nil, domain.ErrUserNotFound
	}

	for _, u := range room.Users {
		u.IsHost = false
	}
	target.IsHost = true
	room.HostConnectionID = target.ConnectionID
	room.Touch(e.now())

	if err := e.store.Save(ctx, room); err != nil {
		return nil, err
	}
	log.Info().Str("module", "app.engine").Str("room", string(code)).Str("new_host", target.Name).Msg("host reassigned")
	return room, nil
}

// CleanupInactive deletes rooms idle for at least ttl with zero connected
// users and returns the deleted codes so still-open connections can be told
// their room is gone. A failing room is logged and skipped, not retried.
func (e *Engine) CleanupInactive(ctx context.Context, ttl time.Duration) ([]domain.RoomCode, error) {
	cutoff := e.now().Add(-ttl)
	stale, err := e.store.StaleRooms(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	var deleted []domain.RoomCode
	for _, candidate := range stale {
		code := candidate.Code
		unlock := e.locks.acquire(code)

		// Re-check under the lock; a join may have revived the room.
		room, err := e.store.Get(ctx, code)
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			unlock()
			continue
		case err != nil:
			unlock()
			log.Error().Err(err).Str("module", "app.engine").Str("room", string(code)).Msg("cleanup read failed, skipping room")
			continue
		}
		if !room.LastActivity.Before(cutoff) || len(room.ConnectedUsers()) > 0 {
			unlock()
			continue
		}
		if err := e.store.Delete(ctx, code); err != nil {
			unlock()
			log.Error().Err(err).Str("module", "app.engine").Str("room", string(code)).Msg("cleanup delete failed, skipping room")
			continue
		}
		unlock()
		deleted = append(deleted, code)
	}
	if len(deleted) > 0 {
		log.Info().Str("module", "app.engine").Int("count", len(deleted)).Msg("cleaned inactive rooms")
	}
	return deleted, nil
}

// RoomCount backs the health endpoint.
func (e *Engine) RoomCount(ctx context.Context) (int, error) {
	return e.store.Count(ctx)
}

func average(votes []domain.Vote) *float64 {
	sum, n := 0.0, 0
	for _, v := range votes {
		f, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			continue
		}
		sum += f
		n++
	}
	if n == 0 {
		return nil
	}
	avg := math.Round(sum/float64(n)*10) / 10
	return &avg
}

func newRoomCode() (domain.RoomCode, error) {
	buf := make([]byte, codeLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate room code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return domain.RoomCode(buf), nil
}
