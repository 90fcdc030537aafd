package signal

import (
	"github.com/pointdeck/pointdeck/internal/app"
	"github.com/pointdeck/pointdeck/internal/domain"
)

// Inbound event names. Every request may carry an "id" the ack echoes back.
const (
	evCreateRoom  = "create-room"
	evJoinRoom    = "join-room"
	evStartVoting = "start-voting"
	evCastVote    = "cast-vote"
	evRevealVotes = "reveal-votes"
	evResetRound  = "reset-round"
	evLeaveRoom   = "leave-room"
	evMakeHost    = "make-host"
	evRemoveUser  = "remove-user"
	evPing        = "ping"
)

// Outbound event names.
const (
	evAck           = "ack"
	evUserJoined    = "user-joined"
	evVoteCast      = "vote-cast"
	evVotingStarted = "voting-started"
	evVotesRevealed = "votes-revealed"
	evRoundReset    = "round-reset"
	evRoomUpdated   = "room-updated"
	evUserLeft      = "user-left"
	evRemoved       = "removed"
	evPong          = "pong"
)

// envelope is the minimal shape every inbound frame must carry.
type envelope struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// ackBase answers exactly one request; ID references the request's id.
type ackBase struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// userView is the outward shape of a participant.
type userView struct {
	ConnectionID domain.ConnectionID `json:"connectionId"`
	Name         string              `json:"name"`
	IsHost       bool                `json:"isHost"`
	Connected    bool                `json:"connected"`
}

// roomView is the room snapshot sent over the wire. Disconnected users are
// filtered out even though the engine retains them for reconnection.
type roomView struct {
	Code             domain.RoomCode     `json:"code"`
	DeckType         domain.DeckType     `json:"deckType"`
	RoundState       domain.RoundState   `json:"roundState"`
	Users            []userView          `json:"users"`
	HostConnectionID domain.ConnectionID `json:"hostConnectionId"`
}

func viewUser(u *domain.User) userView {
	return userView{
		ConnectionID: u.ConnectionID,
		Name:         u.Name,
		IsHost:       u.IsHost,
		Connected:    u.Connected,
	}
}

func viewRoom(r *domain.Room) roomView {
	connected := r.ConnectedUsers()
	users := make([]userView, 0, len(connected))
	for _, u := range connected {
		users = append(users, viewUser(u))
	}
	return roomView{
		Code:             r.Code,
		DeckType:         r.Deck,
		RoundState:       r.RoundState,
		Users:            users,
		HostConnectionID: r.HostConnectionID,
	}
}

type userJoinedEvent struct {
	Type           string   `json:"type"`
	User           userView `json:"user"`
	IsReconnection bool     `json:"isReconnection"`
}

type voteCastEvent struct {
	Type     string     `json:"type"`
	UserName string     `json:"userName"`
	Vote     string     `json:"vote"`
	Stats    *app.Stats `json:"stats"`
}

type roundStateEvent struct {
	Type       string            `json:"type"`
	RoundState domain.RoundState `json:"roundState"`
}

type votesRevealedEvent struct {
	Type       string            `json:"type"`
	RoundState domain.RoundState `json:"roundState"`
	Votes      map[string]string `json:"votes"`
	Average    *float64          `json:"average"`
	Stats      *app.Stats        `json:"stats"`
}

type roomUpdatedEvent struct {
	Type string `json:"type"`
	roomView
	NewHostName string `json:"newHostName,omitempty"`
}

type userLeftEvent struct {
	Type     string     `json:"type"`
	UserName string     `json:"userName"`
	Stats    *app.Stats `json:"stats"`
	NewHost  *string    `json:"newHost"`
}
