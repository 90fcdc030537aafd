// Package domain holds the room aggregate and its embedded entities.
// No transport or persistence logic here.
package domain

import "time"

type (
	RoomCode     string
	ConnectionID string
)

// RoundState is the room's voting phase.
type RoundState string

const (
	RoundIdle     RoundState = "idle"
	RoundVoting   RoundState = "voting"
	RoundRevealed RoundState = "revealed"
)

// User is a participant tracked by the room. Users are never hard-deleted:
// departure flips Connected to false so the identity survives a reconnect
// under the same name.
type User struct {
	ConnectionID ConnectionID `json:"connectionId"`
	Name         string       `json:"name"`
	IsHost       bool         `json:"isHost"`
	Connected    bool         `json:"connected"`
	JoinedAt     time.Time    `json:"joinedAt"`
}

// Vote is a single cast card, keyed by user name.
type Vote struct {
	UserName string `json:"userName"`
	Value    string `json:"value"`
}

// Room is the aggregate root, identified by a short shareable code.
type Room struct {
	Code             RoomCode     `json:"code"`
	HostConnectionID ConnectionID `json:"hostConnectionId"`
	Deck             DeckType     `json:"deckType"`
	RoundState       RoundState   `json:"roundState"`
	CreatedAt        time.Time    `json:"createdAt"`
	LastActivity     time.Time    `json:"lastActivity"`
	Users            []*User      `json:"users"`
	Votes            []Vote       `json:"votes"`
}

func NewRoom(code RoomCode, hostConn ConnectionID, hostName string, deck DeckType, now time.Time) *Room {
	return &Room{
		Code:             code,
		HostConnectionID: hostConn,
		Deck:             deck,
		RoundState:       RoundIdle,
		CreatedAt:        now,
		LastActivity:     now,
		Users: []*User{{
			ConnectionID: hostConn,
			Name:         hostName,
			IsHost:       true,
			Connected:    true,
			JoinedAt:     now,
		}},
		Votes: []Vote{},
	}
}

// UserByName looks a participant up by identity key. Names are case-sensitive.
func (r *Room) UserByName(name string) *User {
	for _, u := range r.Users {
		if u.Name == name {
			return u
		}
	}
	return nil
}

func (r *Room) UserByConnection(id ConnectionID) *User {
	for _, u := range r.Users {
		if u.ConnectionID == id {
			return u
		}
	}
	return nil
}

// ConnectedUsers returns currently-connected participants in join order.
func (r *Room) ConnectedUsers() []*User {
	out := make([]*User, 0, len(r.Users))
	for _, u := range r.Users {
		if u.Connected {
			out = append(out, u)
		}
	}
	return out
}

// SetVote replaces any prior vote by the same user name.
func (r *Room) SetVote(userName, value string) {
	r.ClearVote(userName)
	r.Votes = append(r.Votes, Vote{UserName: userName, Value: value})
}

func (r *Room) ClearVote(userName string) {
	kept := r.Votes[:0]
	for _, v := range r.Votes {
		if v.UserName != userName {
			kept = append(kept, v)
		}
	}
	r.Votes = kept
}

// VoteOf reports the user's current vote value, if any.
func (r *Room) VoteOf(userName string) (string, bool) {
	for _, v := range r.Votes {
		if v.UserName == userName {
			return v.Value, true
		}
	}
	return "", false
}

func (r *Room) Touch(now time.Time) {
	r.LastActivity = now
}
