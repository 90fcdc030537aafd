package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/pointdeck/pointdeck/internal/app"
	"github.com/pointdeck/pointdeck/internal/domain"
)

func (ctl *Controller) handleCreateRoom(ctx context.Context, connID domain.ConnectionID, c app.Sender, env envelope, data []byte) {
	var p struct {
		HostName string          `json:"hostName"`
		DeckType domain.DeckType `json:"deckType"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.HostName == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad create-room payload")
		ctl.ackFailMsg(c, env.ID, "bad_payload")
		return
	}

	room, err := ctl.Engine.CreateRoom(ctx, connID, p.HostName, p.DeckType)
	if err != nil {
		ctl.ackFail(c, env.ID, err)
		return
	}
	ctl.Index.SetRoom(connID, room.Code, p.HostName)

	user := room.UserByConnection(connID)
	ctl.sendTo(c, struct {
		ackBase
		RoomCode domain.RoomCode `json:"roomCode"`
		Room     roomView        `json:"room"`
		User     userView        `json:"user"`
	}{
		ackBase:  ackBase{Type: evAck, ID: env.ID, Success: true},
		RoomCode: room.Code,
		Room:     viewRoom(room),
		User:     viewUser(user),
	})
}

func (ctl *Controller) handleJoinRoom(ctx context.Context, connID domain.ConnectionID, c app.Sender, env envelope, data []byte) {
	var p struct {
		RoomCode domain.RoomCode `json:"roomCode"`
		UserName string          `json:"userName"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomCode == "" || p.UserName == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad join-room payload")
		ctl.ackFailMsg(c, env.ID, "bad_payload")
		return
	}

	res, err := ctl.Engine.Reconnect(ctx, p.RoomCode, connID, p.UserName)
	if err != nil {
		ctl.ackFail(c, env.ID, err)
		return
	}
	stats, err := ctl.Engine.ComputeStats(ctx, p.RoomCode)
	if err != nil {
		ctl.ackFail(c, env.ID, err)
		return
	}
	ctl.Index.SetRoom(connID, p.RoomCode, p.UserName)

	ctl.broadcastExcept(p.RoomCode, connID, userJoinedEvent{
		Type:           evUserJoined,
		User:           viewUser(res.User),
		IsReconnection: res.IsReconnection,
	})

	ctl.sendTo(c, struct {
		ackBase
		Room           roomView   `json:"room"`
		User           userView   `json:"user"`
		Stats          *app.Stats `json:"stats"`
		UserVote       *string    `json:"userVote"`
		IsReconnection bool       `json:"isReconnection"`
	}{
		ackBase:        ackBase{Type: evAck, ID: env.ID, Success: true},
		Room:           viewRoom(res.Room),
		User:           viewUser(res.User),
		Stats:          stats,
		UserVote:       res.UserVote,
		IsReconnection: res.IsReconnection,
	})
}

func (ctl *Controller) handleLeaveRoom(ctx context.Context, connID domain.ConnectionID, c app.Sender, env envelope) {
	res, err := ctl.Engine.Leave(ctx, connID)
	if err != nil {
		ctl.ackFail(c, env.ID, err)
		return
	}

	if res != nil && res.Room != nil {
		stats, err := ctl.Engine.ComputeStats(ctx, res.RoomCode)
		if err != nil {
			ctl.ackFail(c, env.ID, err)
			return
		}
		var newHost *string
		if res.WasHost {
			if u := res.Room.UserByConnection(res.Room.HostConnectionID); u != nil {
				newHost = &u.Name
			}
		}
		ctl.broadcastRoom(res.RoomCode, roomUpdatedEvent{Type: evRoomUpdated, roomView: viewRoom(res.Room)})
		ctl.broadcastExcept(res.RoomCode, connID, userLeftEvent{
			Type:     evUserLeft,
			UserName: res.User.Name,
			Stats:    stats,
			NewHost:  newHost,
		})
	}

	ctl.Index.ClearRoom(connID)
	ctl.ackOK(c, env.ID)
}

// handleDisconnect routes a transport disconnect through the same idempotent
// leave path as an explicit leave-room; racing the two is safe, the second
// one is a no-op.
func (ctl *Controller) handleDisconnect(connID domain.ConnectionID) {
	res, err := ctl.Engine.Leave(context.Background(), connID)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("disconnect leave failed")
		return
	}
	if res == nil || res.Room == nil {
		return
	}

	stats, err := ctl.Engine.ComputeStats(context.Background(), res.RoomCode)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("room", string(res.RoomCode)).Msg("disconnect stats failed")
		return
	}
	var newHost *string
	if u := res.Room.UserByConnection(res.Room.HostConnectionID); u != nil {
		newHost = &u.Name
	}
	ctl.broadcastExcept(res.RoomCode, connID, userLeftEvent{
		Type:     evUserLeft,
		UserName: res.User.Name,
		Stats:    stats,
		NewHost:  newHost,
	})
}

func (ctl *Controller) handleMakeHost(ctx context.Context, connID domain.ConnectionID, c app.Sender, env envelope, data []byte) {
	var p struct {
		TargetConnectionID domain.ConnectionID `json:"targetConnectionId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.TargetConnectionID == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad make-host payload")
		ctl.ackFailMsg(c, env.ID, "bad_payload")
		return
	}

	code, _, ok := ctl.Index.Resolve(connID)
	if !ok {
		ctl.ackFailMsg(c, env.ID, "no active session")
		return
	}

	room, err := ctl.Engine.MakeHost(ctx, code, connID, p.TargetConnectionID)
	if err != nil {
		ctl.ackFail(c, env.ID, err)
		return
	}

	newHostName := ""
	if u := room.UserByConnection(p.TargetConnectionID); u != nil {
		newHostName = u.Name
	}
	ctl.broadcastRoom(code, roomUpdatedEvent{
		Type:        evRoomUpdated,
		roomView:    viewRoom(room),
		NewHostName: newHostName,
	})
	ctl.ackOK(c, env.ID)
}

// handleRemoveUser forces a departure through the leave path and tells the
// removed connection it is out.
func (ctl *Controller) handleRemoveUser(ctx context.Context, connID domain.ConnectionID, c app.Sender, env envelope, data []byte) {
	var p struct {
		TargetConnectionID domain.ConnectionID `json:"targetConnectionId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.TargetConnectionID == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad remove-user payload")
		ctl.ackFailMsg(c, env.ID, "bad_payload")
		return
	}

	if _, _, ok := ctl.Index.Resolve(connID); !ok {
		ctl.ackFailMsg(c, env.ID, "no active session")
		return
	}

	res, err := ctl.Engine.Leave(ctx, p.TargetConnectionID)
	if err != nil {
		ctl.ackFail(c, env.ID, err)
		return
	}
	if res != nil {
		if s, ok := ctl.Index.Sender(p.TargetConnectionID); ok {
			ctl.sendTo(s, map[string]string{"type": evRemoved})
		}
		ctl.Index.ClearRoom(p.TargetConnectionID)
		if res.Room != nil {
			ctl.broadcastRoom(res.RoomCode, roomUpdatedEvent{Type: evRoomUpdated, roomView: viewRoom(res.Room)})
		}
		log.Info().Str("module", "signal").Str("room", string(res.RoomCode)).Str("user", res.User.Name).Msg("user removed")
	}
	ctl.ackOK(c, env.ID)
}
