package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/pointdeck/pointdeck/internal/app"
	"github.com/pointdeck/pointdeck/internal/domain"
)

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, connID domain.ConnectionID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(connID)).Msg("readPump closing")
		ctl.handleDisconnect(connID)
		ctl.Index.Unbind(connID)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(connID)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("readPump read error")
				return
			}
			ctl.handleFrame(ctx, connID, c, data)
		}
	}
}

func (ctl *Controller) handleFrame(ctx context.Context, connID domain.ConnectionID, c app.Sender, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.ackFailMsg(c, "", "bad_payload")
		return
	}

	switch env.Type {
	case evCreateRoom:
		ctl.handleCreateRoom(ctx, connID, c, env, data)
	case evJoinRoom:
		ctl.handleJoinRoom(ctx, connID, c, env, data)
	case evStartVoting:
		ctl.handleStartVoting(ctx, connID, c, env)
	case evCastVote:
		ctl.handleCastVote(ctx, connID, c, env, data)
	case evRevealVotes:
		ctl.handleRevealVotes(ctx, connID, c, env)
	case evResetRound:
		ctl.handleResetRound(ctx, connID, c, env)
	case evLeaveRoom:
		ctl.handleLeaveRoom(ctx, connID, c, env)
	case evMakeHost:
		ctl.handleMakeHost(ctx, connID, c, env, data)
	case evRemoveUser:
		ctl.handleRemoveUser(ctx, connID, c, env, data)
	case evPing:
		ctl.sendTo(c, map[string]string{"type": evPong})
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown event")
		ctl.ackFailMsg(c, env.ID, "unknown event")
	}
}

func (ctl *Controller) sendTo(s app.Sender, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("marshal outbound")
		return
	}
	if err := s.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("dropped outbound frame")
	}
}

// ackFail converts an engine failure into the per-request failure ack. No
// broadcast ever fires on failure.
func (ctl *Controller) ackFail(s app.Sender, id string, err error) {
	ctl.ackFailMsg(s, id, err.Error())
}

func (ctl *Controller) ackFailMsg(s app.Sender, id, msg string) {
	ctl.sendTo(s, ackBase{Type: evAck, ID: id, Success: false, Error: msg})
}

func (ctl *Controller) ackOK(s app.Sender, id string) {
	ctl.sendTo(s, ackBase{Type: evAck, ID: id, Success: true})
}
