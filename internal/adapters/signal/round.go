package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/pointdeck/pointdeck/internal/app"
	"github.com/pointdeck/pointdeck/internal/domain"
)

func (ctl *Controller) handleStartVoting(ctx context.Context, connID domain.ConnectionID, c app.Sender, env envelope) {
	code, _, ok := ctl.Index.Resolve(connID)
	if !ok {
		ctl.ackFailMsg(c, env.ID, "no active session")
		return
	}

	room, err := ctl.Engine.StartVoting(ctx, code, connID)
	if err != nil {
		ctl.ackFail(c, env.ID, err)
		return
	}
	stats, err := ctl.Engine.ComputeStats(ctx, code)
	if err != nil {
		ctl.ackFail(c, env.ID, err)
		return
	}

	ctl.broadcastRoom(code, roundStateEvent{Type: evVotingStarted, RoundState: room.RoundState})
	ctl.sendTo(c, struct {
		ackBase
		Stats *app.Stats `json:"stats"`
	}{
		ackBase: ackBase{Type: evAck, ID: env.ID, Success: true},
		Stats:   stats,
	})
}

func (ctl *Controller) handleCastVote(ctx context.Context, connID domain.ConnectionID, c app.Sender, env envelope, data []byte) {
	// Vote values are free-form strings; the deck is advisory for clients,
	// not enforced here.
	var p struct {
		Vote string `json:"vote"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad cast-vote payload")
		ctl.ackFailMsg(c, env.ID, "bad_payload")
		return
	}

	code, userName, ok := ctl.Index.Resolve(connID)
	if !ok {
		ctl.ackFailMsg(c, env.ID, "no active session")
		return
	}

	if _, err := ctl.Engine.CastVote(ctx, code, connID, p.Vote); err != nil {
		ctl.ackFail(c, env.ID, err)
		return
	}
	stats, err := ctl.Engine.ComputeStats(ctx, code)
	if err != nil {
		ctl.ackFail(c, env.ID, err)
		return
	}

	ctl.broadcastRoom(code, voteCastEvent{
		Type:     evVoteCast,
		UserName: userName,
		Vote:     p.Vote,
		Stats:    stats,
	})
	ctl.ackOK(c, env.ID)
}

func (ctl *Controller) handleRevealVotes(ctx context.Context, connID domain.ConnectionID, c app.Sender, env envelope) {
	code, _, ok := ctl.Index.Resolve(connID)
	if !ok {
		ctl.ackFailMsg(c, env.ID, "no active session")
		return
	}

	room, err := ctl.Engine.RevealVotes(ctx, code, connID)
	if err != nil {
		ctl.ackFail(c, env.ID, err)
		return
	}
	stats, err := ctl.Engine.ComputeStats(ctx, code)
	if err != nil {
		ctl.ackFail(c, env.ID, err)
		return
	}

	ctl.broadcastRoom(code, votesRevealedEvent{
		Type:       evVotesRevealed,
		RoundState: room.RoundState,
		Votes:      stats.Votes,
		Average:    stats.Average,
		Stats:      stats,
	})
	ctl.ackOK(c, env.ID)
}

func (ctl *Controller) handleResetRound(ctx context.Context, connID domain.ConnectionID, c app.Sender, env envelope) {
	code, _, ok := ctl.Index.Resolve(connID)
	if !ok {
		ctl.ackFailMsg(c, env.ID, "no active session")
		return
	}

	room, err := ctl.Engine.ResetRound(ctx, code, connID)
	if err != nil {
		ctl.ackFail(c, env.ID, err)
		return
	}

	ctl.broadcastRoom(code, roundStateEvent{Type: evRoundReset, RoundState: room.RoundState})
	ctl.ackOK(c, env.ID)
}
