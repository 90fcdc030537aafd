// Package signal is the websocket protocol handler: it maps inbound
// connection events to engine calls and engine results to acks and room
// broadcasts.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/pointdeck/pointdeck/internal/app"
	"github.com/pointdeck/pointdeck/internal/config"
	"github.com/pointdeck/pointdeck/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Engine *app.Engine
	Index  *app.Index

	cfg      *config.Config
	upgrader websocket.Upgrader
}

func NewController(cfg *config.Config, engine *app.Engine, index *app.Index) *Controller {
	return &Controller{
		Engine: engine,
		Index:  index,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == cfg.AllowedOrigin
			},
		},
	}
}

// wsConn wraps a websocket with a buffered outbound queue. Implements
// app.Sender.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleSignal upgrades the request and starts the connection's pumps. Each
// websocket gets a fresh connection id; the cookie client token only
// correlates logs across reconnects of the same browser.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.cfg.ReadLimit)

	connID := domain.ConnectionID(uuid.NewString())
	log.Info().Str("module", "signal").Str("conn", string(connID)).Str("client", c.GetString("client_token")).Msg("new WS connection")

	conn := &wsConn{
		conn: ws,
		send: make(chan []byte, ctl.cfg.SendBuffer),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Index.Bind(connID, conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, connID, conn)
}

// broadcastRoom fans v out to every live connection associated with the room.
func (ctl *Controller) broadcastRoom(code domain.RoomCode, v any) {
	ctl.broadcastExcept(code, "", v)
}

// broadcastExcept skips one connection, e.g. a departing one that may
// already be gone.
func (ctl *Controller) broadcastExcept(code domain.RoomCode, except domain.ConnectionID, v any) {
	for _, m := range ctl.Index.MembersOf(code) {
		if m.ConnID == except {
			continue
		}
		ctl.sendTo(m.Sender, v)
	}
}

// NotifyRoomsRemoved tells every connection still subscribed to a deleted
// room that it is gone, and drops the stale index entries. Used by the
// cleanup sweep.
func (ctl *Controller) NotifyRoomsRemoved(codes []domain.RoomCode) {
	for _, code := range codes {
		for _, m := range ctl.Index.MembersOf(code) {
			ctl.sendTo(m.Sender, map[string]string{"type": evRemoved})
			ctl.Index.ClearRoom(m.ConnID)
		}
	}
}

// RunCleanup sweeps inactive rooms and notifies orphaned connections.
func (ctl *Controller) RunCleanup(ctx context.Context) ([]domain.RoomCode, error) {
	deleted, err := ctl.Engine.CleanupInactive(ctx, ctl.cfg.RoomTTL)
	if err != nil {
		return nil, err
	}
	ctl.NotifyRoomsRemoved(deleted)
	return deleted, nil
}
