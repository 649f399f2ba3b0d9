package signal

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Mtman1987/streamweaver-v2-sub001/internal/config"
	"github.com/Mtman1987/streamweaver-v2-sub001/internal/core"
	"github.com/Mtman1987/streamweaver-v2-sub001/internal/mesh"
	"github.com/Mtman1987/streamweaver-v2-sub001/internal/presence"
	"github.com/Mtman1987/streamweaver-v2-sub001/internal/registry"
	"github.com/Mtman1987/streamweaver-v2-sub001/pkg/metrics"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller owns the WebSocket lifecycle and message dispatch. One
// instance serves all connections; per-connection state lives in the
// registry keyed by the connection handle.
type Controller struct {
	Registry *registry.Registry
	Presence *presence.Broadcaster
	Mesh     *mesh.Writer
	Metrics  *metrics.Metrics

	cfg *config.Config
}

func NewController(cfg *config.Config, reg *registry.Registry, pres *presence.Broadcaster, mw *mesh.Writer, m *metrics.Metrics) *Controller {
	return &Controller{
		Registry: reg,
		Presence: pres,
		Mesh:     mw,
		Metrics:  m,
		cfg:      cfg,
	}
}

// HandleSignal upgrades the request and starts the read/write pumps.
// The connection carries no state until its first join_voice or
// admin_connect/overlay_connect message.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := c.GetString("client_token")
	log.Info().Str("module", "signal").Str("sid", sid).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := newWsSignalConn(ws, ctl.cfg.SendBuffer)
	if ctl.Metrics != nil {
		ctl.Metrics.ConnectionsActive.Inc()
	}

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}

// writePump owns the socket: it is the only writer and the one that
// finally closes the transport, after the send channel is exhausted, so
// frames queued right before Close still flush to the client.
func (ctl *Controller) writePump(ctx context.Context, c *WsSignalConn) {
	pinger := time.NewTicker(ctl.cfg.PingPeriod)
	defer pinger.Stop()
	defer func() { _ = c.conn.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pinger.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		case data, ok := <-c.send:
			if !ok {
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

// readPump reads frames until the socket dies, then runs disconnect
// cleanup exactly once. Messages from one connection are processed in
// receipt order because this loop is the only dispatcher for it.
func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, sid string, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", sid).Msg("readPump closing")
		cancel()
		c.Close()
		ctl.HandleDisconnect(c)
		if ctl.Metrics != nil {
			ctl.Metrics.ConnectionsActive.Dec()
		}
	}()

	pongWait := ctl.cfg.PingPeriod * 10 / 9
	c.conn.SetReadLimit(ctl.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("sid", sid).Msg("readPump read error")
				return
			}
			ctl.HandleMessage(c, data)
		}
	}
}

// HandleDisconnect runs the idempotent session cleanup for a connection.
// Called from the read pump; also the entry point for tests driving fake
// connections.
func (ctl *Controller) HandleDisconnect(conn core.SignalConn) {
	user, hadUser := ctl.Registry.RemoveOnDisconnect(conn)
	if !hadUser {
		return
	}
	ctl.broadcastToRoom(user.Room, conn, "user_left_voice", leftPayload{UserID: user.ID, RoomID: user.Room})
	ctl.syncState(true)
}

// syncState re-derives the presence views and, when persist is set,
// writes the mesh snapshot. The snapshot is taken under the registry
// mutex; the file write happens outside it and the last write wins.
func (ctl *Controller) syncState(persist bool) {
	ctl.Presence.RefreshAll()
	snap := ctl.Registry.Snapshot()
	if ctl.Metrics != nil {
		ctl.Metrics.VoiceUsers.Set(float64(len(snap.Users)))
	}
	if persist {
		ctl.Mesh.Write(snap)
	}
}
