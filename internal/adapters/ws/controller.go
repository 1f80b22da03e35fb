// Package ws is the websocket adapter: it upgrades connections, reads
// the JSON message envelope and drives the registry, and it owns the
// bus listeners that push stats, rosters and track updates back out.
package ws

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/GuntLondon/noise-box/internal/config"
	"github.com/GuntLondon/noise-box/internal/core"
	"github.com/GuntLondon/noise-box/internal/domain"
	"github.com/GuntLondon/noise-box/internal/event"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	cfg *config.Config
	reg *core.Registry
}

func NewController(cfg *config.Config, reg *core.Registry, bus *event.Bus) *Controller {
	ctl := &Controller{cfg: cfg, reg: reg}
	ctl.registerListeners(bus)
	return ctl
}

// Handle upgrades the request and starts the read/write pumps. Each
// websocket gets a freshly minted connection id; the cookie client
// token identifies the browser, not the connection.
func (ctl *Controller) Handle(ctx context.Context, c *gin.Context) {
	wsc, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade")
		return
	}

	connID := domain.ConnID(uuid.NewString())
	log.Info().Str("module", "ws").Str("conn", string(connID)).Str("client", c.GetString("client_token")).Msg("new connection")

	conn := newWSConn(wsc, ctl.cfg.SendBuffer)
	conn.conn.SetReadLimit(ctl.cfg.ReadLimit)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, connID, conn)
	}()
}

func (ctl *Controller) dispatch(connID domain.ConnID, conn *WSConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad json")
		return
	}

	switch env.Type {
	case "host_connect":
		ctl.handleHostConnect(connID, conn, data)
	case "user_connect":
		ctl.handleUserConnect(connID, conn, data)
	case "user_clicked_track":
		ctl.handleClickedTrack(connID, conn, data)
	case "user_name_update":
		ctl.handleNameUpdate(connID, conn, data)
	case "chat_message":
		ctl.handleChat(connID, conn, data)
	case "track_playing":
		ctl.handleTrackPlaying(connID, conn, data)
	case "track_complete":
		ctl.handleTrackComplete(connID, conn, data)
	case "ping":
		ctl.sendJSON(conn, map[string]any{"type": "pong"})
	default:
		log.Warn().Str("module", "ws").Str("type", env.Type).Msg("unknown message")
	}
}

func (ctl *Controller) sendJSON(c *WSConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *Controller) sendError(c *WSConn, msg string) {
	ctl.sendJSON(c, map[string]any{"type": "error", "error": msg})
}
