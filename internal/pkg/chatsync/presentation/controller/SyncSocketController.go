package controller

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// SyncSocketController handles the websocket endpoint the change feed is
// served on. Clients connect, declare table interests with subscribe frames,
// and receive every published row change for those tables.
type SyncSocketController struct {
	hub *realtime.Hub
	log *slog.Logger
}

func NewSyncSocketController(hub *realtime.Hub, log *slog.Logger) *SyncSocketController {
	if log == nil {
		log = slog.Default()
	}
	return &SyncSocketController{hub: hub, log: log}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now; plug a proper checker when auth is added.
		return true
	},
}

// inboundFrame is what subscribers send. Only subscribe/unsubscribe are
// meaningful; the feed itself is strictly server-to-client.
type inboundFrame struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	Table   string `json:"table,omitempty"`
}

type ackFrame struct {
	Type  string `json:"type"`
	Table string `json:"table,omitempty"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

const socketReadTimeout = 60 * time.Second

// Handle upgrades the HTTP connection and processes subscribe frames until
// the client disconnects.
func (ctl *SyncSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response; just log and return.
			ctl.log.Warn("socket: upgrade failed", "err", err)
			return
		}

		conn := realtime.NewConnection(ws)
		ctl.hub.Attach(conn)
		defer func() {
			ctl.hub.Detach(conn)
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()

		ws.SetReadLimit(1 << 20)
		_ = ws.SetReadDeadline(time.Now().Add(socketReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(socketReadTimeout))
		})

		ctl.reply(conn, ackFrame{Type: "connected"})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
					errors.Is(err, websocket.ErrCloseSent) {
					return
				}
				return
			}

			var frame inboundFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				ctl.replyError(conn, "bad_request", "invalid payload")
				continue
			}

			switch frame.Type {
			case "subscribe":
				if frame.Table == "" {
					ctl.replyError(conn, "bad_request", "table is required")
					continue
				}
				ctl.hub.Subscribe(frame.Table, conn)
				ctl.reply(conn, ackFrame{Type: "subscribed", Table: frame.Table})
			default:
				ctl.replyError(conn, "unsupported_type", "unknown frame type")
			}
		}
	}
}

func (ctl *SyncSocketController) reply(conn *realtime.Connection, v any) {
	if payload, err := json.Marshal(v); err == nil {
		_ = conn.Send(payload)
	}
}

func (ctl *SyncSocketController) replyError(conn *realtime.Connection, code, message string) {
	ctl.reply(conn, errorFrame{Type: "error", Code: code, Error: message})
}
