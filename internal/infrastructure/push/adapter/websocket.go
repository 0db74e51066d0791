package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/push/port"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

// subscribeFrame is the control message sent after dialing to declare which
// table this logical channel wants changes for.
type subscribeFrame struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Table   string `json:"table"`
}

// WebsocketChannel implements port.Channel by dialing a realtime endpoint
// once per Subscribe call. Each logical channel owns its own socket, so
// tearing one down cannot starve another.
type WebsocketChannel struct {
	endpoint string
	header   http.Header
	log      *slog.Logger
}

// NewWebsocketChannel builds a channel factory for the given ws:// or wss://
// endpoint.
func NewWebsocketChannel(endpoint string, header http.Header, log *slog.Logger) *WebsocketChannel {
	if log == nil {
		log = slog.Default()
	}
	return &WebsocketChannel{endpoint: endpoint, header: header, log: log}
}

var _ port.Channel = (*WebsocketChannel)(nil)

// Subscribe dials the endpoint, announces the table of interest, and starts
// a read loop delivering change payloads to h until Close.
func (c *WebsocketChannel) Subscribe(ctx context.Context, name, table string, h port.Handler) (port.Subscription, error) {
	if table == "" {
		return nil, errors.New("push: table is required")
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.endpoint, c.header)
	if err != nil {
		return nil, err
	}

	_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := ws.WriteJSON(subscribeFrame{Type: "subscribe", Channel: name, Table: table}); err != nil {
		_ = ws.Close()
		return nil, err
	}

	sub := &wsSubscription{ws: ws, done: make(chan struct{})}
	go c.readLoop(name, sub, h)
	go sub.pingLoop()
	return sub, nil
}

func (c *WebsocketChannel) readLoop(name string, sub *wsSubscription, h port.Handler) {
	ws := sub.ws
	_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !sub.closed() {
				c.log.Warn("push: websocket channel dropped", "channel", name, "err", err)
			}
			sub.shutdown()
			return
		}
		var p port.Payload
		if err := json.Unmarshal(data, &p); err != nil {
			c.log.Warn("push: dropping malformed frame", "channel", name, "err", err)
			continue
		}
		h(p)
	}
}

type wsSubscription struct {
	ws   *websocket.Conn
	once sync.Once
	done chan struct{}
}

func (s *wsSubscription) pingLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			_ = s.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.shutdown()
				return
			}
		}
	}
}

func (s *wsSubscription) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *wsSubscription) shutdown() {
	s.once.Do(func() {
		close(s.done)
		_ = s.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
		_ = s.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
		_ = s.ws.Close()
	})
}

func (s *wsSubscription) Close() error {
	s.shutdown()
	return nil
}
