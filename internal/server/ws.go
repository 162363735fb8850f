package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wabridge/wabridge/internal/events"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// WSHandler upgrades connections and streams hub events to them.
type WSHandler struct {
	hub      *events.Hub
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewWSHandler creates the handler.
func NewWSHandler(hub *events.Hub, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.With().Str("component", "ws").Logger(),
	}
}

// ServeHTTP upgrades the request and registers the connection as a hub
// observer. The current status and pending QR replay immediately via the
// subscription.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	obs := h.hub.Subscribe()
	h.log.Debug().Str("observer", obs.ID()).Str("remote", r.RemoteAddr).Msg("websocket connected")

	go h.readLoop(conn, obs)
	h.writeLoop(conn, obs)
}

// readLoop drains inbound frames so control messages are processed; a read
// error means the peer went away.
func (h *WSHandler) readLoop(conn *websocket.Conn, obs *events.Observer) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.hub.Unsubscribe(obs.ID())
			conn.Close()
			return
		}
	}
}

func (h *WSHandler) writeLoop(conn *websocket.Conn, obs *events.Observer) {
	ping := time.NewTicker(wsPingInterval)
	defer func() {
		ping.Stop()
		h.hub.Unsubscribe(obs.ID())
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-obs.Events():
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				h.log.Debug().Err(err).Str("observer", obs.ID()).Msg("websocket write failed, dropping connection")
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
