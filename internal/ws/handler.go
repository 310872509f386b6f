package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nurpe/greenops-routes/internal/auth"
	"github.com/nurpe/greenops-routes/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// InboundHandler processes one typed message from a live connection and
// returns the events to publish in response. Handlers get no access to the
// connection itself, so there is no shared mutable state between them.
type InboundHandler interface {
	HandleInbound(ctx context.Context, principal model.Principal, msg InboundMessage) ([]Outbound, error)
}

type Handler struct {
	hub     *Hub
	parser  *auth.Parser
	inbound InboundHandler
	log     zerolog.Logger
}

func NewHandler(hub *Hub, parser *auth.Parser, inbound InboundHandler, log zerolog.Logger) *Handler {
	return &Handler{hub: hub, parser: parser, inbound: inbound, log: log}
}

// Serve upgrades an authenticated connection and keeps it subscribed to
// the principal's rooms until it drops.
func (h *Handler) Serve(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token is required"})
		return
	}
	principal, err := h.parser.Parse(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub, err := h.hub.Join(model.RoomsFor(principal)...)
	if err != nil {
		h.log.Error().Err(err).Msg("hub join failed")
		conn.Close()
		return
	}
	h.log.Debug().Str("user", principal.UserID.String()).Str("role", string(principal.Role)).Msg("websocket client connected")

	go h.writePump(conn, sub)
	h.readLoop(c.Request.Context(), conn, principal)

	h.hub.Leave(sub)
	conn.Close()

	// Admin dashboards track collector liveness; everyone else just drops.
	if principal.IsCollector() {
		if err := h.hub.Publish(model.RoomAdmins, EventCollectorOffline, gin.H{"collector_id": principal.UserID}); err != nil {
			h.log.Warn().Err(err).Msg("collector-offline broadcast failed")
		}
	}
	h.log.Debug().Str("user", principal.UserID.String()).Msg("websocket client disconnected")
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, principal model.Principal) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Msg("unexpected websocket close")
			}
			return
		}

		var msg InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.Warn().Err(err).Msg("malformed inbound message")
			continue
		}

		outbound, err := h.inbound.HandleInbound(ctx, principal, msg)
		if err != nil {
			h.log.Warn().Err(err).Str("type", msg.Type).Msg("inbound message rejected")
			continue
		}
		for _, out := range outbound {
			if err := h.hub.Publish(out.Room, out.Event.Name, out.Event.Payload); err != nil {
				h.log.Warn().Err(err).Str("event", out.Event.Name).Msg("broadcast failed")
			}
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, sub *Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-sub.Events():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
