// README: WebSocket endpoint bridging connections into the session registry.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"kota/internal/http/middleware"
	"kota/internal/realtime"
	"kota/internal/types"
)

type WSHandler struct {
	registry *realtime.Registry
	upgrader websocket.Upgrader
}

func NewWSHandler(registry *realtime.Registry) *WSHandler {
	return &WSHandler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin policy is enforced at the gateway in front of this service.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// wsSink adapts a gorilla connection to the realtime.Sink contract. All writes
// come from the connection's single writeLoop, as gorilla requires.
type wsSink struct {
	ws *websocket.Conn
}

func (s *wsSink) WriteMessage(m realtime.Message) error {
	_ = s.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.ws.WriteJSON(m)
}

func (s *wsSink) Close() error {
	return s.ws.Close()
}

// clientCommand is what subscribers send upstream.
type clientCommand struct {
	Action  string `json:"action"` // subscribe | unsubscribe | online | offline
	OrderID string `json:"order_id"`
}

func (h *WSHandler) Serve(c *gin.Context) {
	actor := middleware.CallerActor(c)
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err)
		return
	}

	conn := realtime.NewConn(actor.ID, &wsSink{ws: ws})
	defer h.registry.Disconnect(conn)

	for {
		var cmd clientCommand
		if err := ws.ReadJSON(&cmd); err != nil {
			return
		}
		switch cmd.Action {
		case "subscribe":
			if cmd.OrderID != "" {
				h.registry.Subscribe(conn, types.ID(cmd.OrderID))
			}
		case "unsubscribe":
			if cmd.OrderID != "" {
				h.registry.Unsubscribe(conn, types.ID(cmd.OrderID))
			}
		case "online":
			if actor.Role == types.RoleRider && actor.ID != "" {
				h.registry.SetAvailable(actor.ID, conn)
			}
		case "offline":
			if actor.Role == types.RoleRider && actor.ID != "" {
				h.registry.SetUnavailable(actor.ID)
			}
		}
	}
}
