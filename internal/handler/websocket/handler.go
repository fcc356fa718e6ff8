package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"collab-realtime/internal/domain"
	"collab-realtime/internal/hub"
)

// WebSocketHandler upgrades HTTP requests and attaches clients to the hub.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
}

// NewWebSocketHandler creates a WebSocketHandler.
func NewWebSocketHandler(h *hub.Hub) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	return &WebSocketHandler{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// TODO: restrict origins via config before exposing publicly
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleConnection upgrades the request, assigns a socket id, and starts the
// client pumps. The connection record itself is created when the client sends
// a register event.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response
		logrus.WithError(err).Error("WS Handler: failed to upgrade connection")
		return
	}

	socketID := domain.SocketID(uuid.NewString())
	client := hub.NewClient(h.hub, conn, socketID)
	h.hub.Attach(client)
	client.Run()

	logrus.WithField("socket_id", socketID).Info("WS Handler: connection upgraded, pumps started")
}
