package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"collab-realtime/internal/domain"
	"collab-realtime/internal/service"
)

// ConnectionHandler serves the HTTP boundary for connection operations. It
// exists for collaborators that cannot hold a WebSocket (server-side jobs,
// integration tests); browsers use the socket transport.
type ConnectionHandler struct {
	realtime *service.RealtimeService
}

// NewConnectionHandler creates a ConnectionHandler.
func NewConnectionHandler(realtime *service.RealtimeService) *ConnectionHandler {
	if realtime == nil {
		panic("RealtimeService cannot be nil for ConnectionHandler")
	}
	return &ConnectionHandler{realtime: realtime}
}

// RegisterRequest is the body for Register.
type RegisterRequest struct {
	SocketID       string `json:"socketId"`
	UserID         string `json:"userId" binding:"required"`
	UserName       string `json:"userName" binding:"required"`
	UserEmail      string `json:"userEmail" binding:"required"`
	UserAvatar     string `json:"userAvatar"`
	OrganizationID string `json:"organizationId" binding:"required"`
}

// Register creates a connection record. The socket id is generated when the
// caller does not supply one.
func (h *ConnectionHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: userId, userName, userEmail and organizationId are required")
		return
	}
	if req.SocketID == "" {
		req.SocketID = uuid.NewString()
	}

	conn, _, err := h.realtime.RegisterConnection(c.Request.Context(), domain.SocketID(req.SocketID), domain.UserInfo{
		UserID:         req.UserID,
		UserName:       req.UserName,
		UserEmail:      req.UserEmail,
		UserAvatar:     req.UserAvatar,
		OrganizationID: req.OrganizationID,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{"socket_id": conn.SocketID, "user_id": conn.UserID}).Info("Handler.Register: connection registered")
	DataResponse(c, http.StatusCreated, conn)
}

// JoinRequest is the body for Join.
type JoinRequest struct {
	Type       string `json:"type" binding:"required"`
	ResourceID string `json:"resourceId" binding:"required"`
}

// Join adds the connection to the room for (type, resourceId).
func (h *ConnectionHandler) Join(c *gin.Context) {
	socketID := domain.SocketID(c.Param("socketId"))
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: type and resourceId are required")
		return
	}
	roomType, err := domain.ParseRoomType(req.Type)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.realtime.JoinRoom(c.Request.Context(), socketID, roomType, req.ResourceID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	DataResponse(c, http.StatusOK, gin.H{
		"roomId":       result.Room.ID,
		"participants": result.Room.ParticipantList(),
	})
}

// Leave removes the connection from its current room. A connection with no
// room answers with a null roomId.
func (h *ConnectionHandler) Leave(c *gin.Context) {
	socketID := domain.SocketID(c.Param("socketId"))
	result, err := h.realtime.LeaveRoom(c.Request.Context(), socketID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	DataResponse(c, http.StatusOK, gin.H{"roomId": result.RoomID})
}

// Unregister disconnects and removes the connection record.
func (h *ConnectionHandler) Unregister(c *gin.Context) {
	socketID := domain.SocketID(c.Param("socketId"))
	if _, err := h.realtime.UnregisterConnection(c.Request.Context(), socketID); err != nil {
		HandleServiceError(c, err)
		return
	}
	DataResponse(c, http.StatusOK, gin.H{"socketId": socketID})
}

// GetUserConnections lists all live connections for one user.
func (h *ConnectionHandler) GetUserConnections(c *gin.Context) {
	conns, err := h.realtime.GetUserConnections(c.Request.Context(), c.Param("userId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	if conns == nil {
		conns = []*domain.SocketConnection{}
	}
	DataResponse(c, http.StatusOK, conns)
}
