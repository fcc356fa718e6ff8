package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"collab-realtime/internal/domain"
	"collab-realtime/internal/service"
)

// RoomHandler serves the read side of rooms.
type RoomHandler struct {
	rooms    *service.RoomManagementService
	realtime *service.RealtimeService
}

// NewRoomHandler creates a RoomHandler.
func NewRoomHandler(rooms *service.RoomManagementService, realtime *service.RealtimeService) *RoomHandler {
	if rooms == nil {
		panic("RoomManagementService cannot be nil for RoomHandler")
	}
	if realtime == nil {
		panic("RealtimeService cannot be nil for RoomHandler")
	}
	return &RoomHandler{rooms: rooms, realtime: realtime}
}

// RoomSummary is the list representation of a room.
type RoomSummary struct {
	RoomID           string    `json:"roomId"`
	Type             string    `json:"type"`
	ResourceID       string    `json:"resourceId"`
	ParticipantCount int       `json:"participantCount"`
	CreatedAt        time.Time `json:"createdAt"`
	LastActivityAt   time.Time `json:"lastActivityAt"`
}

func summarize(room *domain.CollaborationRoom) RoomSummary {
	return RoomSummary{
		RoomID:           string(room.ID),
		Type:             string(room.Type),
		ResourceID:       room.ResourceID,
		ParticipantCount: room.ParticipantCount(),
		CreatedAt:        room.CreatedAt,
		LastActivityAt:   room.LastActivityAt,
	}
}

// ListRooms returns active rooms, optionally filtered by ?type=.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	var typeFilter *domain.RoomType
	if raw := c.Query("type"); raw != "" {
		t, err := domain.ParseRoomType(raw)
		if err != nil {
			ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		typeFilter = &t
	}

	rooms, err := h.rooms.GetActiveRooms(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		if typeFilter != nil && room.Type != *typeFilter {
			continue
		}
		summaries = append(summaries, summarize(room))
	}
	DataResponse(c, http.StatusOK, summaries)
}

// GetRoom returns one room with its full participant list and metadata.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID, err := domain.ParseRoomID(c.Param("roomId"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	room, err := h.rooms.GetRoomInfo(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	DataResponse(c, http.StatusOK, room)
}

// GetRoomParticipants returns the participant list for one room. A missing
// room yields an empty list.
func (h *RoomHandler) GetRoomParticipants(c *gin.Context) {
	roomID, err := domain.ParseRoomID(c.Param("roomId"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	participants, err := h.realtime.GetRoomParticipants(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	DataResponse(c, http.StatusOK, participants)
}

// GetStatistics returns the aggregate room statistics.
func (h *RoomHandler) GetStatistics(c *gin.Context) {
	stats, err := h.rooms.GetRoomStatistics(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	DataResponse(c, http.StatusOK, stats)
}

// GetRoomEvents returns the audit trail for one room, newest first.
func (h *RoomHandler) GetRoomEvents(c *gin.Context) {
	roomID, err := domain.ParseRoomID(c.Param("roomId"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := h.rooms.GetRoomEvents(c.Request.Context(), roomID, limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	DataResponse(c, http.StatusOK, records)
}

// UpdateMetadataRequest is the body for UpdateRoomMetadata.
type UpdateMetadataRequest struct {
	Metadata map[string]string `json:"metadata" binding:"required"`
}

// UpdateRoomMetadata overwrites a room's metadata.
func (h *RoomHandler) UpdateRoomMetadata(c *gin.Context) {
	roomID, err := domain.ParseRoomID(c.Param("roomId"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	var req UpdateMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: metadata is required")
		return
	}
	if err := h.rooms.UpdateRoomMetadata(c.Request.Context(), roomID, req.Metadata); err != nil {
		HandleServiceError(c, err)
		return
	}
	DataResponse(c, http.StatusOK, gin.H{"roomId": roomID})
}
