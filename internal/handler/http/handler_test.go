package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collab-realtime/internal/domain"
	httpHandler "collab-realtime/internal/handler/http"
	"collab-realtime/internal/infra/persistence/memory"
	"collab-realtime/internal/service"
)

type testEnv struct {
	router   *gin.Engine
	realtime *service.RealtimeService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	roomRepo := memory.NewRoomRepository()
	realtime := service.NewRealtimeService(memory.NewConnectionRepository(), roomRepo, 0)
	rooms := service.NewRoomManagementService(roomRepo, memory.NewEventRepository())

	roomHandler := httpHandler.NewRoomHandler(rooms, realtime)
	connHandler := httpHandler.NewConnectionHandler(realtime)

	router := gin.New()
	api := router.Group("/api")
	{
		api.GET("/rooms", roomHandler.ListRooms)
		api.GET("/rooms/stats", roomHandler.GetStatistics)
		api.GET("/rooms/:roomId", roomHandler.GetRoom)
		api.GET("/rooms/:roomId/participants", roomHandler.GetRoomParticipants)
		api.PUT("/rooms/:roomId/metadata", roomHandler.UpdateRoomMetadata)
		api.POST("/connections", connHandler.Register)
		api.POST("/connections/:socketId/join", connHandler.Join)
		api.POST("/connections/:socketId/leave", connHandler.Leave)
		api.DELETE("/connections/:socketId", connHandler.Unregister)
		api.GET("/users/:userId/connections", connHandler.GetUserConnections)
	}
	return &testEnv{router: router, realtime: realtime}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func registerBody(socketID, userID string) gin.H {
	return gin.H{
		"socketId":       socketID,
		"userId":         userID,
		"userName":       "User " + userID,
		"userEmail":      userID + "@example.com",
		"organizationId": "org1",
	}
}

func TestConnectionHandler_Register_Success(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/connections", registerBody("s1", "u1"))
	assert.Equal(t, http.StatusCreated, w.Code)

	envelope := decodeBody(t, w)
	data, ok := envelope["data"]
	require.True(t, ok, "success responses use the data envelope")

	var conn struct {
		SocketID string `json:"socketId"`
		Status   string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(data, &conn))
	assert.Equal(t, "s1", conn.SocketID)
	assert.Equal(t, "connected", conn.Status)
}

func TestConnectionHandler_Register_GeneratesSocketID(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/connections", registerBody("", "u1"))
	assert.Equal(t, http.StatusCreated, w.Code)

	var conn struct {
		SocketID string `json:"socketId"`
	}
	require.NoError(t, json.Unmarshal(decodeBody(t, w)["data"], &conn))
	assert.NotEmpty(t, conn.SocketID)
}

func TestConnectionHandler_Register_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/connections", gin.H{"userId": "u1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	envelope := decodeBody(t, w)
	_, ok := envelope["error"]
	assert.True(t, ok, "failure responses use the error envelope")
}

func TestConnectionHandler_Join_And_Leave(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/connections", registerBody("s1", "u1"))

	w := env.do(t, http.MethodPost, "/api/connections/s1/join", gin.H{"type": "dashboard", "resourceId": "d1"})
	assert.Equal(t, http.StatusOK, w.Code)

	var joined struct {
		RoomID       string                   `json:"roomId"`
		Participants []domain.RoomParticipant `json:"participants"`
	}
	require.NoError(t, json.Unmarshal(decodeBody(t, w)["data"], &joined))
	assert.Equal(t, "dashboard:d1", joined.RoomID)
	require.Len(t, joined.Participants, 1)

	w = env.do(t, http.MethodPost, "/api/connections/s1/leave", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var left struct {
		RoomID *string `json:"roomId"`
	}
	require.NoError(t, json.Unmarshal(decodeBody(t, w)["data"], &left))
	require.NotNil(t, left.RoomID)
	assert.Equal(t, "dashboard:d1", *left.RoomID)

	// Leaving again is a no-op with a null roomId.
	w = env.do(t, http.MethodPost, "/api/connections/s1/leave", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decodeBody(t, w)["data"], &left))
	assert.Nil(t, left.RoomID)
}

func TestConnectionHandler_Join_UnknownSocket(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/connections/ghost/join", gin.H{"type": "dashboard", "resourceId": "d1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConnectionHandler_Join_InvalidType(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/connections", registerBody("s1", "u1"))

	w := env.do(t, http.MethodPost, "/api/connections/s1/join", gin.H{"type": "spreadsheet", "resourceId": "d1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoomHandler_ListRooms_TypeFilter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.do(t, http.MethodPost, "/api/connections", registerBody("s1", "u1"))
	env.do(t, http.MethodPost, "/api/connections", registerBody("s2", "u2"))
	_, err := env.realtime.JoinRoom(ctx, "s1", domain.RoomTypeDashboard, "d1")
	require.NoError(t, err)
	_, err = env.realtime.JoinRoom(ctx, "s2", domain.RoomTypeWorkflow, "wf1")
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/api/rooms", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var all []httpHandler.RoomSummary
	require.NoError(t, json.Unmarshal(decodeBody(t, w)["data"], &all))
	assert.Len(t, all, 2)

	w = env.do(t, http.MethodGet, "/api/rooms?type=dashboard", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var filtered []httpHandler.RoomSummary
	require.NoError(t, json.Unmarshal(decodeBody(t, w)["data"], &filtered))
	require.Len(t, filtered, 1)
	assert.Equal(t, "dashboard:d1", filtered[0].RoomID)

	w = env.do(t, http.MethodGet, "/api/rooms?type=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoomHandler_GetRoom(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/connections", registerBody("s1", "u1"))
	_, err := env.realtime.JoinRoom(context.Background(), "s1", domain.RoomTypeDashboard, "d1")
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/api/rooms/dashboard:d1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var room struct {
		RoomID     string `json:"roomId"`
		Type       string `json:"type"`
		ResourceID string `json:"resourceId"`
	}
	require.NoError(t, json.Unmarshal(decodeBody(t, w)["data"], &room))
	assert.Equal(t, "dashboard:d1", room.RoomID)
	assert.Equal(t, "dashboard", room.Type)
	assert.Equal(t, "d1", room.ResourceID)

	w = env.do(t, http.MethodGet, "/api/rooms/dashboard:none", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoomHandler_GetRoomParticipants_MissingRoomIsEmptyList(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/rooms/dashboard:none/participants", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var participants []domain.RoomParticipant
	require.NoError(t, json.Unmarshal(decodeBody(t, w)["data"], &participants))
	assert.Empty(t, participants)
}

func TestRoomHandler_GetRoomParticipants_BadRoomID(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/rooms/notaroomid/participants", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoomHandler_GetStatistics(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/connections", registerBody("s1", "u1"))
	_, err := env.realtime.JoinRoom(context.Background(), "s1", domain.RoomTypeReport, "r1")
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/api/rooms/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var stats service.RoomStatistics
	require.NoError(t, json.Unmarshal(decodeBody(t, w)["data"], &stats))
	assert.Equal(t, 1, stats.TotalRooms)
	assert.Equal(t, 1, stats.ActiveRooms)
	assert.Equal(t, 1, stats.TotalParticipants)
	assert.Len(t, stats.RoomsByType, 6)
}

func TestRoomHandler_UpdateRoomMetadata(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/connections", registerBody("s1", "u1"))
	_, err := env.realtime.JoinRoom(context.Background(), "s1", domain.RoomTypeDashboard, "d1")
	require.NoError(t, err)

	w := env.do(t, http.MethodPut, "/api/rooms/dashboard:d1/metadata", gin.H{"metadata": gin.H{"title": "Q3"}})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPut, "/api/rooms/dashboard:none/metadata", gin.H{"metadata": gin.H{"title": "Q3"}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPut, "/api/rooms/dashboard:d1/metadata", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConnectionHandler_Unregister_CleansUp(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/connections", registerBody("s1", "u1"))
	_, err := env.realtime.JoinRoom(context.Background(), "s1", domain.RoomTypeDashboard, "d1")
	require.NoError(t, err)

	w := env.do(t, http.MethodDelete, "/api/connections/s1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/rooms", nil)
	var rooms []httpHandler.RoomSummary
	require.NoError(t, json.Unmarshal(decodeBody(t, w)["data"], &rooms))
	assert.Empty(t, rooms)

	// Unregistering an unknown socket stays a 200 no-op.
	w = env.do(t, http.MethodDelete, "/api/connections/ghost", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConnectionHandler_GetUserConnections(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/connections", registerBody("s1", "u1"))
	env.do(t, http.MethodPost, "/api/connections", registerBody("s2", "u1"))

	w := env.do(t, http.MethodGet, "/api/users/u1/connections", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var conns []json.RawMessage
	require.NoError(t, json.Unmarshal(decodeBody(t, w)["data"], &conns))
	assert.Len(t, conns, 2)

	// Unknown users answer with an empty list, never null.
	w = env.do(t, http.MethodGet, "/api/users/nobody/connections", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(decodeBody(t, w)["data"]))
}
