package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collab-realtime/internal/domain"
	"collab-realtime/internal/infra/persistence/memory"
	"collab-realtime/internal/service"
)

// recordingSink captures events handed to the sink.
type recordingSink struct {
	events []domain.Event
}

func (s *recordingSink) Record(events []domain.Event) {
	s.events = append(s.events, events...)
}

func newTestHub(maxParticipants int) (*Hub, *recordingSink) {
	svc := service.NewRealtimeService(memory.NewConnectionRepository(), memory.NewRoomRepository(), maxParticipants)
	sink := &recordingSink{}
	return NewHub(svc, sink), sink
}

// newTestClient builds a client with no transport. Handlers only touch the
// socket id and the send queue, so frames can be read straight off the
// channel.
func newTestClient(h *Hub, socketID string) *Client {
	c := &Client{
		hub:      h,
		socketID: domain.SocketID(socketID),
		send:     make(chan []byte, 256),
	}
	h.Attach(c)
	return c
}

type frame struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

func nextFrame(t *testing.T, c *Client) frame {
	t.Helper()
	select {
	case raw := <-c.send:
		var f frame
		require.NoError(t, json.Unmarshal(raw, &f))
		return f
	default:
		t.Fatal("no frame queued")
		return frame{}
	}
}

func assertNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected frame: %s", raw)
	default:
	}
}

func dispatch(h *Hub, c *Client, eventType string, payload interface{}) {
	raw, _ := json.Marshal(map[string]interface{}{"type": eventType, "payload": payload})
	h.Dispatch(c, raw)
}

func register(t *testing.T, h *Hub, c *Client, userID string) {
	t.Helper()
	dispatch(h, c, "register", map[string]string{
		"userId":         userID,
		"userName":       "User " + userID,
		"userEmail":      userID + "@example.com",
		"organizationId": "org1",
	})
	f := nextFrame(t, c)
	require.Equal(t, "registered", f.Type)
}

func TestHub_Register(t *testing.T) {
	h, sink := newTestHub(0)
	c := newTestClient(h, "s1")

	dispatch(h, c, "register", map[string]string{
		"userId":         "u1",
		"userName":       "Ann",
		"userEmail":      "ann@example.com",
		"organizationId": "org1",
	})

	f := nextFrame(t, c)
	assert.Equal(t, "registered", f.Type)
	assert.Equal(t, true, f.Payload["success"])
	assert.Equal(t, "s1", f.Payload["socketId"])

	require.Len(t, sink.events, 1)
	assert.Equal(t, domain.EventConnectionRegistered, sink.events[0].Type)
}

func TestHub_Register_MissingFields(t *testing.T) {
	h, _ := newTestHub(0)
	c := newTestClient(h, "s1")

	dispatch(h, c, "register", map[string]string{"userId": "u1"})

	f := nextFrame(t, c)
	assert.Equal(t, "error", f.Type)
}

func TestHub_JoinRoom_Broadcasts(t *testing.T) {
	h, _ := newTestHub(0)
	first := newTestClient(h, "s1")
	second := newTestClient(h, "s2")
	register(t, h, first, "u1")
	register(t, h, second, "u2")

	dispatch(h, first, "join-room", map[string]string{"type": "dashboard", "resourceId": "d1"})
	f := nextFrame(t, first)
	require.Equal(t, "room-joined", f.Type)
	assert.Equal(t, "dashboard:d1", f.Payload["roomId"])

	dispatch(h, second, "join-room", map[string]string{"type": "dashboard", "resourceId": "d1"})

	// The existing member hears about the joiner.
	f = nextFrame(t, first)
	assert.Equal(t, "user-joined", f.Type)
	user, ok := f.Payload["user"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "s2", user["socketId"])

	// The joiner gets the full participant list, not a user-joined echo.
	f = nextFrame(t, second)
	require.Equal(t, "room-joined", f.Type)
	participants, ok := f.Payload["participants"].([]interface{})
	require.True(t, ok)
	assert.Len(t, participants, 2)
	assertNoFrame(t, second)
}

func TestHub_JoinRoom_SwitchNotifiesOldRoom(t *testing.T) {
	h, _ := newTestHub(0)
	first := newTestClient(h, "s1")
	second := newTestClient(h, "s2")
	register(t, h, first, "u1")
	register(t, h, second, "u2")

	dispatch(h, first, "join-room", map[string]string{"type": "dashboard", "resourceId": "d1"})
	nextFrame(t, first) // room-joined
	dispatch(h, second, "join-room", map[string]string{"type": "dashboard", "resourceId": "d1"})
	nextFrame(t, first)  // user-joined
	nextFrame(t, second) // room-joined

	dispatch(h, second, "join-room", map[string]string{"type": "workflow", "resourceId": "wf1"})

	f := nextFrame(t, first)
	assert.Equal(t, "user-left", f.Type)
	assert.Equal(t, "dashboard:d1", f.Payload["roomId"])
	assert.Equal(t, "s2", f.Payload["socketId"])

	f = nextFrame(t, second)
	assert.Equal(t, "room-joined", f.Type)
	assert.Equal(t, "workflow:wf1", f.Payload["roomId"])
}

func TestHub_LeaveRoom(t *testing.T) {
	h, _ := newTestHub(0)
	first := newTestClient(h, "s1")
	second := newTestClient(h, "s2")
	register(t, h, first, "u1")
	register(t, h, second, "u2")

	dispatch(h, first, "join-room", map[string]string{"type": "report", "resourceId": "r1"})
	nextFrame(t, first)
	dispatch(h, second, "join-room", map[string]string{"type": "report", "resourceId": "r1"})
	nextFrame(t, first)
	nextFrame(t, second)

	dispatch(h, first, "leave-room", nil)

	f := nextFrame(t, first)
	assert.Equal(t, "room-left", f.Type)
	f = nextFrame(t, second)
	assert.Equal(t, "user-left", f.Type)
	assert.Equal(t, "s1", f.Payload["socketId"])

	// Leaving again is silent.
	dispatch(h, first, "leave-room", nil)
	assertNoFrame(t, first)
	assertNoFrame(t, second)
}

func TestHub_RoomMessage_RelayExcludesSender(t *testing.T) {
	h, _ := newTestHub(0)
	first := newTestClient(h, "s1")
	second := newTestClient(h, "s2")
	register(t, h, first, "u1")
	register(t, h, second, "u2")

	dispatch(h, first, "join-room", map[string]string{"type": "document", "resourceId": "doc1"})
	nextFrame(t, first)
	dispatch(h, second, "join-room", map[string]string{"type": "document", "resourceId": "doc1"})
	nextFrame(t, first)
	nextFrame(t, second)

	dispatch(h, first, "room-message", map[string]interface{}{
		"roomId":  "document:doc1",
		"message": map[string]string{"cursor": "5,3"},
	})

	f := nextFrame(t, second)
	assert.Equal(t, "room-message", f.Type)
	assert.Equal(t, "s1", f.Payload["senderSocketId"])
	message, ok := f.Payload["message"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "5,3", message["cursor"])

	assertNoFrame(t, first)
}

func TestHub_RoomMessage_InvalidRoomID(t *testing.T) {
	h, _ := newTestHub(0)
	c := newTestClient(h, "s1")
	register(t, h, c, "u1")

	dispatch(h, c, "room-message", map[string]interface{}{"roomId": "bogus", "message": "x"})
	f := nextFrame(t, c)
	assert.Equal(t, "error", f.Type)
}

func TestHub_Dispatch_MalformedAndUnknown(t *testing.T) {
	h, _ := newTestHub(0)
	c := newTestClient(h, "s1")

	h.Dispatch(c, []byte("{not json"))
	f := nextFrame(t, c)
	assert.Equal(t, "error", f.Type)

	dispatch(h, c, "teleport", nil)
	f = nextFrame(t, c)
	assert.Equal(t, "error", f.Type)
}

func TestHub_JoinRoom_AtCapacity(t *testing.T) {
	h, _ := newTestHub(1)
	first := newTestClient(h, "s1")
	second := newTestClient(h, "s2")
	register(t, h, first, "u1")
	register(t, h, second, "u2")

	dispatch(h, first, "join-room", map[string]string{"type": "analytics", "resourceId": "a1"})
	nextFrame(t, first)

	dispatch(h, second, "join-room", map[string]string{"type": "analytics", "resourceId": "a1"})
	f := nextFrame(t, second)
	assert.Equal(t, "error", f.Type)
	assert.Equal(t, "Room is at capacity", f.Payload["message"])
}

func TestHub_ErrorMessage_TimeoutDistinctFromNotFound(t *testing.T) {
	h, _ := newTestHub(0)

	assert.Equal(t, "join-room timed out", h.errorMessage(context.DeadlineExceeded, "join-room"))
	assert.Equal(t, "Connection not found", h.errorMessage(service.ErrConnectionNotFound, "join-room"))
	assert.Equal(t, "Room not found", h.errorMessage(service.ErrRoomNotFound, "join-room"))
	assert.Equal(t, "internal server error", h.errorMessage(fmt.Errorf("mysql went away"), "join-room"))
}
