// Package hub adapts inbound socket events to RealtimeService calls and fans
// the results back out to room members. Its client/room maps are advisory
// caches mirroring repository state; the service layer is the source of truth.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"collab-realtime/internal/domain"
	"collab-realtime/internal/service"
)

// Inbound event names.
const (
	eventRegister    = "register"
	eventJoinRoom    = "join-room"
	eventLeaveRoom   = "leave-room"
	eventActivity    = "activity"
	eventRoomMessage = "room-message"
)

// Outbound event names.
const (
	eventRegistered  = "registered"
	eventRoomJoined  = "room-joined"
	eventUserJoined  = "user-joined"
	eventRoomLeft    = "room-left"
	eventUserLeft    = "user-left"
	eventError       = "error"
)

// serviceTimeout bounds every service call made on behalf of a socket event,
// so a stalled store cannot wedge a connection's handler.
const serviceTimeout = 5 * time.Second

// EventSink receives lifecycle events after persistence succeeded, for the
// audit trail. Implementations must not block.
type EventSink interface {
	Record(events []domain.Event)
}

// NopEventSink discards events.
type NopEventSink struct{}

func (NopEventSink) Record([]domain.Event) {}

// envelope is the wire frame for both directions.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outEnvelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type joinRoomPayload struct {
	Type       string `json:"type"`
	ResourceID string `json:"resourceId"`
}

type roomMessagePayload struct {
	RoomID  string          `json:"roomId"`
	Message json.RawMessage `json:"message"`
}

// Hub tracks attached clients and their room grouping.
type Hub struct {
	mu      sync.RWMutex
	clients map[domain.SocketID]*Client
	rooms   map[domain.RoomID]map[*Client]bool

	realtime *service.RealtimeService
	sink     EventSink
}

// NewHub creates a Hub.
func NewHub(realtime *service.RealtimeService, sink EventSink) *Hub {
	if realtime == nil {
		panic("RealtimeService cannot be nil for Hub")
	}
	if sink == nil {
		sink = NopEventSink{}
	}
	return &Hub{
		clients:  make(map[domain.SocketID]*Client),
		rooms:    make(map[domain.RoomID]map[*Client]bool),
		realtime: realtime,
		sink:     sink,
	}
}

// Attach makes the client routable. No connection record exists until the
// client sends a register event.
func (h *Hub) Attach(client *Client) {
	h.mu.Lock()
	h.clients[client.SocketID()] = client
	h.mu.Unlock()
	logrus.WithField("socket_id", client.SocketID()).Info("Client attached to hub")
}

// Detach handles the transport-native disconnect: unregisters the connection
// (triggering room cleanup), notifies the room, and drops the client from the
// caches.
func (h *Hub) Detach(client *Client) {
	socketID := client.SocketID()
	logCtx := logrus.WithField("socket_id", socketID)

	ctx, cancel := context.WithTimeout(context.Background(), serviceTimeout)
	defer cancel()

	result, err := h.realtime.UnregisterConnection(ctx, socketID)
	if err != nil {
		logCtx.WithError(err).Error("Hub: unregister on disconnect failed")
	} else {
		if result.RoomID != nil {
			h.broadcast(*result.RoomID, outEnvelope{Type: eventUserLeft, Payload: map[string]interface{}{
				"roomId":   *result.RoomID,
				"socketId": socketID,
			}}, client)
		}
		h.sink.Record(result.Events)
	}

	h.mu.Lock()
	delete(h.clients, socketID)
	for roomID, members := range h.rooms {
		if members[client] {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	h.mu.Unlock()

	client.closeSend()
	logCtx.Info("Client detached from hub")
}

// CloseAll stops every client's write pump during shutdown. Read pumps then
// observe the closed connection and run the normal Detach path.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.closeSend()
	}
	logrus.WithField("clients", len(clients)).Info("Hub closed all client connections")
}

// Dispatch handles one inbound frame from a client. It runs on the client's
// read goroutine, so events from the same socket are processed in order.
func (h *Hub) Dispatch(client *Client, raw []byte) {
	var frame envelope
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.sendError(client, "malformed message")
		return
	}

	switch frame.Type {
	case eventRegister:
		h.handleRegister(client, frame.Payload)
	case eventJoinRoom:
		h.handleJoinRoom(client, frame.Payload)
	case eventLeaveRoom:
		h.handleLeaveRoom(client)
	case eventActivity:
		h.handleActivity(client)
	case eventRoomMessage:
		h.handleRoomMessage(client, frame.Payload)
	default:
		logrus.WithFields(logrus.Fields{
			"socket_id": client.SocketID(),
			"type":      frame.Type,
		}).Warn("Hub: unknown event type")
		h.sendError(client, "unknown event type: "+frame.Type)
	}
}

func (h *Hub) handleRegister(client *Client, payload json.RawMessage) {
	var info domain.UserInfo
	if err := json.Unmarshal(payload, &info); err != nil {
		h.sendError(client, "malformed register payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), serviceTimeout)
	defer cancel()

	_, events, err := h.realtime.RegisterConnection(ctx, client.SocketID(), info)
	if err != nil {
		h.sendError(client, h.errorMessage(err, "register"))
		return
	}
	h.sink.Record(events)
	h.send(client, outEnvelope{Type: eventRegistered, Payload: map[string]interface{}{
		"success":  true,
		"socketId": client.SocketID(),
	}})
}

func (h *Hub) handleJoinRoom(client *Client, payload json.RawMessage) {
	var req joinRoomPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(client, "malformed join-room payload")
		return
	}
	roomType, err := domain.ParseRoomType(req.Type)
	if err != nil {
		h.sendError(client, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), serviceTimeout)
	defer cancel()

	result, err := h.realtime.JoinRoom(ctx, client.SocketID(), roomType, req.ResourceID)
	if err != nil {
		h.sendError(client, h.errorMessage(err, "join-room"))
		return
	}
	h.sink.Record(result.Events)
	roomID := result.Room.ID

	h.mu.Lock()
	if result.LeftRoom != nil {
		if members, ok := h.rooms[*result.LeftRoom]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, *result.LeftRoom)
			}
		}
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	h.mu.Unlock()

	if result.LeftRoom != nil {
		h.broadcast(*result.LeftRoom, outEnvelope{Type: eventUserLeft, Payload: map[string]interface{}{
			"roomId":   *result.LeftRoom,
			"socketId": client.SocketID(),
		}}, client)
	}

	// Existing members learn about the joiner; the joiner gets the full
	// participant list.
	h.broadcast(roomID, outEnvelope{Type: eventUserJoined, Payload: map[string]interface{}{
		"roomId": roomID,
		"user":   result.Participant,
	}}, client)
	h.send(client, outEnvelope{Type: eventRoomJoined, Payload: map[string]interface{}{
		"roomId":       roomID,
		"participants": result.Room.ParticipantList(),
	}})
}

func (h *Hub) handleLeaveRoom(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), serviceTimeout)
	defer cancel()

	result, err := h.realtime.LeaveRoom(ctx, client.SocketID())
	if err != nil {
		h.sendError(client, h.errorMessage(err, "leave-room"))
		return
	}
	if result.RoomID == nil {
		// not in a room; silent no-op
		return
	}
	h.sink.Record(result.Events)
	roomID := *result.RoomID

	h.mu.Lock()
	if members, ok := h.rooms[roomID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.mu.Unlock()

	h.send(client, outEnvelope{Type: eventRoomLeft, Payload: map[string]interface{}{
		"roomId": roomID,
	}})
	h.broadcast(roomID, outEnvelope{Type: eventUserLeft, Payload: map[string]interface{}{
		"roomId":   roomID,
		"socketId": client.SocketID(),
	}}, client)
}

func (h *Hub) handleActivity(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), serviceTimeout)
	defer cancel()
	if err := h.realtime.UpdateActivity(ctx, client.SocketID()); err != nil {
		logrus.WithField("socket_id", client.SocketID()).WithError(err).Warn("Hub: activity update failed")
	}
}

// handleRoomMessage relays the payload verbatim to the other members of the
// named room, tagged with the sender. No persistence, no ordering guarantee
// beyond transport order.
func (h *Hub) handleRoomMessage(client *Client, payload json.RawMessage) {
	var req roomMessagePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(client, "malformed room-message payload")
		return
	}
	roomID, err := domain.ParseRoomID(req.RoomID)
	if err != nil {
		h.sendError(client, err.Error())
		return
	}
	h.broadcast(roomID, outEnvelope{Type: eventRoomMessage, Payload: map[string]interface{}{
		"roomId":         roomID,
		"message":        req.Message,
		"senderSocketId": client.SocketID(),
	}}, client)
}

// broadcast sends the frame to every cached member of the room except sender.
func (h *Hub) broadcast(roomID domain.RoomID, frame outEnvelope, sender *Client) {
	h.mu.RLock()
	members := h.rooms[roomID]
	recipients := make([]*Client, 0, len(members))
	for client := range members {
		if client != sender {
			recipients = append(recipients, client)
		}
	}
	h.mu.RUnlock()

	if len(recipients) == 0 {
		return
	}
	data, err := json.Marshal(frame)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("Hub: failed to marshal broadcast frame")
		return
	}
	for _, client := range recipients {
		client.enqueue(data)
	}
}

func (h *Hub) send(client *Client, frame outEnvelope) {
	data, err := json.Marshal(frame)
	if err != nil {
		logrus.WithField("socket_id", client.SocketID()).WithError(err).Error("Hub: failed to marshal frame")
		return
	}
	client.enqueue(data)
}

func (h *Hub) sendError(client *Client, message string) {
	h.send(client, outEnvelope{Type: eventError, Payload: map[string]interface{}{
		"message": message,
	}})
}

// errorMessage maps a service error to a client-facing message. Timeouts are
// surfaced distinctly from not-found.
func (h *Hub) errorMessage(err error, op string) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return op + " timed out"
	case errors.Is(err, service.ErrConnectionNotFound):
		return "Connection not found"
	case errors.Is(err, service.ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, service.ErrRoomAtCapacity):
		return "Room is at capacity"
	case errors.Is(err, service.ErrValidation):
		return err.Error()
	default:
		logrus.WithError(err).Error("Hub: unexpected service error")
		return "internal server error"
	}
}
