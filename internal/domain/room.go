package domain

import (
	"sort"
	"time"
)

// RoomParticipant is one socket's membership record in a room.
type RoomParticipant struct {
	SocketID   SocketID  `json:"socketId"`
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	UserEmail  string    `json:"userEmail"`
	UserAvatar string    `json:"userAvatar,omitempty"`
	JoinedAt   time.Time `json:"joinedAt"`
}

// CollaborationRoom is a presence channel for one (type, resourceId) pair.
// Identity is the derived RoomID, so at most one room exists per pair.
type CollaborationRoom struct {
	ID             RoomID                       `json:"roomId"`
	Type           RoomType                     `json:"type"`
	ResourceID     string                       `json:"resourceId"`
	Participants   map[SocketID]RoomParticipant `json:"participants"`
	Metadata       map[string]string            `json:"metadata,omitempty"`
	CreatedAt      time.Time                    `json:"createdAt"`
	LastActivityAt time.Time                    `json:"lastActivityAt"`

	pending []Event
}

// NewCollaborationRoom creates an empty room for the pair.
func NewCollaborationRoom(roomType RoomType, resourceID string, now time.Time) (*CollaborationRoom, error) {
	id, err := NewRoomID(roomType, resourceID)
	if err != nil {
		return nil, err
	}
	r := &CollaborationRoom{
		ID:             id,
		Type:           roomType,
		ResourceID:     resourceID,
		Participants:   make(map[SocketID]RoomParticipant),
		CreatedAt:      now,
		LastActivityAt: now,
	}
	r.record(Event{Type: EventRoomCreated, RoomID: id, OccurredAt: now})
	return r, nil
}

// AddParticipant inserts or replaces the membership record for p's socket.
func (r *CollaborationRoom) AddParticipant(p RoomParticipant, now time.Time) {
	if r.Participants == nil {
		r.Participants = make(map[SocketID]RoomParticipant)
	}
	r.Participants[p.SocketID] = p
	r.touch(now)
	r.record(Event{Type: EventParticipantJoined, RoomID: r.ID, SocketID: p.SocketID, UserID: p.UserID, OccurredAt: now})
}

// RemoveParticipant deletes the membership record for socketID. Idempotent:
// removing an absent participant is a no-op and reports false.
func (r *CollaborationRoom) RemoveParticipant(socketID SocketID, now time.Time) bool {
	p, ok := r.Participants[socketID]
	if !ok {
		return false
	}
	delete(r.Participants, socketID)
	r.touch(now)
	r.record(Event{Type: EventParticipantLeft, RoomID: r.ID, SocketID: socketID, UserID: p.UserID, OccurredAt: now})
	return true
}

// UpdateParticipantActivity bumps the room's activity timestamp if the
// participant is present.
func (r *CollaborationRoom) UpdateParticipantActivity(socketID SocketID, now time.Time) bool {
	if _, ok := r.Participants[socketID]; !ok {
		return false
	}
	r.touch(now)
	return true
}

// UpdateMetadata replaces the room metadata map.
func (r *CollaborationRoom) UpdateMetadata(metadata map[string]string, now time.Time) {
	r.Metadata = metadata
	r.touch(now)
}

// MarkDestroyed records the destruction event and clears the participant set.
func (r *CollaborationRoom) MarkDestroyed(now time.Time) {
	r.Participants = make(map[SocketID]RoomParticipant)
	r.record(Event{Type: EventRoomDestroyed, RoomID: r.ID, OccurredAt: now})
}

// IsEmpty reports whether the room has no participants.
func (r *CollaborationRoom) IsEmpty() bool {
	return len(r.Participants) == 0
}

// ParticipantCount returns the number of participants.
func (r *CollaborationRoom) ParticipantCount() int {
	return len(r.Participants)
}

// ParticipantList returns the participants ordered by join time, then socket
// id for a stable order among simultaneous joins.
func (r *CollaborationRoom) ParticipantList() []RoomParticipant {
	list := make([]RoomParticipant, 0, len(r.Participants))
	for _, p := range r.Participants {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].JoinedAt.Equal(list[j].JoinedAt) {
			return list[i].JoinedAt.Before(list[j].JoinedAt)
		}
		return list[i].SocketID < list[j].SocketID
	})
	return list
}

// HasParticipant reports whether socketID is a member.
func (r *CollaborationRoom) HasParticipant(socketID SocketID) bool {
	_, ok := r.Participants[socketID]
	return ok
}

// PullEvents returns the pending events and clears the list.
func (r *CollaborationRoom) PullEvents() []Event {
	events := r.pending
	r.pending = nil
	return events
}

// Clone returns a deep copy without pending events.
func (r *CollaborationRoom) Clone() *CollaborationRoom {
	clone := *r
	clone.pending = nil
	clone.Participants = make(map[SocketID]RoomParticipant, len(r.Participants))
	for k, v := range r.Participants {
		clone.Participants[k] = v
	}
	if r.Metadata != nil {
		clone.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

func (r *CollaborationRoom) record(e Event) {
	r.pending = append(r.pending, e)
}

func (r *CollaborationRoom) touch(now time.Time) {
	if now.After(r.LastActivityAt) {
		r.LastActivityAt = now
	}
}
