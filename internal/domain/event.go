package domain

import "time"

// EventType names a room/connection lifecycle event.
type EventType string

const (
	EventConnectionRegistered   EventType = "connection.registered"
	EventConnectionDisconnected EventType = "connection.disconnected"
	EventRoomCreated            EventType = "room.created"
	EventRoomDestroyed          EventType = "room.destroyed"
	EventParticipantJoined      EventType = "room.participant_joined"
	EventParticipantLeft        EventType = "room.participant_left"
)

// Event is a lifecycle fact recorded by an entity during a mutation. Entities
// accumulate events in a pending list; callers pull them after the repository
// write succeeded, so nothing is emitted for a write that later failed.
type Event struct {
	Type       EventType `json:"type"`
	RoomID     RoomID    `json:"roomId,omitempty"`
	SocketID   SocketID  `json:"socketId,omitempty"`
	UserID     string    `json:"userId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// EventRecord is the persisted form of an Event, written to MySQL by the
// background worker as the audit trail of room lifecycle activity.
type EventRecord struct {
	ID         uint      `gorm:"primaryKey"`
	Type       string    `gorm:"type:varchar(64);index;not null"`
	RoomID     string    `gorm:"type:varchar(200);index"`
	SocketID   string    `gorm:"type:varchar(100)"`
	UserID     string    `gorm:"type:varchar(100);index"`
	OccurredAt time.Time `gorm:"index"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// NewEventRecord converts a domain event into its persisted form.
func NewEventRecord(e Event) EventRecord {
	return EventRecord{
		Type:       string(e.Type),
		RoomID:     string(e.RoomID),
		SocketID:   string(e.SocketID),
		UserID:     e.UserID,
		OccurredAt: e.OccurredAt,
	}
}
