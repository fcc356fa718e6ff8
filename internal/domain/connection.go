package domain

import "time"

// UserInfo carries the identity fields supplied on register.
type UserInfo struct {
	UserID         string `json:"userId"`
	UserName       string `json:"userName"`
	UserEmail      string `json:"userEmail"`
	UserAvatar     string `json:"userAvatar,omitempty"`
	OrganizationID string `json:"organizationId"`
}

// SocketConnection is the server-side representation of one live transport
// session. Identity is the SocketID.
type SocketConnection struct {
	SocketID       SocketID          `json:"socketId"`
	UserID         string            `json:"userId"`
	UserName       string            `json:"userName"`
	UserEmail      string            `json:"userEmail"`
	UserAvatar     string            `json:"userAvatar,omitempty"`
	OrganizationID string            `json:"organizationId"`
	Status         ConnectionStatus  `json:"status"`
	CurrentRoom    *RoomID           `json:"currentRoom,omitempty"`
	ConnectedAt    time.Time         `json:"connectedAt"`
	LastActivityAt time.Time         `json:"lastActivityAt"`
	Metadata       map[string]string `json:"metadata,omitempty"`

	pending []Event
}

// NewSocketConnection creates a connection in connected status.
func NewSocketConnection(socketID SocketID, info UserInfo, now time.Time) *SocketConnection {
	c := &SocketConnection{
		SocketID:       socketID,
		UserID:         info.UserID,
		UserName:       info.UserName,
		UserEmail:      info.UserEmail,
		UserAvatar:     info.UserAvatar,
		OrganizationID: info.OrganizationID,
		Status:         StatusConnected,
		ConnectedAt:    now,
		LastActivityAt: now,
	}
	c.record(Event{Type: EventConnectionRegistered, SocketID: socketID, UserID: info.UserID, OccurredAt: now})
	return c
}

// JoinRoom points the connection at roomID.
func (c *SocketConnection) JoinRoom(roomID RoomID, now time.Time) {
	c.CurrentRoom = &roomID
	c.touch(now)
}

// LeaveRoom clears the current room. Safe to call when not in a room.
func (c *SocketConnection) LeaveRoom(now time.Time) {
	c.CurrentRoom = nil
	c.touch(now)
}

// UpdateActivity bumps LastActivityAt.
func (c *SocketConnection) UpdateActivity(now time.Time) {
	c.touch(now)
}

// UpdateStatus transitions the connection status.
func (c *SocketConnection) UpdateStatus(status ConnectionStatus, now time.Time) {
	c.Status = status
	c.touch(now)
}

// UpdateMetadata replaces the opaque metadata map.
func (c *SocketConnection) UpdateMetadata(metadata map[string]string, now time.Time) {
	c.Metadata = metadata
	c.touch(now)
}

// Disconnect marks the connection disconnected and clears the current room.
func (c *SocketConnection) Disconnect(now time.Time) {
	c.Status = StatusDisconnected
	c.CurrentRoom = nil
	c.touch(now)
	c.record(Event{Type: EventConnectionDisconnected, SocketID: c.SocketID, UserID: c.UserID, OccurredAt: now})
}

// Participant builds this connection's room membership record.
func (c *SocketConnection) Participant(joinedAt time.Time) RoomParticipant {
	return RoomParticipant{
		SocketID:   c.SocketID,
		UserID:     c.UserID,
		UserName:   c.UserName,
		UserEmail:  c.UserEmail,
		UserAvatar: c.UserAvatar,
		JoinedAt:   joinedAt,
	}
}

// PullEvents returns the pending events and clears the list.
func (c *SocketConnection) PullEvents() []Event {
	events := c.pending
	c.pending = nil
	return events
}

// Clone returns a deep copy without pending events.
func (c *SocketConnection) Clone() *SocketConnection {
	clone := *c
	clone.pending = nil
	if c.CurrentRoom != nil {
		roomID := *c.CurrentRoom
		clone.CurrentRoom = &roomID
	}
	if c.Metadata != nil {
		clone.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

func (c *SocketConnection) record(e Event) {
	c.pending = append(c.pending, e)
}

// touch keeps LastActivityAt monotonically non-decreasing.
func (c *SocketConnection) touch(now time.Time) {
	if now.After(c.LastActivityAt) {
		c.LastActivityAt = now
	}
}
