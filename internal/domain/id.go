package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors for the identifier value types.
var (
	ErrInvalidSocketID   = errors.New("socket id must be between 1 and 100 characters")
	ErrInvalidRoomID     = errors.New("room id must be between 1 and 200 characters and contain a type prefix")
	ErrInvalidRoomType   = errors.New("unknown room type")
	ErrInvalidResourceID = errors.New("resource id must not be empty")
)

const (
	maxSocketIDLen = 100
	maxRoomIDLen   = 200
)

// SocketID identifies one transport-level connection. Opaque, equality by value.
type SocketID string

// NewSocketID validates raw and returns it as a SocketID.
func NewSocketID(raw string) (SocketID, error) {
	if len(raw) == 0 || len(raw) > maxSocketIDLen {
		return "", ErrInvalidSocketID
	}
	return SocketID(raw), nil
}

func (id SocketID) String() string { return string(id) }

// RoomType is the closed set of resources a room can be attached to.
type RoomType string

const (
	RoomTypeWorkflow    RoomType = "workflow"
	RoomTypeAnalytics   RoomType = "analytics"
	RoomTypeReport      RoomType = "report"
	RoomTypeIntegration RoomType = "integration"
	RoomTypeDocument    RoomType = "document"
	RoomTypeDashboard   RoomType = "dashboard"
)

// AllRoomTypes returns every valid room type, in a stable order.
// Statistics rely on this to zero-fill the per-type histogram.
func AllRoomTypes() []RoomType {
	return []RoomType{
		RoomTypeWorkflow,
		RoomTypeAnalytics,
		RoomTypeReport,
		RoomTypeIntegration,
		RoomTypeDocument,
		RoomTypeDashboard,
	}
}

// ParseRoomType validates raw against the closed enumeration.
func ParseRoomType(raw string) (RoomType, error) {
	switch t := RoomType(raw); t {
	case RoomTypeWorkflow, RoomTypeAnalytics, RoomTypeReport,
		RoomTypeIntegration, RoomTypeDocument, RoomTypeDashboard:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRoomType, raw)
}

func (t RoomType) String() string { return string(t) }

// ConnectionStatus is the lifecycle state of a SocketConnection.
type ConnectionStatus string

const (
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusError        ConnectionStatus = "error"
)

// RoomID identifies one collaboration room. It is always derived as
// "<type>:<resourceId>", so a room's identity is fully determined by the pair.
type RoomID string

// NewRoomID derives the room id for a (type, resourceId) pair. The derivation
// is deterministic: the same pair always yields the same id.
func NewRoomID(roomType RoomType, resourceID string) (RoomID, error) {
	if _, err := ParseRoomType(string(roomType)); err != nil {
		return "", err
	}
	if resourceID == "" {
		return "", ErrInvalidResourceID
	}
	id := string(roomType) + ":" + resourceID
	if len(id) > maxRoomIDLen {
		return "", ErrInvalidRoomID
	}
	return RoomID(id), nil
}

// ParseRoomID validates a raw room id and checks its type prefix.
func ParseRoomID(raw string) (RoomID, error) {
	if len(raw) == 0 || len(raw) > maxRoomIDLen {
		return "", ErrInvalidRoomID
	}
	typePart, resourcePart, ok := strings.Cut(raw, ":")
	if !ok || resourcePart == "" {
		return "", ErrInvalidRoomID
	}
	if _, err := ParseRoomType(typePart); err != nil {
		return "", err
	}
	return RoomID(raw), nil
}

// Type returns the room type encoded in the id.
func (id RoomID) Type() RoomType {
	typePart, _, _ := strings.Cut(string(id), ":")
	return RoomType(typePart)
}

// ResourceID returns the resource part of the id.
func (id RoomID) ResourceID() string {
	_, resourcePart, _ := strings.Cut(string(id), ":")
	return resourcePart
}

func (id RoomID) String() string { return string(id) }
