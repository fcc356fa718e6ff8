package repository

import (
	"context"
	"time"

	"collab-realtime/internal/domain"
)

// RoomRepository stores collaboration rooms.
type RoomRepository interface {
	// Save creates or replaces the record for room.ID.
	Save(ctx context.Context, room *domain.CollaborationRoom) error

	// FindByID returns the room or ErrRoomNotFound.
	FindByID(ctx context.Context, roomID domain.RoomID) (*domain.CollaborationRoom, error)

	// FindAll returns every stored room, empty ones included.
	FindAll(ctx context.Context) ([]*domain.CollaborationRoom, error)

	// CountActive returns the number of rooms with at least one participant.
	CountActive(ctx context.Context) (int, error)

	// DeleteIfEmpty removes the room only if it currently has zero
	// participants, checking and deleting atomically. Reports whether the
	// room was deleted. An absent room reports false without error.
	DeleteIfEmpty(ctx context.Context, roomID domain.RoomID) (bool, error)

	// UpdateMetadata overwrites the metadata of an existing room.
	// Returns ErrRoomNotFound if the room does not exist.
	UpdateMetadata(ctx context.Context, roomID domain.RoomID, metadata map[string]string) error

	// TouchActivity sets the room's last-activity timestamp.
	// Returns ErrRoomNotFound if the room does not exist.
	TouchActivity(ctx context.Context, roomID domain.RoomID, at time.Time) error

	// DeleteOlderThan removes rooms whose last activity predates cutoff and
	// returns the number removed. This is the maintenance sweep; it is not
	// transactionally coupled to join/leave.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// EventRepository stores the audit trail of lifecycle events.
type EventRepository interface {
	// Save appends one event record.
	Save(ctx context.Context, record *domain.EventRecord) error

	// ListByRoom returns the most recent events for a room, newest first.
	ListByRoom(ctx context.Context, roomID string, limit int) ([]domain.EventRecord, error)

	// DeleteOlderThan prunes records older than cutoff and returns the
	// number removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
