package repository

import (
	"context"

	"collab-realtime/internal/domain"
)

// ConnectionRepository stores live socket connections.
type ConnectionRepository interface {
	// Save creates or replaces the record for conn.SocketID.
	Save(ctx context.Context, conn *domain.SocketConnection) error

	// FindBySocketID returns the connection or ErrConnectionNotFound.
	FindBySocketID(ctx context.Context, socketID domain.SocketID) (*domain.SocketConnection, error)

	// FindByUserID returns all connections registered by one user. Never
	// returns ErrNotFound; an unknown user simply has no connections.
	FindByUserID(ctx context.Context, userID string) ([]*domain.SocketConnection, error)

	// Delete removes the record. Deleting an absent record is a no-op.
	Delete(ctx context.Context, socketID domain.SocketID) error

	// CountActive returns the number of stored connections.
	CountActive(ctx context.Context) (int, error)
}
