// Package memory provides in-process repository implementations for
// single-instance deployments. Records are stored as deep copies so callers
// never share mutable state with the store.
package memory

import (
	"context"
	"sync"

	"collab-realtime/internal/domain"
	"collab-realtime/internal/repository"
)

// ConnectionRepository is the in-memory ConnectionRepository implementation.
type ConnectionRepository struct {
	mu    sync.RWMutex
	conns map[domain.SocketID]*domain.SocketConnection
}

// NewConnectionRepository creates an empty in-memory connection store.
func NewConnectionRepository() *ConnectionRepository {
	return &ConnectionRepository{
		conns: make(map[domain.SocketID]*domain.SocketConnection),
	}
}

func (r *ConnectionRepository) Save(_ context.Context, conn *domain.SocketConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.SocketID] = conn.Clone()
	return nil
}

func (r *ConnectionRepository) FindBySocketID(_ context.Context, socketID domain.SocketID) (*domain.SocketConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[socketID]
	if !ok {
		return nil, repository.ErrConnectionNotFound
	}
	return conn.Clone(), nil
}

func (r *ConnectionRepository) FindByUserID(_ context.Context, userID string) ([]*domain.SocketConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*domain.SocketConnection
	for _, conn := range r.conns {
		if conn.UserID == userID {
			result = append(result, conn.Clone())
		}
	}
	return result, nil
}

func (r *ConnectionRepository) Delete(_ context.Context, socketID domain.SocketID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, socketID)
	return nil
}

func (r *ConnectionRepository) CountActive(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns), nil
}
