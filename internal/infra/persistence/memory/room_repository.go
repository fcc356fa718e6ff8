package memory

import (
	"context"
	"sync"
	"time"

	"collab-realtime/internal/domain"
	"collab-realtime/internal/repository"
)

// RoomRepository is the in-memory RoomRepository implementation. The single
// mutex makes DeleteIfEmpty an atomic check-then-delete.
type RoomRepository struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*domain.CollaborationRoom
}

// NewRoomRepository creates an empty in-memory room store.
func NewRoomRepository() *RoomRepository {
	return &RoomRepository{
		rooms: make(map[domain.RoomID]*domain.CollaborationRoom),
	}
}

func (r *RoomRepository) Save(_ context.Context, room *domain.CollaborationRoom) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room.ID] = room.Clone()
	return nil
}

func (r *RoomRepository) FindByID(_ context.Context, roomID domain.RoomID) (*domain.CollaborationRoom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	return room.Clone(), nil
}

func (r *RoomRepository) FindAll(_ context.Context) ([]*domain.CollaborationRoom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*domain.CollaborationRoom, 0, len(r.rooms))
	for _, room := range r.rooms {
		result = append(result, room.Clone())
	}
	return result, nil
}

func (r *RoomRepository) CountActive(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, room := range r.rooms {
		if !room.IsEmpty() {
			count++
		}
	}
	return count, nil
}

func (r *RoomRepository) DeleteIfEmpty(_ context.Context, roomID domain.RoomID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok || !room.IsEmpty() {
		return false, nil
	}
	delete(r.rooms, roomID)
	return true, nil
}

func (r *RoomRepository) UpdateMetadata(_ context.Context, roomID domain.RoomID, metadata map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return repository.ErrRoomNotFound
	}
	room.UpdateMetadata(metadata, time.Now())
	room.PullEvents() // pass-through write, nothing to emit
	return nil
}

func (r *RoomRepository) TouchActivity(_ context.Context, roomID domain.RoomID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return repository.ErrRoomNotFound
	}
	// Monotonic: a stale timestamp must not move the sweep clock backwards.
	if at.After(room.LastActivityAt) {
		room.LastActivityAt = at
	}
	return nil
}

func (r *RoomRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deleted := 0
	for id, room := range r.rooms {
		if room.LastActivityAt.Before(cutoff) {
			delete(r.rooms, id)
			deleted++
		}
	}
	return deleted, nil
}
