package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"collab-realtime/internal/domain"
	"collab-realtime/internal/repository"
)

// RoomStatistics is the aggregate view over all rooms. RoomsByType always
// contains every room type, zero-filled.
type RoomStatistics struct {
	TotalRooms        int                 `json:"totalRooms"`
	ActiveRooms       int                 `json:"activeRooms"`
	EmptyRooms        int                 `json:"emptyRooms"`
	RoomsByType       map[domain.RoomType]int `json:"roomsByType"`
	TotalParticipants int                 `json:"totalParticipants"`
}

// RoomManagementService covers the read and maintenance side of rooms,
// independent of any single connection.
type RoomManagementService struct {
	roomRepo  repository.RoomRepository
	eventRepo repository.EventRepository
}

// NewRoomManagementService creates a RoomManagementService.
func NewRoomManagementService(roomRepo repository.RoomRepository, eventRepo repository.EventRepository) *RoomManagementService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomManagementService")
	}
	if eventRepo == nil {
		panic("EventRepository cannot be nil for RoomManagementService")
	}
	return &RoomManagementService{roomRepo: roomRepo, eventRepo: eventRepo}
}

// GetRoomInfo returns one room or ErrRoomNotFound.
func (s *RoomManagementService) GetRoomInfo(ctx context.Context, roomID domain.RoomID) (*domain.CollaborationRoom, error) {
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithField("room_id", roomID).WithError(err).Error("RoomManagementService: failed to load room")
		return nil, ErrInternalServer
	}
	return room, nil
}

// GetActiveRooms returns rooms with at least one participant.
func (s *RoomManagementService) GetActiveRooms(ctx context.Context) ([]*domain.CollaborationRoom, error) {
	rooms, err := s.roomRepo.FindAll(ctx)
	if err != nil {
		logrus.WithError(err).Error("RoomManagementService: failed to list rooms")
		return nil, ErrInternalServer
	}
	active := make([]*domain.CollaborationRoom, 0, len(rooms))
	for _, room := range rooms {
		if !room.IsEmpty() {
			active = append(active, room)
		}
	}
	return active, nil
}

// GetRoomsByType returns all rooms of one type, empty ones included.
func (s *RoomManagementService) GetRoomsByType(ctx context.Context, roomType domain.RoomType) ([]*domain.CollaborationRoom, error) {
	rooms, err := s.roomRepo.FindAll(ctx)
	if err != nil {
		logrus.WithError(err).Error("RoomManagementService: failed to list rooms")
		return nil, ErrInternalServer
	}
	matched := make([]*domain.CollaborationRoom, 0)
	for _, room := range rooms {
		if room.Type == roomType {
			matched = append(matched, room)
		}
	}
	return matched, nil
}

// GetRoomStatistics computes the aggregate room counts and the per-type
// histogram.
func (s *RoomManagementService) GetRoomStatistics(ctx context.Context) (*RoomStatistics, error) {
	rooms, err := s.roomRepo.FindAll(ctx)
	if err != nil {
		logrus.WithError(err).Error("RoomManagementService: failed to list rooms for statistics")
		return nil, ErrInternalServer
	}

	stats := &RoomStatistics{
		RoomsByType: make(map[domain.RoomType]int, len(domain.AllRoomTypes())),
	}
	for _, t := range domain.AllRoomTypes() {
		stats.RoomsByType[t] = 0
	}
	for _, room := range rooms {
		stats.TotalRooms++
		if room.IsEmpty() {
			stats.EmptyRooms++
		} else {
			stats.ActiveRooms++
		}
		stats.RoomsByType[room.Type]++
		stats.TotalParticipants += room.ParticipantCount()
	}
	return stats, nil
}

// UpdateRoomMetadata overwrites a room's metadata. A pass-through repository
// write: metadata touches carry no invariant risk.
func (s *RoomManagementService) UpdateRoomMetadata(ctx context.Context, roomID domain.RoomID, metadata map[string]string) error {
	err := s.roomRepo.UpdateMetadata(ctx, roomID, metadata)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRoomNotFound
		}
		logrus.WithField("room_id", roomID).WithError(err).Error("RoomManagementService: failed to update metadata")
		return ErrInternalServer
	}
	return nil
}

// UpdateRoomActivity bumps a room's activity timestamp.
func (s *RoomManagementService) UpdateRoomActivity(ctx context.Context, roomID domain.RoomID) error {
	err := s.roomRepo.TouchActivity(ctx, roomID, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRoomNotFound
		}
		logrus.WithField("room_id", roomID).WithError(err).Error("RoomManagementService: failed to touch activity")
		return ErrInternalServer
	}
	return nil
}

// CleanupOldRooms deletes rooms idle since before olderThan and returns the
// count. This is the backstop for rooms that failed immediate cleanup.
func (s *RoomManagementService) CleanupOldRooms(ctx context.Context, olderThan time.Time) (int, error) {
	deleted, err := s.roomRepo.DeleteOlderThan(ctx, olderThan)
	if err != nil {
		logrus.WithError(err).Error("RoomManagementService: stale room sweep failed")
		return 0, ErrInternalServer
	}
	if deleted > 0 {
		logrus.WithField("deleted", deleted).Info("Stale rooms cleaned up")
	}
	return deleted, nil
}

// GetRoomEvents returns the audit trail for a room, newest first.
func (s *RoomManagementService) GetRoomEvents(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.EventRecord, error) {
	records, err := s.eventRepo.ListByRoom(ctx, string(roomID), limit)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("RoomManagementService: failed to list room events")
		return nil, ErrInternalServer
	}
	return records, nil
}
