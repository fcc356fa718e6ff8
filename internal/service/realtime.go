package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"collab-realtime/internal/domain"
	"collab-realtime/internal/repository"
)

// RealtimeService is the single authoritative entry point for all connection
// and room state transitions. The transport layer never mutates repository
// state directly.
type RealtimeService struct {
	connRepo        repository.ConnectionRepository
	roomRepo        repository.RoomRepository
	maxParticipants int // 0 means unbounded
	locks           roomLocks
}

// NewRealtimeService creates a RealtimeService. maxParticipants of 0 disables
// the room capacity limit.
func NewRealtimeService(connRepo repository.ConnectionRepository, roomRepo repository.RoomRepository, maxParticipants int) *RealtimeService {
	if connRepo == nil {
		panic("ConnectionRepository cannot be nil for RealtimeService")
	}
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RealtimeService")
	}
	return &RealtimeService{
		connRepo:        connRepo,
		roomRepo:        roomRepo,
		maxParticipants: maxParticipants,
	}
}

// JoinResult reports the outcome of a successful JoinRoom.
type JoinResult struct {
	Room        *domain.CollaborationRoom
	Participant domain.RoomParticipant
	Created     bool // the room was lazily created by this join

	// Set when the connection was in another room and left it implicitly.
	LeftRoom          *domain.RoomID
	LeftRoomDestroyed bool

	Events []domain.Event
}

// LeaveResult reports the outcome of LeaveRoom. RoomID is nil when the
// connection was not in a room (a silent no-op).
type LeaveResult struct {
	RoomID        *domain.RoomID
	RoomDestroyed bool
	Events        []domain.Event
}

// UnregisterResult reports the outcome of UnregisterConnection. Connection is
// nil when the socket was unknown (a no-op).
type UnregisterResult struct {
	Connection    *domain.SocketConnection
	RoomID        *domain.RoomID
	RoomDestroyed bool
	Events        []domain.Event
}

// RegisterConnection creates a connection in connected status. It does not
// join any room.
func (s *RealtimeService) RegisterConnection(ctx context.Context, socketID domain.SocketID, info domain.UserInfo) (*domain.SocketConnection, []domain.Event, error) {
	if _, err := domain.NewSocketID(string(socketID)); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := validateUserInfo(info); err != nil {
		return nil, nil, err
	}

	conn := domain.NewSocketConnection(socketID, info, time.Now())
	if err := s.connRepo.Save(ctx, conn); err != nil {
		logrus.WithField("socket_id", socketID).WithError(err).Error("RealtimeService: failed to save new connection")
		return nil, nil, ErrInternalServer
	}
	events := conn.PullEvents()
	logrus.WithFields(logrus.Fields{"socket_id": socketID, "user_id": info.UserID}).Info("Connection registered")
	return conn, events, nil
}

// UnregisterConnection marks the connection disconnected, removes it from its
// room (running cleanup-if-empty), and deletes the record. Unknown sockets
// are a no-op.
func (s *RealtimeService) UnregisterConnection(ctx context.Context, socketID domain.SocketID) (*UnregisterResult, error) {
	logCtx := logrus.WithField("socket_id", socketID)

	conn, err := s.connRepo.FindBySocketID(ctx, socketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &UnregisterResult{}, nil
		}
		logCtx.WithError(err).Error("RealtimeService: failed to load connection for unregister")
		return nil, ErrInternalServer
	}

	currentRoom := conn.CurrentRoom
	conn.Disconnect(time.Now())
	events := conn.PullEvents()

	// Delete the record before touching the room. Room removal is
	// idempotent and the sweeper reclaims rooms, but a connection that
	// survived a failed cleanup would linger as disconnected forever.
	if err := s.connRepo.Delete(ctx, socketID); err != nil {
		logCtx.WithError(err).Error("RealtimeService: failed to delete connection record")
		return nil, ErrInternalServer
	}

	result := &UnregisterResult{Connection: conn, Events: events}
	if currentRoom != nil {
		roomEvents, destroyed, err := s.removeFromRoom(ctx, *currentRoom, socketID)
		if err != nil {
			return nil, err
		}
		result.RoomID = currentRoom
		result.RoomDestroyed = destroyed
		result.Events = append(result.Events, roomEvents...)
	}

	logCtx.Info("Connection unregistered")
	return result, nil
}

// JoinRoom adds the connection to the room for (roomType, resourceID),
// creating the room lazily. A connection already in a different room leaves
// it first.
func (s *RealtimeService) JoinRoom(ctx context.Context, socketID domain.SocketID, roomType domain.RoomType, resourceID string) (*JoinResult, error) {
	logCtx := logrus.WithFields(logrus.Fields{"socket_id": socketID, "room_type": roomType, "resource_id": resourceID})

	conn, err := s.connRepo.FindBySocketID(ctx, socketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrConnectionNotFound
		}
		logCtx.WithError(err).Error("RealtimeService: failed to load connection for join")
		return nil, ErrInternalServer
	}

	roomID, err := domain.NewRoomID(roomType, resourceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	logCtx = logCtx.WithField("room_id", roomID)

	var oldRoom *domain.RoomID
	if conn.CurrentRoom != nil && *conn.CurrentRoom != roomID {
		old := *conn.CurrentRoom
		oldRoom = &old
	}

	// Lock the target room, and the old room when switching, before any
	// mutation: the capacity check must come first so a rejected join
	// leaves both rooms and the connection untouched.
	var unlock func()
	if oldRoom != nil {
		unlock = s.locks.LockTwo(*oldRoom, roomID)
	} else {
		unlock = s.locks.Lock(roomID)
	}
	defer unlock()

	result := &JoinResult{}

	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logCtx.WithError(err).Error("RealtimeService: failed to load room for join")
			return nil, ErrInternalServer
		}
		room, err = domain.NewCollaborationRoom(roomType, resourceID, time.Now())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		result.Created = true
	}

	if s.maxParticipants > 0 && !room.HasParticipant(socketID) && room.ParticipantCount() >= s.maxParticipants {
		logCtx.WithField("participants", room.ParticipantCount()).Warn("Join rejected, room at capacity")
		return nil, ErrRoomAtCapacity
	}

	// Switching rooms leaves the old one now, so no participant record is
	// orphaned.
	if oldRoom != nil {
		leftEvents, destroyed, err := s.removeFromRoomLocked(ctx, *oldRoom, socketID)
		if err != nil {
			return nil, err
		}
		result.LeftRoom = oldRoom
		result.LeftRoomDestroyed = destroyed
		result.Events = append(result.Events, leftEvents...)
		logCtx.WithField("left_room", *oldRoom).Info("Connection switched rooms, left previous room")
	}

	now := time.Now()
	participant := conn.Participant(now)
	room.AddParticipant(participant, now)
	if err := s.roomRepo.Save(ctx, room); err != nil {
		logCtx.WithError(err).Error("RealtimeService: failed to save room on join")
		return nil, ErrInternalServer
	}
	result.Events = append(result.Events, room.PullEvents()...)

	conn.JoinRoom(roomID, now)
	if err := s.connRepo.Save(ctx, conn); err != nil {
		// Room write already landed; the stale participant entry is
		// reconciled by the periodic sweep.
		logCtx.WithError(err).Error("RealtimeService: failed to save connection after join")
		return nil, ErrInternalServer
	}

	result.Room = room
	result.Participant = participant
	logCtx.WithField("participants", room.ParticipantCount()).Info("Connection joined room")
	return result, nil
}

// LeaveRoom removes the connection from its current room. Connections with no
// current room, and unknown sockets, are a silent no-op.
func (s *RealtimeService) LeaveRoom(ctx context.Context, socketID domain.SocketID) (*LeaveResult, error) {
	logCtx := logrus.WithField("socket_id", socketID)

	conn, err := s.connRepo.FindBySocketID(ctx, socketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &LeaveResult{}, nil
		}
		logCtx.WithError(err).Error("RealtimeService: failed to load connection for leave")
		return nil, ErrInternalServer
	}
	if conn.CurrentRoom == nil {
		return &LeaveResult{}, nil
	}

	roomID := *conn.CurrentRoom
	events, destroyed, err := s.removeFromRoom(ctx, roomID, socketID)
	if err != nil {
		return nil, err
	}

	conn.LeaveRoom(time.Now())
	if err := s.connRepo.Save(ctx, conn); err != nil {
		logCtx.WithError(err).Error("RealtimeService: failed to save connection after leave")
		return nil, ErrInternalServer
	}

	logCtx.WithField("room_id", roomID).Info("Connection left room")
	return &LeaveResult{RoomID: &roomID, RoomDestroyed: destroyed, Events: events}, nil
}

// UpdateActivity bumps the connection's activity timestamp, and its room's,
// so occupied rooms stay clear of the stale sweep. Unknown sockets are a
// no-op.
func (s *RealtimeService) UpdateActivity(ctx context.Context, socketID domain.SocketID) error {
	conn, err := s.connRepo.FindBySocketID(ctx, socketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return ErrInternalServer
	}
	now := time.Now()
	conn.UpdateActivity(now)
	if err := s.connRepo.Save(ctx, conn); err != nil {
		logrus.WithField("socket_id", socketID).WithError(err).Error("RealtimeService: failed to save activity update")
		return ErrInternalServer
	}
	if conn.CurrentRoom != nil {
		if err := s.roomRepo.TouchActivity(ctx, *conn.CurrentRoom, now); err != nil && !errors.Is(err, repository.ErrNotFound) {
			logrus.WithField("room_id", *conn.CurrentRoom).WithError(err).Error("RealtimeService: failed to touch room activity")
			return ErrInternalServer
		}
	}
	return nil
}

// GetRoomParticipants returns the room's participants, join order. A missing
// room yields an empty list, not an error.
func (s *RealtimeService) GetRoomParticipants(ctx context.Context, roomID domain.RoomID) ([]domain.RoomParticipant, error) {
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return []domain.RoomParticipant{}, nil
		}
		return nil, ErrInternalServer
	}
	return room.ParticipantList(), nil
}

// GetUserConnections returns every live connection registered by one user.
func (s *RealtimeService) GetUserConnections(ctx context.Context, userID string) ([]*domain.SocketConnection, error) {
	conns, err := s.connRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, ErrInternalServer
	}
	return conns, nil
}

// GetActiveConnectionsCount returns the number of live connections.
func (s *RealtimeService) GetActiveConnectionsCount(ctx context.Context) (int, error) {
	count, err := s.connRepo.CountActive(ctx)
	if err != nil {
		return 0, ErrInternalServer
	}
	return count, nil
}

// GetActiveRoomsCount returns the number of rooms with participants.
func (s *RealtimeService) GetActiveRoomsCount(ctx context.Context) (int, error) {
	count, err := s.roomRepo.CountActive(ctx)
	if err != nil {
		return 0, ErrInternalServer
	}
	return count, nil
}

// removeFromRoom takes the room lock, removes the participant, persists, and
// runs cleanup-if-empty. Idempotent: a missing room or an already-removed
// participant is a no-op, so the disconnect and explicit-leave paths can both
// call it safely.
func (s *RealtimeService) removeFromRoom(ctx context.Context, roomID domain.RoomID, socketID domain.SocketID) ([]domain.Event, bool, error) {
	unlock := s.locks.Lock(roomID)
	defer unlock()
	return s.removeFromRoomLocked(ctx, roomID, socketID)
}

// removeFromRoomLocked is removeFromRoom for callers that already hold the
// room's stripe, such as a join that is switching rooms.
func (s *RealtimeService) removeFromRoomLocked(ctx context.Context, roomID domain.RoomID, socketID domain.SocketID) ([]domain.Event, bool, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "socket_id": socketID})

	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, nil
		}
		logCtx.WithError(err).Error("RealtimeService: failed to load room for removal")
		return nil, false, ErrInternalServer
	}

	now := time.Now()
	removed := room.RemoveParticipant(socketID, now)
	events := room.PullEvents()
	if removed {
		if err := s.roomRepo.Save(ctx, room); err != nil {
			logCtx.WithError(err).Error("RealtimeService: failed to save room after removal")
			return nil, false, ErrInternalServer
		}
	}

	if !room.IsEmpty() {
		return events, false, nil
	}

	// Cleanup-if-empty. DeleteIfEmpty re-checks the participant count
	// atomically in the store, so a join that slipped in on another
	// instance cannot be wiped out.
	room.MarkDestroyed(now)
	destroyEvents := room.PullEvents()
	deleted, err := s.roomRepo.DeleteIfEmpty(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("RealtimeService: failed to delete empty room")
		return events, false, ErrInternalServer
	}
	if deleted {
		events = append(events, destroyEvents...)
		logCtx.Info("Empty room destroyed")
	}
	return events, deleted, nil
}

func validateUserInfo(info domain.UserInfo) error {
	switch {
	case info.UserID == "":
		return fmt.Errorf("%w: userId is required", ErrValidation)
	case info.UserName == "":
		return fmt.Errorf("%w: userName is required", ErrValidation)
	case info.UserEmail == "":
		return fmt.Errorf("%w: userEmail is required", ErrValidation)
	case info.OrganizationID == "":
		return fmt.Errorf("%w: organizationId is required", ErrValidation)
	}
	return nil
}
