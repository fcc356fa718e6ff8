package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"collab-realtime/internal/domain"
	"collab-realtime/internal/repository"
	"collab-realtime/internal/service"
	"collab-realtime/internal/tasks"
)

// EventPersistenceHandler writes lifecycle events to the audit log.
type EventPersistenceHandler struct {
	eventRepo repository.EventRepository
}

func NewEventPersistenceHandler(eventRepo repository.EventRepository) *EventPersistenceHandler {
	if eventRepo == nil {
		panic("eventRepo is required")
	}
	return &EventPersistenceHandler{eventRepo: eventRepo}
}

func (h *EventPersistenceHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.EventPersistPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// A malformed payload will never succeed; skip retries.
		return fmt.Errorf("unmarshal event payload: %v: %w", err, asynq.SkipRetry)
	}

	record := domain.NewEventRecord(payload.Event)
	if err := h.eventRepo.Save(ctx, &record); err != nil {
		return fmt.Errorf("save event record: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"event_type": payload.Event.Type,
		"room_id":    payload.Event.RoomID,
		"socket_id":  payload.Event.SocketID,
	}).Debug("Event record persisted")
	return nil
}

// RoomSweepHandler deletes rooms whose last activity is older than the TTL.
type RoomSweepHandler struct {
	rooms   *service.RoomManagementService
	roomTTL time.Duration
}

func NewRoomSweepHandler(rooms *service.RoomManagementService, roomTTL time.Duration) *RoomSweepHandler {
	if rooms == nil {
		panic("rooms service is required")
	}
	return &RoomSweepHandler{rooms: rooms, roomTTL: roomTTL}
}

func (h *RoomSweepHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	cutoff := time.Now().Add(-h.roomTTL)
	removed, err := h.rooms.CleanupOldRooms(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("cleanup old rooms: %w", err)
	}
	if removed > 0 {
		logrus.WithFields(logrus.Fields{
			"removed": removed,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("Stale rooms swept")
	}
	return nil
}
