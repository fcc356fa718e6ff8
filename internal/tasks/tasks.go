// Package tasks defines the asynq task types shared by producers and the
// worker.
package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"collab-realtime/internal/domain"
)

const (
	// TypeEventPersist writes one lifecycle event to the audit log.
	TypeEventPersist = "event:persist"
	// TypeRoomSweep deletes rooms idle beyond the configured TTL.
	TypeRoomSweep = "rooms:sweep"
)

// EventPersistPayload carries the event to persist.
type EventPersistPayload struct {
	Event domain.Event `json:"event"`
}

// NewEventPersistTask builds the persistence task for one event.
func NewEventPersistTask(event domain.Event) (*asynq.Task, error) {
	payload, err := json.Marshal(EventPersistPayload{Event: event})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEventPersist, payload), nil
}

// NewRoomSweepTask builds the periodic stale-room sweep task.
func NewRoomSweepTask() *asynq.Task {
	return asynq.NewTask(TypeRoomSweep, nil)
}
