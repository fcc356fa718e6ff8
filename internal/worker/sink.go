package worker

import (
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"collab-realtime/internal/domain"
	"collab-realtime/internal/tasks"
)

// AsynqEventSink forwards lifecycle events to the worker queue so they end up
// in the audit log without blocking the connection path.
type AsynqEventSink struct {
	client *asynq.Client
	log    *logrus.Entry
}

func NewAsynqEventSink(client *asynq.Client, logger *logrus.Logger) *AsynqEventSink {
	if client == nil {
		panic("asynq client is required")
	}
	return &AsynqEventSink{
		client: client,
		log:    logger.WithField("component", "event_sink"),
	}
}

// Record enqueues one persistence task per event. Enqueue failures are logged
// and dropped; the audit log is best effort.
func (s *AsynqEventSink) Record(events []domain.Event) {
	for _, event := range events {
		task, err := tasks.NewEventPersistTask(event)
		if err != nil {
			s.log.WithField("event_type", event.Type).Errorf("Could not build event task: %v", err)
			continue
		}
		if _, err := s.client.Enqueue(task, asynq.Queue("low"), asynq.MaxRetry(3)); err != nil {
			s.log.WithField("event_type", event.Type).Errorf("Could not enqueue event task: %v", err)
		}
	}
}
