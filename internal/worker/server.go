// Package worker runs the asynq consumer: audit-log persistence and the
// periodic stale-room sweep.
package worker

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"collab-realtime/internal/repository"
	"collab-realtime/internal/service"
	"collab-realtime/internal/tasks"
)

// WorkerServer wraps the asynq server lifecycle.
type WorkerServer struct {
	server    *asynq.Server
	log       *logrus.Entry
	eventRepo repository.EventRepository
	rooms     *service.RoomManagementService
	roomTTL   time.Duration
}

// NewWorkerServer creates a WorkerServer. roomTTL is how long a room may sit
// idle before the periodic sweep deletes it.
func NewWorkerServer(redisOpt asynq.RedisClientOpt, eventRepo repository.EventRepository, rooms *service.RoomManagementService, roomTTL time.Duration, logger *logrus.Logger) *WorkerServer {
	logEntry := logger.WithField("component", "worker_server")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_type": task.Type(),
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).Errorf("Task failed: %v", err)
			}),
		},
	)

	return &WorkerServer{
		server:    server,
		log:       logEntry,
		eventRepo: eventRepo,
		rooms:     rooms,
		roomTTL:   roomTTL,
	}
}

// Start runs the worker server. Call from its own goroutine.
func (ws *WorkerServer) Start() {
	mux := asynq.NewServeMux()

	eventHandler := NewEventPersistenceHandler(ws.eventRepo)
	mux.HandleFunc(tasks.TypeEventPersist, eventHandler.ProcessTask)

	sweepHandler := NewRoomSweepHandler(ws.rooms, ws.roomTTL)
	mux.HandleFunc(tasks.TypeRoomSweep, sweepHandler.ProcessTask)

	ws.log.Info("Worker server starting...")
	if err := ws.server.Run(mux); err != nil {
		if !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, asynq.ErrServerClosed) {
			ws.log.Fatalf("Could not run worker server: %v", err)
		} else {
			ws.log.Info("Worker server stopped.")
		}
	}
}

// Shutdown stops the worker server gracefully.
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("Shutting down worker server...")
	ws.server.Shutdown()
	ws.log.Info("Worker server shut down complete.")
}
