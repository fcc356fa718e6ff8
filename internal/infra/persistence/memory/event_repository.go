package memory

import (
	"context"
	"sync"
	"time"

	"collab-realtime/internal/domain"
)

// EventRepository is an in-memory EventRepository, used in tests and when the
// service runs without MySQL.
type EventRepository struct {
	mu      sync.RWMutex
	nextID  uint
	records []domain.EventRecord
}

// NewEventRepository creates an empty in-memory event store.
func NewEventRepository() *EventRepository {
	return &EventRepository{nextID: 1}
}

func (r *EventRepository) Save(_ context.Context, record *domain.EventRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record.ID = r.nextID
	r.nextID++
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	r.records = append(r.records, *record)
	return nil
}

func (r *EventRepository) ListByRoom(_ context.Context, roomID string, limit int) ([]domain.EventRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.EventRecord
	// newest first
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].RoomID != roomID {
			continue
		}
		result = append(result, r.records[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (r *EventRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.records[:0]
	deleted := 0
	for _, rec := range r.records {
		if rec.OccurredAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	r.records = kept
	return deleted, nil
}
