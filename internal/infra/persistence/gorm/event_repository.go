package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"collab-realtime/internal/domain"
	"collab-realtime/internal/repository"
)

// GormEventRepository is the MySQL-backed EventRepository implementation.
type GormEventRepository struct {
	db *gorm.DB
}

// NewGormEventRepository creates a GormEventRepository.
func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	if db == nil {
		panic("database connection cannot be nil for GormEventRepository")
	}
	return &GormEventRepository{db: db}
}

func (r *GormEventRepository) Save(ctx context.Context, record *domain.EventRecord) error {
	err := r.db.WithContext(ctx).Create(record).Error
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save event record (type: %s, room: %s): %w", record.Type, record.RoomID, err)
	}
	return nil
}

func (r *GormEventRepository) ListByRoom(ctx context.Context, roomID string, limit int) ([]domain.EventRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []domain.EventRecord
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list event records for room %s: %w", roomID, err)
	}
	return records, nil
}

func (r *GormEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	result := r.db.WithContext(ctx).
		Where("occurred_at < ?", cutoff).
		Delete(&domain.EventRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("gorm: prune event records before %s: %w", cutoff.Format(time.RFC3339), result.Error)
	}
	return int(result.RowsAffected), nil
}
