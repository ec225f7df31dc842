package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mandiworks/tradecore-go/internal/application/common"
)

// GormProcessedEventStore implements common.ProcessedEventStore. The
// composite primary key (event_id, consumer) makes MarkProcessed an
// atomic insert-once.
type GormProcessedEventStore struct {
	db *gorm.DB
}

// NewGormProcessedEventStore creates a new GORM processed-event store
func NewGormProcessedEventStore(db *gorm.DB) *GormProcessedEventStore {
	return &GormProcessedEventStore{db: db}
}

var _ common.ProcessedEventStore = (*GormProcessedEventStore)(nil)

// Seen reports whether the event was already marked for the consumer
func (s *GormProcessedEventStore) Seen(ctx context.Context, eventID, consumer string) (bool, error) {
	var count int64
	result := dbFrom(ctx, s.db).Model(&ProcessedEventModel{}).
		Where("event_id = ? AND consumer = ?", eventID, consumer).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check processed event: %w", result.Error)
	}
	return count > 0, nil
}

// MarkProcessed records the event for the consumer. Returns false when
// the event was already processed.
func (s *GormProcessedEventStore) MarkProcessed(ctx context.Context, eventID, consumer string, at time.Time) (bool, error) {
	model := &ProcessedEventModel{
		EventID:     eventID,
		Consumer:    consumer,
		ProcessedAt: at,
	}
	err := dbFrom(ctx, s.db).Create(model).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to mark event processed: %w", err)
}

// PurgeOlderThan drops dedup rows past the retention window
func (s *GormProcessedEventStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := dbFrom(ctx, s.db).
		Where("processed_at < ?", cutoff).
		Delete(&ProcessedEventModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge processed events: %w", result.Error)
	}
	return result.RowsAffected, nil
}
