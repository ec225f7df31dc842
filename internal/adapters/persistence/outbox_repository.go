package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mandiworks/tradecore-go/internal/domain/outbox"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// claimTTL is how long a claimed record stays invisible to concurrent
// dispatchers. Longer than one dispatch cycle, short enough that a
// crashed dispatcher's claims free up quickly.
const claimTTL = 30 * time.Second

// GormOutboxRepository implements outbox.Repository
type GormOutboxRepository struct {
	db    *gorm.DB
	clock shared.Clock
}

// NewGormOutboxRepository creates a new GORM outbox repository
func NewGormOutboxRepository(db *gorm.DB, clock shared.Clock) *GormOutboxRepository {
	return &GormOutboxRepository{db: db, clock: clock}
}

var _ outbox.Repository = (*GormOutboxRepository)(nil)

// Append writes a record inside the ambient transaction
func (r *GormOutboxRepository) Append(ctx context.Context, rec *outbox.Record) error {
	if err := dbFrom(ctx, r.db).Create(outboxEntityToModel(rec)).Error; err != nil {
		return fmt.Errorf("failed to append outbox record: %w", err)
	}
	return nil
}

// ClaimDue locks up to limit due records for this dispatcher. The claim
// is a lease: claimed_until moves forward under a row lock, so two
// dispatchers never deliver the same record inside one lease window.
func (r *GormOutboxRepository) ClaimDue(ctx context.Context, limit int) ([]*outbox.Record, error) {
	now := r.clock.Now()
	var claimed []*outbox.Record

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var models []OutboxRecordModel
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("dispatched_at IS NULL AND dead = ?", false).
			Where("next_retry_at IS NULL OR next_retry_at <= ?", now).
			Where("claimed_until IS NULL OR claimed_until < ?", now).
			Order("created_at asc").
			Limit(limit).
			Find(&models)
		if result.Error != nil {
			return fmt.Errorf("failed to select due records: %w", result.Error)
		}
		if len(models) == 0 {
			return nil
		}

		ids := make([]string, 0, len(models))
		for _, m := range models {
			ids = append(ids, m.ID)
		}
		until := now.Add(claimTTL)
		if err := tx.Model(&OutboxRecordModel{}).
			Where("id IN ?", ids).
			Update("claimed_until", until).Error; err != nil {
			return fmt.Errorf("failed to claim records: %w", err)
		}

		claimed = make([]*outbox.Record, 0, len(models))
		for i := range models {
			claimed = append(claimed, outboxModelToEntity(&models[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Update persists dispatch bookkeeping and releases the claim
func (r *GormOutboxRepository) Update(ctx context.Context, rec *outbox.Record) error {
	result := dbFrom(ctx, r.db).Model(&OutboxRecordModel{}).
		Where("id = ?", rec.ID).
		Select("dispatched_at", "attempts", "next_retry_at", "dead", "claimed_until").
		Updates(map[string]interface{}{
			"dispatched_at": rec.DispatchedAt,
			"attempts":      rec.Attempts,
			"next_retry_at": rec.NextRetryAt,
			"dead":          rec.Dead,
			"claimed_until": nil,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update outbox record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("outbox record", rec.ID)
	}
	return nil
}

// CountPending returns the number of undispatched live records
func (r *GormOutboxRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	result := dbFrom(ctx, r.db).Model(&OutboxRecordModel{}).
		Where("dispatched_at IS NULL AND dead = ?", false).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count pending records: %w", result.Error)
	}
	return count, nil
}

// FindByAggregate returns records of one aggregate in creation order
func (r *GormOutboxRepository) FindByAggregate(ctx context.Context, aggregateID string) ([]*outbox.Record, error) {
	var models []OutboxRecordModel
	result := dbFrom(ctx, r.db).
		Where("aggregate_id = ?", aggregateID).
		Order("created_at asc").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find outbox records: %w", result.Error)
	}

	records := make([]*outbox.Record, 0, len(models))
	for i := range models {
		records = append(records, outboxModelToEntity(&models[i]))
	}
	return records, nil
}

func outboxModelToEntity(m *OutboxRecordModel) *outbox.Record {
	return &outbox.Record{
		ID:            m.ID,
		AggregateType: outbox.AggregateType(m.AggregateType),
		AggregateID:   m.AggregateID,
		EventType:     outbox.EventType(m.EventType),
		Payload:       []byte(m.Payload),
		CreatedAt:     m.CreatedAt,
		DispatchedAt:  m.DispatchedAt,
		Attempts:      m.Attempts,
		NextRetryAt:   m.NextRetryAt,
		Dead:          m.Dead,
	}
}

func outboxEntityToModel(r *outbox.Record) *OutboxRecordModel {
	return &OutboxRecordModel{
		ID:            r.ID,
		AggregateType: string(r.AggregateType),
		AggregateID:   r.AggregateID,
		EventType:     string(r.EventType),
		Payload:       string(r.Payload),
		CreatedAt:     r.CreatedAt,
		DispatchedAt:  r.DispatchedAt,
		Attempts:      r.Attempts,
		NextRetryAt:   r.NextRetryAt,
		Dead:          r.Dead,
	}
}
