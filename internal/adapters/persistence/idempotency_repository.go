package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mandiworks/tradecore-go/internal/application/common"
)

// GormIdempotencyStore implements common.IdempotencyStore over the
// idempotency_keys table. The primary key on the key column is what
// makes Save a race-safe first-writer-wins.
type GormIdempotencyStore struct {
	db *gorm.DB
}

// NewGormIdempotencyStore creates a new GORM idempotency store
func NewGormIdempotencyStore(db *gorm.DB) *GormIdempotencyStore {
	return &GormIdempotencyStore{db: db}
}

var _ common.IdempotencyStore = (*GormIdempotencyStore)(nil)

// Find returns the stored record for a key, or nil
func (s *GormIdempotencyStore) Find(ctx context.Context, key string) (*common.IdempotencyRecord, error) {
	var model IdempotencyKeyModel
	result := dbFrom(ctx, s.db).Where("key = ?", key).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find idempotency key: %w", result.Error)
	}
	return idempotencyModelToRecord(&model), nil
}

// Save stores the outcome of the first execution. A key clash means
// another execution won; the stored record comes back with false. The
// insert rides ON CONFLICT DO NOTHING so losing inside a surrounding
// transaction never poisons it.
func (s *GormIdempotencyStore) Save(ctx context.Context, rec *common.IdempotencyRecord) (*common.IdempotencyRecord, bool, error) {
	model := &IdempotencyKeyModel{
		Key:         rec.Key,
		CommandType: rec.CommandType,
		ResultType:  rec.ResultType,
		ResultID:    rec.ResultID,
		CreatedAt:   rec.CreatedAt,
	}
	result := dbFrom(ctx, s.db).Clauses(clause.OnConflict{DoNothing: true}).Create(model)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to save idempotency key: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return rec, true, nil
	}

	existing, findErr := s.Find(ctx, rec.Key)
	if findErr != nil {
		return nil, false, findErr
	}
	if existing == nil {
		return nil, false, fmt.Errorf("idempotency key %s vanished after conflict", rec.Key)
	}
	return existing, false, nil
}

func idempotencyModelToRecord(m *IdempotencyKeyModel) *common.IdempotencyRecord {
	return &common.IdempotencyRecord{
		Key:         m.Key,
		CommandType: m.CommandType,
		ResultType:  m.ResultType,
		ResultID:    m.ResultID,
		CreatedAt:   m.CreatedAt,
	}
}
