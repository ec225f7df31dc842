package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mandiworks/tradecore-go/internal/domain/audit"
)

// GormAuditRepository implements audit.Repository. Entries are
// append-only; there is no update path.
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository creates a new GORM audit repository
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

var _ audit.Repository = (*GormAuditRepository)(nil)

// Add appends an audit entry
func (r *GormAuditRepository) Add(ctx context.Context, e *audit.Entry) error {
	model := &AuditEntryModel{
		ID:         e.ID,
		ActorID:    e.ActorID,
		Action:     e.Action,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		Before:     string(e.Before),
		After:      string(e.After),
		CreatedAt:  e.CreatedAt,
	}
	if err := dbFrom(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to add audit entry: %w", err)
	}
	return nil
}

// FindByTarget returns the audit trail of one target, oldest first
func (r *GormAuditRepository) FindByTarget(ctx context.Context, targetType, targetID string) ([]*audit.Entry, error) {
	var models []AuditEntryModel
	result := dbFrom(ctx, r.db).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("created_at asc").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find audit entries: %w", result.Error)
	}

	entries := make([]*audit.Entry, 0, len(models))
	for i := range models {
		m := &models[i]
		entries = append(entries, &audit.Entry{
			ID:         m.ID,
			ActorID:    m.ActorID,
			Action:     m.Action,
			TargetType: m.TargetType,
			TargetID:   m.TargetID,
			Before:     []byte(m.Before),
			After:      []byte(m.After),
			CreatedAt:  m.CreatedAt,
		})
	}
	return entries, nil
}
