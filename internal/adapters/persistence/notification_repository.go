package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mandiworks/tradecore-go/internal/domain/notify"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// GormNotificationStore implements notify.Store; backs the IN_APP channel
type GormNotificationStore struct {
	db *gorm.DB
}

// NewGormNotificationStore creates a new GORM notification store
func NewGormNotificationStore(db *gorm.DB) *GormNotificationStore {
	return &GormNotificationStore{db: db}
}

var _ notify.Store = (*GormNotificationStore)(nil)

// Add stores a notification
func (s *GormNotificationStore) Add(ctx context.Context, n *notify.Notification) error {
	fields, err := json.Marshal(n.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal notification fields: %w", err)
	}
	model := &NotificationModel{
		ID:        n.ID,
		UserID:    n.UserID,
		EventType: n.EventType,
		Channel:   string(n.Channel),
		Subject:   n.Subject,
		Body:      n.Body,
		Fields:    string(fields),
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
	if err := dbFrom(ctx, s.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to add notification: %w", err)
	}
	return nil
}

// FindByUser returns a user's notifications, newest first
func (s *GormNotificationStore) FindByUser(ctx context.Context, userID string, limit int) ([]*notify.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var models []NotificationModel
	result := dbFrom(ctx, s.db).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find notifications: %w", result.Error)
	}

	notifications := make([]*notify.Notification, 0, len(models))
	for i := range models {
		n, err := notificationModelToEntity(&models[i])
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

// MarkRead stamps the read time; no-op when already read
func (s *GormNotificationStore) MarkRead(ctx context.Context, id string, at time.Time) error {
	result := dbFrom(ctx, s.db).Model(&NotificationModel{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", at)
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := dbFrom(ctx, s.db).Model(&NotificationModel{}).
			Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check notification: %w", err)
		}
		if count == 0 {
			return shared.NewNotFoundError("notification", id)
		}
	}
	return nil
}

func notificationModelToEntity(m *NotificationModel) (*notify.Notification, error) {
	fields := map[string]string{}
	if m.Fields != "" {
		if err := json.Unmarshal([]byte(m.Fields), &fields); err != nil {
			return nil, fmt.Errorf("corrupt fields for notification %s: %w", m.ID, err)
		}
	}
	return &notify.Notification{
		ID:        m.ID,
		UserID:    m.UserID,
		EventType: m.EventType,
		Channel:   notify.Channel(m.Channel),
		Subject:   m.Subject,
		Body:      m.Body,
		Fields:    fields,
		ReadAt:    m.ReadAt,
		CreatedAt: m.CreatedAt,
	}, nil
}
