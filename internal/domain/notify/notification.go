package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Notification is one stored in-app notification
type Notification struct {
	ID        string
	UserID    string
	EventType string
	Channel   Channel
	Subject   string
	Body      string
	Fields    map[string]string
	ReadAt    *time.Time
	CreatedAt time.Time
}

// NewNotification builds a stored notification for a channel delivery
func NewNotification(userID string, channel Channel, payload Payload, now time.Time) *Notification {
	return &Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		EventType: payload.EventType,
		Channel:   channel,
		Subject:   payload.Subject,
		Body:      payload.Body,
		Fields:    payload.Fields,
		CreatedAt: now,
	}
}

// MarkRead stamps the read time once; later calls keep the first stamp
func (n *Notification) MarkRead(now time.Time) {
	if n.ReadAt == nil {
		t := now
		n.ReadAt = &t
	}
}

// Store persists in-app notifications
type Store interface {
	Add(ctx context.Context, n *Notification) error
	FindByUser(ctx context.Context, userID string, limit int) ([]*Notification, error)
	MarkRead(ctx context.Context, id string, at time.Time) error
}
