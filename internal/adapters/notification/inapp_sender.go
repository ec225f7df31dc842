package notification

import (
	"context"

	"github.com/mandiworks/tradecore-go/internal/domain/notify"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// InAppSender stores notifications for in-app retrieval. Delivery is
// the database write; there is no external channel to fail.
type InAppSender struct {
	store notify.Store
	clock shared.Clock
}

// NewInAppSender creates the in-app channel
func NewInAppSender(store notify.Store, clock shared.Clock) *InAppSender {
	return &InAppSender{store: store, clock: clock}
}

// Channel identifies the in-app channel
func (s *InAppSender) Channel() notify.Channel {
	return notify.ChannelInApp
}

// Send stores the notification for the user
func (s *InAppSender) Send(ctx context.Context, userID string, payload notify.Payload) error {
	return s.store.Add(ctx, notify.NewNotification(userID, notify.ChannelInApp, payload, s.clock.Now()))
}
