package notification_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandiworks/tradecore-go/internal/application/notification"
	"github.com/mandiworks/tradecore-go/internal/domain/notify"
	"github.com/mandiworks/tradecore-go/internal/domain/outbox"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/config"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/logging"
)

type stubPrefs struct {
	prefs map[string]notify.Preference
}

func (s *stubPrefs) PreferenceFor(_ context.Context, userID string) (notify.Preference, error) {
	if p, ok := s.prefs[userID]; ok {
		return p, nil
	}
	return notify.Preference{UserID: userID}, nil
}

type recordingSender struct {
	channel notify.Channel

	mu   sync.Mutex
	sent []sentNotification
}

type sentNotification struct {
	UserID  string
	Payload notify.Payload
}

func (s *recordingSender) Channel() notify.Channel { return s.channel }

func (s *recordingSender) Send(_ context.Context, userID string, payload notify.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentNotification{UserID: userID, Payload: payload})
	return nil
}

func (s *recordingSender) sentTo(userID string) []sentNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sentNotification
	for _, n := range s.sent {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func routerConfig() config.NotificationConfig {
	return config.NotificationConfig{
		DebounceWindow: time.Minute,
		RatePerMinute:  600, // effectively unlimited unless a test overrides
		Burst:          100,
		FanoutTimeout:  time.Second,
	}
}

func matchEnvelope(t *testing.T, eventType outbox.EventType, matchID string, score float64) outbox.Envelope {
	t.Helper()
	payload, err := json.Marshal(outbox.MatchEventPayload{
		MatchID:           matchID,
		RequirementID:     "REQ-1",
		AvailabilityID:    "AVL-1",
		BuyerID:           "BP-BUYER",
		SellerID:          "BP-SELLER",
		CommodityID:       "COM-WHEAT",
		AllocatedQuantity: "50",
		Score:             score,
		RiskStatus:        "PASS",
	})
	require.NoError(t, err)
	return outbox.Envelope{
		EventID:       "EVT-" + matchID,
		AggregateType: outbox.AggregateMatch,
		AggregateID:   matchID,
		EventType:     eventType,
		Payload:       payload,
	}
}

func TestRouter_DeliversRedactedViewsToBothParties(t *testing.T) {
	sender := &recordingSender{channel: notify.ChannelInApp}
	clock := shared.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	router := notification.NewRouter(&stubPrefs{}, []notify.Sender{sender},
		routerConfig(), clock, logging.Nop())

	require.NoError(t, router.HandleEnvelope(context.Background(),
		matchEnvelope(t, outbox.EventMatchProposed, "MTC-1", 0.82)))

	buyer := sender.sentTo("BP-BUYER")
	require.Len(t, buyer, 1)
	assert.Equal(t, "REQ-1", buyer[0].Payload.Fields["requirement_id"])
	assert.Equal(t, "BP-SELLER", buyer[0].Payload.Fields["seller_id"])
	assert.NotContains(t, buyer[0].Payload.Fields, "availability_id")

	seller := sender.sentTo("BP-SELLER")
	require.Len(t, seller, 1)
	assert.Equal(t, "AVL-1", seller[0].Payload.Fields["availability_id"])
	assert.Equal(t, "BP-BUYER", seller[0].Payload.Fields["buyer_id"])
	assert.NotContains(t, seller[0].Payload.Fields, "requirement_id")
	assert.NotContains(t, seller[0].Payload.Fields, "score")
}

func TestRouter_OptedOutUsersGetNothing(t *testing.T) {
	sender := &recordingSender{channel: notify.ChannelInApp}
	prefs := &stubPrefs{prefs: map[string]notify.Preference{
		"BP-BUYER": {UserID: "BP-BUYER", OptedOut: true},
	}}
	clock := shared.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	router := notification.NewRouter(prefs, []notify.Sender{sender},
		routerConfig(), clock, logging.Nop())

	require.NoError(t, router.HandleEnvelope(context.Background(),
		matchEnvelope(t, outbox.EventMatchProposed, "MTC-1", 0.82)))

	assert.Empty(t, sender.sentTo("BP-BUYER"))
	assert.Len(t, sender.sentTo("BP-SELLER"), 1)
}

func TestRouter_DebouncePerUserAndEventType(t *testing.T) {
	sender := &recordingSender{channel: notify.ChannelInApp}
	clock := shared.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	router := notification.NewRouter(&stubPrefs{}, []notify.Sender{sender},
		routerConfig(), clock, logging.Nop())

	require.NoError(t, router.HandleEnvelope(context.Background(),
		matchEnvelope(t, outbox.EventMatchProposed, "MTC-1", 0.82)))

	// Second event of the same type inside the window is dropped
	require.NoError(t, router.HandleEnvelope(context.Background(),
		matchEnvelope(t, outbox.EventMatchProposed, "MTC-2", 0.75)))
	assert.Len(t, sender.sentTo("BP-BUYER"), 1)

	// A different event type passes
	require.NoError(t, router.HandleEnvelope(context.Background(),
		matchEnvelope(t, outbox.EventMatchRejected, "MTC-1", 0.82)))
	assert.Len(t, sender.sentTo("BP-BUYER"), 2)

	// After the window the same type passes again
	clock.Advance(2 * time.Minute)
	require.NoError(t, router.HandleEnvelope(context.Background(),
		matchEnvelope(t, outbox.EventMatchProposed, "MTC-3", 0.7)))
	assert.Len(t, sender.sentTo("BP-BUYER"), 3)
}

func TestRouter_TopNCapsMatchProposals(t *testing.T) {
	sender := &recordingSender{channel: notify.ChannelInApp}
	prefs := &stubPrefs{prefs: map[string]notify.Preference{
		"BP-BUYER": {UserID: "BP-BUYER", TopN: 1},
	}}
	cfg := routerConfig()
	cfg.DebounceWindow = 0 // isolate the top-N gate
	clock := shared.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	router := notification.NewRouter(prefs, []notify.Sender{sender},
		cfg, clock, logging.Nop())

	require.NoError(t, router.HandleEnvelope(context.Background(),
		matchEnvelope(t, outbox.EventMatchProposed, "MTC-1", 0.9)))
	require.NoError(t, router.HandleEnvelope(context.Background(),
		matchEnvelope(t, outbox.EventMatchProposed, "MTC-2", 0.8)))

	assert.Len(t, sender.sentTo("BP-BUYER"), 1, "second proposal exceeds top-1")
	assert.Len(t, sender.sentTo("BP-SELLER"), 2, "seller has no top-n preference")
}

func TestRouter_TopNWindowResetsIndependentlyOfDebounce(t *testing.T) {
	sender := &recordingSender{channel: notify.ChannelInApp}
	prefs := &stubPrefs{prefs: map[string]notify.Preference{
		"BP-BUYER": {UserID: "BP-BUYER", TopN: 1},
	}}
	cfg := routerConfig()
	cfg.DebounceWindow = 0
	cfg.TopNWindow = 5 * time.Minute
	clock := shared.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	router := notification.NewRouter(prefs, []notify.Sender{sender},
		cfg, clock, logging.Nop())

	require.NoError(t, router.HandleEnvelope(context.Background(),
		matchEnvelope(t, outbox.EventMatchProposed, "MTC-1", 0.9)))
	require.NoError(t, router.HandleEnvelope(context.Background(),
		matchEnvelope(t, outbox.EventMatchProposed, "MTC-2", 0.8)))
	assert.Len(t, sender.sentTo("BP-BUYER"), 1)

	// The cap accounts per its own window, not the debounce
	clock.Advance(6 * time.Minute)
	require.NoError(t, router.HandleEnvelope(context.Background(),
		matchEnvelope(t, outbox.EventMatchProposed, "MTC-3", 0.7)))
	assert.Len(t, sender.sentTo("BP-BUYER"), 2)
}

func TestRouter_RateLimitDropsBurst(t *testing.T) {
	sender := &recordingSender{channel: notify.ChannelInApp}
	cfg := routerConfig()
	cfg.DebounceWindow = 0
	cfg.RatePerMinute = 60
	cfg.Burst = 2
	clock := shared.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	router := notification.NewRouter(&stubPrefs{}, []notify.Sender{sender},
		cfg, clock, logging.Nop())

	for i := 0; i < 5; i++ {
		env := matchEnvelope(t, outbox.EventMatchProposed, "MTC-1", 0.8)
		require.NoError(t, router.HandleEnvelope(context.Background(), env))
	}

	assert.Len(t, sender.sentTo("BP-BUYER"), 2, "burst of two, then limited")
}

func TestRouter_NegotiationEventsReachBothParties(t *testing.T) {
	sender := &recordingSender{channel: notify.ChannelInApp}
	clock := shared.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	router := notification.NewRouter(&stubPrefs{}, []notify.Sender{sender},
		routerConfig(), clock, logging.Nop())

	payload, err := json.Marshal(outbox.NegotiationEventPayload{
		NegotiationID: "NEG-1",
		BuyerID:       "BP-BUYER",
		SellerID:      "BP-SELLER",
		Round:         2,
		Status:        "ACTIVE",
	})
	require.NoError(t, err)

	require.NoError(t, router.HandleEnvelope(context.Background(), outbox.Envelope{
		EventID:       "EVT-NEG",
		AggregateType: outbox.AggregateNegotiation,
		AggregateID:   "NEG-1",
		EventType:     outbox.EventOfferMade,
		Payload:       payload,
	}))

	buyer := sender.sentTo("BP-BUYER")
	require.Len(t, buyer, 1)
	assert.Equal(t, "New offer received", buyer[0].Payload.Subject)
	assert.Equal(t, "2", buyer[0].Payload.Fields["round"])
	assert.Len(t, sender.sentTo("BP-SELLER"), 1)
}

func TestRouter_IgnoresUnrelatedEvents(t *testing.T) {
	sender := &recordingSender{channel: notify.ChannelInApp}
	clock := shared.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	router := notification.NewRouter(&stubPrefs{}, []notify.Sender{sender},
		routerConfig(), clock, logging.Nop())

	require.NoError(t, router.HandleEnvelope(context.Background(), outbox.Envelope{
		EventID:   "EVT-X",
		EventType: outbox.EventRequirementCreated,
		Payload:   json.RawMessage(`{}`),
	}))

	assert.Empty(t, sender.sent)
}
