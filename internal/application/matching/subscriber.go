package matching

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mandiworks/tradecore-go/internal/domain/outbox"
)

// MatchingEventTypes are the envelope types that trigger a matching pass
var MatchingEventTypes = []outbox.EventType{
	outbox.EventRequirementCreated,
	outbox.EventRequirementUpdated,
	outbox.EventRequirementStatusChanged,
	outbox.EventAvailabilityCreated,
	outbox.EventAvailabilityUpdated,
	outbox.EventAvailabilityStatusChanged,
	outbox.EventMatchingRetry,
}

// HandleEnvelope converts a dispatched envelope into a matching event.
// Wired as an outbox subscriber for MatchingEventTypes.
func (s *Scheduler) HandleEnvelope(ctx context.Context, env outbox.Envelope) error {
	if env.EventType == outbox.EventMatchingRetry {
		var p outbox.MatchingRetryPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("matching retry payload: %w", err)
		}
		s.Enqueue(ctx, &Event{
			EventID:       env.EventID,
			Type:          env.EventType,
			AggregateType: env.AggregateType,
			AggregateID:   env.AggregateID,
			Priority:      PriorityHigh,
			Attempts:      p.Attempt,
		})
		return nil
	}

	priority, ok := priorityFor(env.EventType)
	if !ok {
		return nil
	}
	s.Enqueue(ctx, &Event{
		EventID:       env.EventID,
		Type:          env.EventType,
		AggregateType: env.AggregateType,
		AggregateID:   env.AggregateID,
		Priority:      priority,
	})
	return nil
}

// priorityFor maps event types onto queue priorities: user-initiated
// posts and updates run HIGH, derived status changes MEDIUM. The
// sweeper enqueues LOW directly.
func priorityFor(t outbox.EventType) (Priority, bool) {
	switch t {
	case outbox.EventRequirementCreated, outbox.EventRequirementUpdated,
		outbox.EventAvailabilityCreated, outbox.EventAvailabilityUpdated:
		return PriorityHigh, true
	case outbox.EventRequirementStatusChanged, outbox.EventAvailabilityStatusChanged:
		return PriorityMedium, true
	}
	return 0, false
}
