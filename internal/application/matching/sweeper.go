package matching

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/outbox"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/config"
)

// sweepBatchSize bounds one sweep so a large backlog spreads over
// several intervals instead of flooding the queue.
const sweepBatchSize = 200

// Sweeper is the safety net under the event-driven scheduler: on a
// fixed interval it re-enqueues open orders no pass has touched
// recently, so a dropped or shed event delays a match instead of
// losing it.
type Sweeper struct {
	scheduler      *Scheduler
	requirements   order.RequirementRepository
	availabilities order.AvailabilityRepository
	cfg            config.MatchingConfig
	clock          shared.Clock
	logger         zerolog.Logger
}

// NewSweeper creates a sweeper feeding the given scheduler
func NewSweeper(
	scheduler *Scheduler,
	requirements order.RequirementRepository,
	availabilities order.AvailabilityRepository,
	cfg config.MatchingConfig,
	clock shared.Clock,
	logger zerolog.Logger,
) *Sweeper {
	return &Sweeper{
		scheduler:      scheduler,
		requirements:   requirements,
		availabilities: availabilities,
		cfg:            cfg,
		clock:          clock,
		logger:         logger.With().Str("component", "sweeper").Logger(),
	}
}

// Sweep runs one pass: stale open orders on both sides re-enter the
// queue at LOW priority.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.cfg.SweeperStaleAfter)

	reqs, err := s.requirements.FindStaleActive(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return err
	}
	for _, r := range reqs {
		s.enqueue(ctx, outbox.AggregateRequirement, r.ID)
	}

	avails, err := s.availabilities.FindStaleActive(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return err
	}
	for _, a := range avails {
		s.enqueue(ctx, outbox.AggregateAvailability, a.ID)
	}

	if len(reqs)+len(avails) > 0 {
		s.logger.Info().
			Int("requirements", len(reqs)).
			Int("availabilities", len(avails)).
			Msg("stale orders re-enqueued")
	}
	return nil
}

func (s *Sweeper) enqueue(ctx context.Context, aggregateType outbox.AggregateType, id string) {
	var eventType outbox.EventType
	if aggregateType == outbox.AggregateRequirement {
		eventType = outbox.EventRequirementUpdated
	} else {
		eventType = outbox.EventAvailabilityUpdated
	}
	s.scheduler.Enqueue(ctx, &Event{
		EventID:       uuid.NewString(),
		Type:          eventType,
		AggregateType: aggregateType,
		AggregateID:   id,
		Priority:      PriorityLow,
	})
}
