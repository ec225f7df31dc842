package matching

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mandiworks/tradecore-go/internal/adapters/metrics"
	"github.com/mandiworks/tradecore-go/internal/application/common"
	"github.com/mandiworks/tradecore-go/internal/domain/audit"
	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/outbox"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/config"
)

// dedupConsumer names this consumer in the processed-event store
const dedupConsumer = "matching"

// keyLock is one per-aggregate mutex with a reference count so the map
// stays bounded by the number of in-flight aggregates.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Scheduler drives the matching engine: events enter through Enqueue,
// coalesce per aggregate, and a bounded worker pool runs one matching
// pass per merged event. Two events for the same aggregate never run
// concurrently.
type Scheduler struct {
	queue          *EventQueue
	coalescer      *Coalescer
	finder         *Finder
	allocator      *Allocator
	requirements   order.RequirementRepository
	availabilities order.AvailabilityRepository
	processed      common.ProcessedEventStore
	events         outbox.Repository
	auditLog       audit.Repository
	cfg            config.MatchingConfig
	clock          shared.Clock
	logger         zerolog.Logger

	keysMu sync.Mutex
	keys   map[string]*keyLock
}

// NewScheduler creates a matching scheduler
func NewScheduler(
	finder *Finder,
	allocator *Allocator,
	requirements order.RequirementRepository,
	availabilities order.AvailabilityRepository,
	processed common.ProcessedEventStore,
	events outbox.Repository,
	auditLog audit.Repository,
	cfg config.MatchingConfig,
	clock shared.Clock,
	logger zerolog.Logger,
) *Scheduler {
	s := &Scheduler{
		queue:          NewEventQueue(),
		finder:         finder,
		allocator:      allocator,
		requirements:   requirements,
		availabilities: availabilities,
		processed:      processed,
		events:         events,
		auditLog:       auditLog,
		cfg:            cfg,
		clock:          clock,
		logger:         logger.With().Str("component", "match_scheduler").Logger(),
		keys:           make(map[string]*keyLock),
	}
	s.coalescer = NewCoalescer(cfg.CoalesceDelay, s.queue.Push)
	return s
}

// Enqueue submits an event for matching. Under backpressure LOW events
// are shed; the sweeper picks the aggregate up on its next pass.
func (s *Scheduler) Enqueue(ctx context.Context, e *Event) {
	if e.Priority == PriorityLow && s.queue.Len() >= s.cfg.QueueDepthLimit {
		s.logger.Debug().
			Str("event_id", e.EventID).
			Str("aggregate_id", e.AggregateID).
			Int("depth", s.queue.Len()).
			Msg("queue saturated, deferring to sweeper")
		if err := s.auditLog.Add(ctx, audit.New("", audit.ActionDeferredToSweeper,
			string(e.AggregateType), e.AggregateID,
			nil, map[string]any{"event_id": e.EventID, "event_type": string(e.Type)},
			s.clock.Now())); err != nil {
			s.logger.Error().Err(err).Str("event_id", e.EventID).Msg("failed to audit shed event")
		}
		metrics.RecordMatchingEvent(e.Priority.String(), "shed")
		return
	}
	e.EnqueuedAt = s.clock.Now()
	s.coalescer.Add(e)
	metrics.RecordQueueDepth(s.queue.Len())
}

// QueueDepth reports the number of queued events
func (s *Scheduler) QueueDepth() int {
	return s.queue.Len()
}

// Run consumes the queue until the context ends. It blocks; callers run
// it in its own goroutine.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxInFlight)

	go func() {
		<-ctx.Done()
		s.coalescer.Stop()
		s.queue.Close()
	}()

	for {
		e := s.queue.Pop()
		if e == nil {
			break
		}
		g.Go(func() error {
			s.process(ctx, e)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) process(ctx context.Context, e *Event) {
	if ctx.Err() != nil {
		return
	}
	metrics.RecordQueueDepth(s.queue.Len())

	seen, err := s.processed.Seen(ctx, e.EventID, dedupConsumer)
	if err != nil {
		s.logger.Error().Err(err).Str("event_id", e.EventID).Msg("event dedup check failed")
		metrics.RecordMatchingEvent(e.Priority.String(), "error")
		return
	}
	if seen {
		s.logger.Debug().Str("event_id", e.EventID).Msg("event already processed, skipping")
		metrics.RecordMatchingEvent(e.Priority.String(), "duplicate")
		return
	}

	unlock := s.lockAggregate(string(e.AggregateType) + ":" + e.AggregateID)
	defer unlock()

	started := s.clock.Now()
	var side string
	switch e.AggregateType {
	case outbox.AggregateRequirement:
		side = "requirement"
		err = s.matchRequirement(ctx, e.AggregateID)
	case outbox.AggregateAvailability:
		side = "availability"
		err = s.matchAvailability(ctx, e.AggregateID)
	default:
		s.logger.Debug().
			Str("aggregate_type", string(e.AggregateType)).
			Str("event_id", e.EventID).
			Msg("event carries no matching work")
		metrics.RecordMatchingEvent(e.Priority.String(), "ignored")
		return
	}
	metrics.RecordMatchingPass(side, s.clock.Now().Sub(started).Seconds())
	if err != nil {
		s.logger.Error().Err(err).
			Str("aggregate_id", e.AggregateID).
			Str("event_id", e.EventID).
			Int("attempts", e.Attempts).
			Msg("matching pass failed")
		metrics.RecordMatchingEvent(e.Priority.String(), "error")
		s.scheduleRetry(ctx, e, err)
		return
	}

	// The dedup mark lands only after a successful pass; a failed pass
	// leaves the event unmarked so its retry is not skipped.
	if _, err := s.processed.MarkProcessed(ctx, e.EventID, dedupConsumer, s.clock.Now()); err != nil {
		s.logger.Error().Err(err).Str("event_id", e.EventID).Msg("failed to mark event processed")
	}
	metrics.RecordMatchingEvent(e.Priority.String(), "ok")
}

// scheduleRetry re-arms a failed pass through the outbox so the retry
// inherits the dispatcher's backoff ladder and survives a restart.
// After the attempt budget the aggregate is left to the sweeper and an
// operator alert goes out.
func (s *Scheduler) scheduleRetry(ctx context.Context, e *Event, cause error) {
	attempt := e.Attempts + 1
	now := s.clock.Now()

	if attempt >= outbox.MaxAttempts {
		if err := s.auditLog.Add(ctx, audit.New("", audit.ActionMatchingAbandoned,
			string(e.AggregateType), e.AggregateID, nil,
			map[string]any{"event_id": e.EventID, "attempts": attempt, "cause": cause.Error()},
			now)); err != nil {
			s.logger.Error().Err(err).Str("event_id", e.EventID).Msg("failed to audit abandoned pass")
		}
		alert, err := outbox.NewRecord(e.AggregateType, e.AggregateID, outbox.EventOperatorAlert,
			outbox.OperatorAlertPayload{
				Subject: "matching pass abandoned",
				Detail:  fmt.Sprintf("%d failed passes for %s %s: %v", attempt, e.AggregateType, e.AggregateID, cause),
				RefID:   e.EventID,
			}, now)
		if err == nil {
			err = s.events.Append(ctx, alert)
		}
		if err != nil {
			s.logger.Error().Err(err).Str("aggregate_id", e.AggregateID).Msg("failed to raise operator alert")
		}
		metrics.RecordMatchingEvent(e.Priority.String(), "abandoned")
		return
	}

	record, err := outbox.NewRecord(e.AggregateType, e.AggregateID, outbox.EventMatchingRetry,
		outbox.MatchingRetryPayload{Attempt: attempt, Cause: cause.Error()}, now)
	if err != nil {
		s.logger.Error().Err(err).Str("aggregate_id", e.AggregateID).Msg("failed to build retry record")
		return
	}
	backoff := outbox.RetryBackoff[len(outbox.RetryBackoff)-1]
	if attempt-1 < len(outbox.RetryBackoff) {
		backoff = outbox.RetryBackoff[attempt-1]
	}
	next := now.Add(backoff)
	record.NextRetryAt = &next
	if err := s.events.Append(ctx, record); err != nil {
		s.logger.Error().Err(err).Str("aggregate_id", e.AggregateID).Msg("failed to schedule matching retry")
		return
	}
	s.logger.Warn().
		Str("aggregate_id", e.AggregateID).
		Int("attempt", attempt).
		Dur("backoff", backoff).
		Msg("matching pass re-armed")
}

func (s *Scheduler) matchRequirement(ctx context.Context, id string) error {
	req, err := s.requirements.FindByID(ctx, id)
	if err != nil {
		var notFound *shared.NotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	if !req.IsOpen() {
		return nil
	}

	candidates, err := s.finder.CandidatesForRequirement(ctx, req)
	if err != nil {
		return err
	}
	created, err := s.allocator.AllocateTopN(ctx, candidates)
	if err != nil {
		return err
	}
	s.logger.Info().
		Str("requirement_id", id).
		Int("candidates", len(candidates)).
		Int("matches", len(created)).
		Msg("requirement pass complete")

	return s.requirements.MarkScanned(ctx, id, s.clock.Now())
}

func (s *Scheduler) matchAvailability(ctx context.Context, id string) error {
	a, err := s.availabilities.FindByID(ctx, id)
	if err != nil {
		var notFound *shared.NotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	if !a.IsOpen() {
		return nil
	}

	candidates, err := s.finder.CandidatesForAvailability(ctx, a)
	if err != nil {
		return err
	}
	created, err := s.allocator.AllocateTopN(ctx, candidates)
	if err != nil {
		return err
	}
	s.logger.Info().
		Str("availability_id", id).
		Int("candidates", len(candidates)).
		Int("matches", len(created)).
		Msg("availability pass complete")

	return s.availabilities.MarkScanned(ctx, id, s.clock.Now())
}

// lockAggregate serialises matching passes per aggregate. Returns the
// unlock func; the lock entry disappears once no pass holds or waits.
func (s *Scheduler) lockAggregate(key string) func() {
	s.keysMu.Lock()
	l, ok := s.keys[key]
	if !ok {
		l = &keyLock{}
		s.keys[key] = l
	}
	l.refs++
	s.keysMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.keysMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.keys, key)
		}
		s.keysMu.Unlock()
	}
}
