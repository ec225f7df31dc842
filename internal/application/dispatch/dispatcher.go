package dispatch

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mandiworks/tradecore-go/internal/adapters/metrics"
	"github.com/mandiworks/tradecore-go/internal/domain/audit"
	"github.com/mandiworks/tradecore-go/internal/domain/outbox"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/config"
)

// Dispatcher drains the outbox: claim a batch, hand each envelope to
// the internal subscribers and the external publisher, then mark it
// dispatched or schedule the retry. Delivery is at least once; the
// consumers dedup on event id.
type Dispatcher struct {
	records   outbox.Repository
	publisher outbox.Publisher
	auditLog  audit.Repository
	cfg       config.OutboxConfig
	clock     shared.Clock
	logger    zerolog.Logger

	handlers map[outbox.EventType][]outbox.Handler
	fallback []outbox.Handler
}

// NewDispatcher creates a dispatcher. publisher may be nil when no
// external bus is wired.
func NewDispatcher(
	records outbox.Repository,
	publisher outbox.Publisher,
	auditLog audit.Repository,
	cfg config.OutboxConfig,
	clock shared.Clock,
	logger zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		records:   records,
		publisher: publisher,
		auditLog:  auditLog,
		cfg:       cfg,
		clock:     clock,
		logger:    logger.With().Str("component", "outbox_dispatcher").Logger(),
		handlers:  make(map[outbox.EventType][]outbox.Handler),
	}
}

// Subscribe registers an in-process handler for specific event types.
// An empty type list subscribes the handler to every event.
func (d *Dispatcher) Subscribe(handler outbox.Handler, types ...outbox.EventType) {
	if len(types) == 0 {
		d.fallback = append(d.fallback, handler)
		return
	}
	for _, t := range types {
		d.handlers[t] = append(d.handlers[t], handler)
	}
}

// Run polls until the context ends
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.Drain(ctx); err != nil {
				d.logger.Error().Err(err).Msg("outbox drain failed")
			}
		}
	}
}

// Drain claims and dispatches one batch. Returns after the batch even
// when more records are due; the next poll picks them up.
func (d *Dispatcher) Drain(ctx context.Context) error {
	batch, err := d.records.ClaimDue(ctx, d.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, record := range batch {
		d.dispatch(ctx, record)
	}

	if pending, err := d.records.CountPending(ctx); err == nil {
		metrics.SetOutboxPending(pending)
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, record *outbox.Record) {
	env := record.Envelope()

	if err := d.consume(ctx, env); err != nil {
		d.fail(ctx, record, err)
		return
	}

	if d.publisher != nil {
		pubCtx, cancel := context.WithTimeout(ctx, d.cfg.PublishTimeout)
		err := d.publisher.Publish(pubCtx, env)
		cancel()
		if err != nil {
			d.fail(ctx, record, err)
			return
		}
	}

	now := d.clock.Now()
	record.MarkDispatched(now)
	metrics.RecordOutboxDispatch(string(record.EventType), true, now.Sub(record.CreatedAt).Seconds())
	if err := d.records.Update(ctx, record); err != nil {
		// The claim lease expires and the record redelivers; consumers
		// dedup on event id.
		d.logger.Error().Err(err).Str("event_id", record.ID).Msg("dispatch bookkeeping failed")
	}
}

// consume feeds the envelope to every matching internal subscriber.
// The first subscriber error fails the whole record; redelivery is
// idempotent on the subscriber side.
func (d *Dispatcher) consume(ctx context.Context, env outbox.Envelope) error {
	for _, h := range d.handlers[env.EventType] {
		if err := h(ctx, env); err != nil {
			return err
		}
	}
	for _, h := range d.fallback {
		if err := h(ctx, env); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) fail(ctx context.Context, record *outbox.Record, cause error) {
	now := d.clock.Now()
	record.MarkFailed(now)
	metrics.RecordOutboxDispatch(string(record.EventType), false, 0)

	if record.Dead {
		metrics.RecordOutboxDead()
		d.logger.Error().Err(cause).
			Str("event_id", record.ID).
			Str("event_type", string(record.EventType)).
			Int("attempts", record.Attempts).
			Msg("outbox record dead, operator attention required")
		d.auditLog.Add(ctx, audit.New("", "outbox.dead", string(record.AggregateType), record.AggregateID,
			nil, map[string]any{
				"event_id":   record.ID,
				"event_type": string(record.EventType),
				"attempts":   record.Attempts,
				"error":      cause.Error(),
			}, now))
		d.alertOperator(ctx, record, cause, now)
	} else {
		d.logger.Warn().Err(cause).
			Str("event_id", record.ID).
			Int("attempts", record.Attempts).
			Time("next_retry_at", *record.NextRetryAt).
			Msg("dispatch failed, retry scheduled")
	}

	if err := d.records.Update(ctx, record); err != nil {
		d.logger.Error().Err(err).Str("event_id", record.ID).Msg("retry bookkeeping failed")
	}
}

// alertOperator appends an OperatorAlert event for the dead record so
// the alert itself rides the normal delivery path.
func (d *Dispatcher) alertOperator(ctx context.Context, dead *outbox.Record, cause error, now time.Time) {
	alert, err := outbox.NewRecord(dead.AggregateType, dead.AggregateID, outbox.EventOperatorAlert, outbox.OperatorAlertPayload{
		Subject: "Outbox record dead after " + string(dead.EventType),
		Detail:  cause.Error(),
		RefID:   dead.ID,
	}, now)
	if err != nil {
		d.logger.Error().Err(err).Msg("operator alert not built")
		return
	}
	if err := d.records.Append(ctx, alert); err != nil {
		d.logger.Error().Err(err).Msg("operator alert not recorded")
	}
}
