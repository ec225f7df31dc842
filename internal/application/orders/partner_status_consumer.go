package orders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mandiworks/tradecore-go/internal/application/common"
	"github.com/mandiworks/tradecore-go/internal/domain/audit"
	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/outbox"
	"github.com/mandiworks/tradecore-go/internal/domain/partner"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// PartnerStatusConsumer cancels the open orders of a partner that left
// ACTIVE. Wired as an outbox subscriber for PartnerStatusChanged; safe
// to redeliver because cancelled orders are skipped.
type PartnerStatusConsumer struct {
	requirements   order.RequirementRepository
	availabilities order.AvailabilityRepository
	cache          PartnerCacheInvalidator
	tx             common.Tx
	events         outbox.Repository
	auditLog       audit.Repository
	clock          shared.Clock
	logger         zerolog.Logger
}

// PartnerCacheInvalidator evicts a partner from the read-through cache
// when its status changes. May be nil when no cache is wired.
type PartnerCacheInvalidator interface {
	Invalidate(partnerID string)
}

// NewPartnerStatusConsumer creates the consumer. cache may be nil.
func NewPartnerStatusConsumer(
	requirements order.RequirementRepository,
	availabilities order.AvailabilityRepository,
	cache PartnerCacheInvalidator,
	tx common.Tx,
	events outbox.Repository,
	auditLog audit.Repository,
	clock shared.Clock,
	logger zerolog.Logger,
) *PartnerStatusConsumer {
	return &PartnerStatusConsumer{
		requirements:   requirements,
		availabilities: availabilities,
		cache:          cache,
		tx:             tx,
		events:         events,
		auditLog:       auditLog,
		clock:          clock,
		logger:         logger.With().Str("component", "partner_status").Logger(),
	}
}

// HandleEnvelope processes one PartnerStatusChanged event
func (c *PartnerStatusConsumer) HandleEnvelope(ctx context.Context, env outbox.Envelope) error {
	var p outbox.PartnerEventPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("partner payload: %w", err)
	}

	if c.cache != nil {
		c.cache.Invalidate(p.PartnerID)
	}
	if p.Status == string(partner.StatusActive) {
		return nil
	}

	cancelled := 0
	reqs, err := c.requirements.FindOpenByBuyer(ctx, p.PartnerID)
	if err != nil {
		return err
	}
	for _, req := range reqs {
		if err := c.cancelRequirement(ctx, req); err != nil {
			return err
		}
		cancelled++
	}

	avails, err := c.availabilities.FindOpenBySeller(ctx, p.PartnerID)
	if err != nil {
		return err
	}
	for _, a := range avails {
		if err := c.cancelAvailability(ctx, a); err != nil {
			return err
		}
		cancelled++
	}

	if cancelled > 0 {
		c.logger.Info().
			Str("partner_id", p.PartnerID).
			Str("status", p.Status).
			Int("cancelled", cancelled).
			Msg("open orders cancelled for inactive partner")
	}
	return nil
}

func (c *PartnerStatusConsumer) cancelRequirement(ctx context.Context, req *order.Requirement) error {
	previous := string(req.Status)
	if err := req.Cancel(); err != nil {
		return err
	}
	now := c.clock.Now()
	return c.tx.InTx(ctx, func(txCtx context.Context) error {
		if err := c.requirements.Update(txCtx, req); err != nil {
			return err
		}
		record, err := outbox.NewRecord(outbox.AggregateRequirement, req.ID, outbox.EventRequirementCancelled, outbox.OrderEventPayload{
			OrderID:     req.ID,
			PartnerID:   req.BuyerID,
			CommodityID: req.CommodityID,
			Side:        string(partner.SideBuy),
			Status:      string(req.Status),
		}, now)
		if err != nil {
			return err
		}
		if err := c.events.Append(txCtx, record); err != nil {
			return err
		}
		return c.auditLog.Add(txCtx, audit.New("", audit.ActionOrderCancelled, "requirement", req.ID,
			map[string]any{"status": previous},
			map[string]any{"status": string(req.Status), "cause": "partner_inactive"}, now))
	})
}

func (c *PartnerStatusConsumer) cancelAvailability(ctx context.Context, a *order.Availability) error {
	previous := string(a.Status)
	if err := a.Cancel(); err != nil {
		return err
	}
	now := c.clock.Now()
	return c.tx.InTx(ctx, func(txCtx context.Context) error {
		if err := c.availabilities.Update(txCtx, a); err != nil {
			return err
		}
		record, err := outbox.NewRecord(outbox.AggregateAvailability, a.ID, outbox.EventAvailabilityCancelled, outbox.OrderEventPayload{
			OrderID:     a.ID,
			PartnerID:   a.SellerID,
			CommodityID: a.CommodityID,
			Side:        string(partner.SideSell),
			Status:      string(a.Status),
		}, now)
		if err != nil {
			return err
		}
		if err := c.events.Append(txCtx, record); err != nil {
			return err
		}
		return c.auditLog.Add(txCtx, audit.New("", audit.ActionOrderCancelled, "availability", a.ID,
			map[string]any{"status": previous},
			map[string]any{"status": string(a.Status), "cause": "partner_inactive"}, now))
	})
}
