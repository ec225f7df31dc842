package negotiating

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mandiworks/tradecore-go/internal/application/common"
	"github.com/mandiworks/tradecore-go/internal/domain/negotiation"
	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/outbox"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/config"
)

// expireBatchSize bounds one expiry tick
const expireBatchSize = 100

// Expirer terminates negotiations that outlived their TTL. TTLs are
// per commodity, so the scan uses the shortest configured TTL as the
// cutoff and re-checks each candidate against its own.
type Expirer struct {
	negotiations negotiation.Repository
	requirements order.RequirementRepository
	tx           common.Tx
	events       outbox.Repository
	cfg          config.NegotiationConfig
	clock        shared.Clock
	logger       zerolog.Logger
}

// NewExpirer creates an expirer
func NewExpirer(
	negotiations negotiation.Repository,
	requirements order.RequirementRepository,
	tx common.Tx,
	events outbox.Repository,
	cfg config.NegotiationConfig,
	clock shared.Clock,
	logger zerolog.Logger,
) *Expirer {
	return &Expirer{
		negotiations: negotiations,
		requirements: requirements,
		tx:           tx,
		events:       events,
		cfg:          cfg,
		clock:        clock,
		logger:       logger.With().Str("component", "negotiation_expirer").Logger(),
	}
}

// Tick expires all overdue negotiations once
func (e *Expirer) Tick(ctx context.Context) error {
	cutoff := e.clock.Now().Add(-e.shortestTTL())
	candidates, err := e.negotiations.FindActiveOlderThan(ctx, cutoff, expireBatchSize)
	if err != nil {
		return err
	}

	expired := 0
	for _, n := range candidates {
		ok, err := e.expire(ctx, n)
		if err != nil {
			e.logger.Error().Err(err).Str("negotiation_id", n.ID).Msg("expiry failed")
			continue
		}
		if ok {
			expired++
		}
	}
	if expired > 0 {
		e.logger.Info().Int("expired", expired).Msg("negotiations expired")
	}
	return nil
}

func (e *Expirer) expire(ctx context.Context, n *negotiation.Negotiation) (bool, error) {
	ttl := e.cfg.TTL
	if req, err := e.requirements.FindByID(ctx, n.RequirementID); err == nil {
		ttl = e.cfg.TTLFor(req.CommodityID)
	}

	now := e.clock.Now()
	if !n.ExpireIfDue(now, ttl) {
		return false, nil
	}

	err := e.tx.InTx(ctx, func(txCtx context.Context) error {
		if err := e.negotiations.Update(txCtx, n); err != nil {
			return err
		}
		record, err := outbox.NewRecord(outbox.AggregateNegotiation, n.ID, outbox.EventNegotiationExpired, outbox.NegotiationEventPayload{
			NegotiationID: n.ID,
			BuyerID:       n.BuyerID,
			SellerID:      n.SellerID,
			Round:         n.CurrentRound,
			Status:        string(n.Status),
		}, now)
		if err != nil {
			return err
		}
		return e.events.Append(txCtx, record)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// shortestTTL returns the tightest TTL in play, bounding the scan cutoff
func (e *Expirer) shortestTTL() time.Duration {
	shortest := e.cfg.TTL
	for _, ttl := range e.cfg.CommodityTTL {
		if ttl < shortest {
			shortest = ttl
		}
	}
	return shortest
}
