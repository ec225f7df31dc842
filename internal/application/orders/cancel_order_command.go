package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mandiworks/tradecore-go/internal/application/common"
	"github.com/mandiworks/tradecore-go/internal/domain/audit"
	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/outbox"
	"github.com/mandiworks/tradecore-go/internal/domain/partner"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// CancelOrderCommand cancels an open order. OrderID may name either a
// requirement or an availability; the handler resolves which.
type CancelOrderCommand struct {
	OrderID string
}

// CancelOrderResponse reports the cancelled order
type CancelOrderResponse struct {
	OrderID string
	Side    partner.TradeSide
	Status  string
}

// CancelOrderHandler terminates an order and publishes the cancellation
type CancelOrderHandler struct {
	requirements   order.RequirementRepository
	availabilities order.AvailabilityRepository
	tx             common.Tx
	events         outbox.Repository
	auditLog       audit.Repository
	clock          shared.Clock
	logger         zerolog.Logger
}

// NewCancelOrderHandler creates the handler
func NewCancelOrderHandler(
	requirements order.RequirementRepository,
	availabilities order.AvailabilityRepository,
	tx common.Tx,
	events outbox.Repository,
	auditLog audit.Repository,
	clock shared.Clock,
	logger zerolog.Logger,
) *CancelOrderHandler {
	return &CancelOrderHandler{
		requirements:   requirements,
		availabilities: availabilities,
		tx:             tx,
		events:         events,
		auditLog:       auditLog,
		clock:          clock,
		logger:         logger.With().Str("component", "orders").Logger(),
	}
}

// Handle executes the cancel order command
func (h *CancelOrderHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*CancelOrderCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	req, err := h.requirements.FindByID(ctx, cmd.OrderID)
	if err == nil {
		return h.cancelRequirement(ctx, req)
	}
	var notFound *shared.NotFoundError
	if !errors.As(err, &notFound) {
		return nil, err
	}

	a, err := h.availabilities.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	return h.cancelAvailability(ctx, a)
}

func (h *CancelOrderHandler) cancelRequirement(ctx context.Context, req *order.Requirement) (common.Response, error) {
	actor := common.ActorFromContext(ctx)
	if actor.PartnerID != req.BuyerID && !actor.IsBackOffice() {
		return nil, shared.NewUnauthorizedError(actor.UserID, "cancel requirement "+req.ID)
	}

	previous := string(req.Status)
	if err := req.Cancel(); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	err := h.tx.InTx(ctx, func(txCtx context.Context) error {
		if err := h.requirements.Update(txCtx, req); err != nil {
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
		if err := h.events.Append(txCtx, record); err != nil {
			return err
		}
		return h.auditLog.Add(txCtx, audit.New(actor.UserID, audit.ActionOrderCancelled, "requirement", req.ID,
			map[string]any{"status": previous}, map[string]any{"status": string(req.Status)}, now))
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info().Str("requirement_id", req.ID).Msg("requirement cancelled")
	return &CancelOrderResponse{OrderID: req.ID, Side: partner.SideBuy, Status: string(req.Status)}, nil
}

func (h *CancelOrderHandler) cancelAvailability(ctx context.Context, a *order.Availability) (common.Response, error) {
	actor := common.ActorFromContext(ctx)
	if actor.PartnerID != a.SellerID && !actor.IsBackOffice() {
		return nil, shared.NewUnauthorizedError(actor.UserID, "cancel availability "+a.ID)
	}

	previous := string(a.Status)
	if err := a.Cancel(); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	err := h.tx.InTx(ctx, func(txCtx context.Context) error {
		if err := h.availabilities.Update(txCtx, a); err != nil {
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
		if err := h.events.Append(txCtx, record); err != nil {
			return err
		}
		return h.auditLog.Add(txCtx, audit.New(actor.UserID, audit.ActionOrderCancelled, "availability", a.ID,
			map[string]any{"status": previous}, map[string]any{"status": string(a.Status)}, now))
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info().Str("availability_id", a.ID).Msg("availability cancelled")
	return &CancelOrderResponse{OrderID: a.ID, Side: partner.SideSell, Status: string(a.Status)}, nil
}
