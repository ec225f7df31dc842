package risk

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mandiworks/tradecore-go/internal/application/common"
	"github.com/mandiworks/tradecore-go/internal/domain/audit"
	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/outbox"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// OverrideRiskCommand records a privileged manual override of a risk
// block and re-enqueues the pair for matching. The override presumes the
// operator has resolved the underlying condition; the pair re-runs the
// full check chain on the next pass.
type OverrideRiskCommand struct {
	RequirementID  string
	AvailabilityID string
	Justification  string
}

// OverrideRiskResponse acknowledges the recorded override
type OverrideRiskResponse struct {
	AuditEntryID string
}

// OverrideRiskHandler requires an ADMIN or COMPLIANCE actor
type OverrideRiskHandler struct {
	requirements order.RequirementRepository
	tx           common.Tx
	events       outbox.Repository
	auditLog     audit.Repository
	clock        shared.Clock
	logger       zerolog.Logger
}

// NewOverrideRiskHandler creates the handler
func NewOverrideRiskHandler(
	requirements order.RequirementRepository,
	tx common.Tx,
	events outbox.Repository,
	auditLog audit.Repository,
	clock shared.Clock,
	logger zerolog.Logger,
) *OverrideRiskHandler {
	return &OverrideRiskHandler{
		requirements: requirements,
		tx:           tx,
		events:       events,
		auditLog:     auditLog,
		clock:        clock,
		logger:       logger.With().Str("component", "risk").Logger(),
	}
}

// Handle executes the override command
func (h *OverrideRiskHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*OverrideRiskCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}
	if cmd.Justification == "" {
		return nil, shared.NewValidationError("justification", "must not be empty")
	}

	actor := common.ActorFromContext(ctx)
	if !actor.CanOverrideRisk() {
		return nil, shared.NewUnauthorizedError(actor.UserID, "override risk decision")
	}

	req, err := h.requirements.FindByID(ctx, cmd.RequirementID)
	if err != nil {
		return nil, err
	}

	now := h.clock.Now()
	entry := audit.New(actor.UserID, audit.ActionRiskOverride, "requirement", req.ID,
		nil, map[string]any{
			"availability_id": cmd.AvailabilityID,
			"justification":   cmd.Justification,
		}, now)

	err = h.tx.InTx(ctx, func(txCtx context.Context) error {
		if err := h.auditLog.Add(txCtx, entry); err != nil {
			return err
		}
		record, err := outbox.NewRecord(outbox.AggregateRequirement, req.ID, outbox.EventRequirementUpdated, outbox.OrderEventPayload{
			OrderID:     req.ID,
			PartnerID:   req.BuyerID,
			CommodityID: req.CommodityID,
			Status:      string(req.Status),
		}, now)
		if err != nil {
			return err
		}
		return h.events.Append(txCtx, record)
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info().
		Str("requirement_id", req.ID).
		Str("actor_id", actor.UserID).
		Msg("risk override recorded")
	return &OverrideRiskResponse{AuditEntryID: entry.ID}, nil
}
