package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mandiworks/tradecore-go/internal/application/capability"
	"github.com/mandiworks/tradecore-go/internal/application/common"
	apprisk "github.com/mandiworks/tradecore-go/internal/application/risk"
	"github.com/mandiworks/tradecore-go/internal/domain/audit"
	"github.com/mandiworks/tradecore-go/internal/domain/commodity"
	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/outbox"
	"github.com/mandiworks/tradecore-go/internal/domain/partner"
	"github.com/mandiworks/tradecore-go/internal/domain/risk"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/pkg/utils"
)

// CreateRequirementCommand posts a buy-side order
type CreateRequirementCommand struct {
	IdempotencyKey    string
	BuyerID           string
	CommodityID       string
	Quantity          float64
	Unit              string
	TargetPrice       float64
	MaxPrice          *float64
	Currency          string
	DeliveryLocations []DeliveryLocationInput
	AcceptedQuality   map[string]commodity.QualityRange
	ValidUntil        time.Time
}

// CreateRequirementResponse carries the created (or replayed) requirement
type CreateRequirementResponse struct {
	Requirement *order.Requirement
	Replayed    bool
}

// CreateRequirementHandler runs the posting pipeline: authorisation,
// role, capability, circular-trade and duplicate checks, then the
// transactional write with its outbox record.
type CreateRequirementHandler struct {
	partners     partner.Repository
	commodities  commodity.Repository
	requirements order.RequirementRepository
	resolver     *capability.Resolver
	riskEngine   *apprisk.Engine
	advisor      ListingAdvisor
	tx           common.Tx
	idempotency  common.IdempotencyStore
	events       outbox.Repository
	auditLog     audit.Repository
	clock        shared.Clock
	logger       zerolog.Logger
}

// NewCreateRequirementHandler creates the handler. advisor may be nil.
func NewCreateRequirementHandler(
	partners partner.Repository,
	commodities commodity.Repository,
	requirements order.RequirementRepository,
	resolver *capability.Resolver,
	riskEngine *apprisk.Engine,
	advisor ListingAdvisor,
	tx common.Tx,
	idempotency common.IdempotencyStore,
	events outbox.Repository,
	auditLog audit.Repository,
	clock shared.Clock,
	logger zerolog.Logger,
) *CreateRequirementHandler {
	return &CreateRequirementHandler{
		partners:     partners,
		commodities:  commodities,
		requirements: requirements,
		resolver:     resolver,
		riskEngine:   riskEngine,
		advisor:      advisor,
		tx:           tx,
		idempotency:  idempotency,
		events:       events,
		auditLog:     auditLog,
		clock:        clock,
		logger:       logger.With().Str("component", "orders").Logger(),
	}
}

// Handle executes the create requirement command
func (h *CreateRequirementHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*CreateRequirementCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}
	if cmd.IdempotencyKey == "" {
		return nil, shared.NewValidationError("idempotency_key", "must not be empty")
	}

	actor := common.ActorFromContext(ctx)
	if actor.PartnerID != cmd.BuyerID && !actor.IsBackOffice() {
		return nil, shared.NewUnauthorizedError(actor.UserID, "create requirement for partner "+cmd.BuyerID)
	}

	if rec, err := h.idempotency.Find(ctx, cmd.IdempotencyKey); err != nil {
		return nil, err
	} else if rec != nil {
		return h.replay(ctx, rec.ResultID)
	}

	buyer, err := h.partners.FindByID(ctx, cmd.BuyerID)
	if err != nil {
		return nil, err
	}
	com, err := h.commodities.FindByID(ctx, cmd.CommodityID)
	if err != nil {
		return nil, err
	}

	if d := h.riskEngine.ValidateRole(buyer, partner.SideBuy); d.IsBlocking() {
		return nil, h.reject(ctx, actor, "requirement", d)
	}
	if d := h.resolver.Resolve(ctx, buyer, partner.SideBuy, buyer.PrimaryCountry, com); d.IsBlocking() {
		return nil, h.reject(ctx, actor, "requirement", d)
	}
	if d, err := h.riskEngine.CheckCircularTrading(ctx, buyer.ID, com.ID, partner.SideBuy); err != nil {
		return nil, err
	} else if d.IsBlocking() {
		return nil, h.reject(ctx, actor, "requirement", d)
	}

	now := h.clock.Now()
	req, err := order.NewRequirement(
		utils.GenerateEntityID("REQ"), buyer.ID, com.ID,
		shared.QuantityFromFloat(cmd.Quantity), cmd.Unit,
		shared.MoneyFromFloat(cmd.TargetPrice, cmd.Currency),
		toDeliveryLocations(cmd.DeliveryLocations),
		cmd.ValidUntil, now,
	)
	if err != nil {
		return nil, err
	}
	if cmd.MaxPrice != nil {
		maxPrice := shared.MoneyFromFloat(*cmd.MaxPrice, cmd.Currency)
		req.MaxPrice = &maxPrice
	}
	req.AcceptedQuality = cmd.AcceptedQuality

	if d, err := h.riskEngine.CheckDuplicateRequirement(ctx, req); err != nil {
		return nil, err
	} else if d.IsBlocking() {
		return nil, shared.NewDuplicateOrderError(d.Details["existing_order_id"])
	}

	if h.advisor != nil {
		flag, err := h.advisor.AdviseRequirement(ctx, req, buyer)
		if err != nil {
			h.logger.Warn().Err(err).Str("requirement_id", req.ID).Msg("budget advisory unavailable")
		} else {
			req.AIBudgetFlag = flag
		}
	}

	// The idempotency key commits in the same transaction as the order;
	// a crash between the two can never strand a half-registered command.
	var stored *common.IdempotencyRecord
	err = h.tx.InTx(ctx, func(txCtx context.Context) error {
		var won bool
		var err error
		stored, won, err = h.idempotency.Save(txCtx, &common.IdempotencyRecord{
			Key:         cmd.IdempotencyKey,
			CommandType: "CreateRequirement",
			ResultType:  "requirement",
			ResultID:    req.ID,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		if !won {
			return errLostIdempotencyRace
		}
		if err := h.requirements.Add(txCtx, req); err != nil {
			return err
		}
		record, err := outbox.NewRecord(outbox.AggregateRequirement, req.ID, outbox.EventRequirementCreated, outbox.OrderEventPayload{
			OrderID:     req.ID,
			PartnerID:   req.BuyerID,
			CommodityID: req.CommodityID,
			Side:        string(partner.SideBuy),
			Status:      string(req.Status),
			Quantity:    req.Quantity.String(),
		}, now)
		if err != nil {
			return err
		}
		if err := h.events.Append(txCtx, record); err != nil {
			return err
		}

		// Posting against a stretched credit line is allowed but surfaced
		if zone := h.riskEngine.MonitorExposure(buyer); zone != risk.ExposureGreen {
			warning, err := outbox.NewRecord(outbox.AggregatePartner, buyer.ID, outbox.EventRiskWarning, outbox.RiskEventPayload{
				RequirementID: req.ID,
				PartnerID:     buyer.ID,
				Code:          "CREDIT_EXPOSURE_" + string(zone),
				Reason:        fmt.Sprintf("credit utilisation at %.0f%%", buyer.CreditUtilisation()*100),
			}, now)
			if err != nil {
				return err
			}
			if err := h.events.Append(txCtx, warning); err != nil {
				return err
			}
		}

		return h.auditLog.Add(txCtx, audit.New(actor.UserID, audit.ActionOrderCreated, "requirement", req.ID,
			nil, map[string]any{"commodity_id": req.CommodityID, "quantity": req.Quantity.String()}, now))
	})
	if errors.Is(err, errLostIdempotencyRace) {
		// A concurrent execution beat us to the key; its result is canonical.
		return h.replay(ctx, stored.ResultID)
	}
	if err != nil {
		return nil, err
	}

	h.logger.Info().
		Str("requirement_id", req.ID).
		Str("buyer_id", req.BuyerID).
		Str("commodity_id", req.CommodityID).
		Msg("requirement created")
	return &CreateRequirementResponse{Requirement: req}, nil
}

func (h *CreateRequirementHandler) replay(ctx context.Context, requirementID string) (common.Response, error) {
	req, err := h.requirements.FindByID(ctx, requirementID)
	if err != nil {
		return nil, err
	}
	return &CreateRequirementResponse{Requirement: req, Replayed: true}, nil
}

// reject audits a blocking decision and converts it into the caller error
func (h *CreateRequirementHandler) reject(ctx context.Context, actor common.Actor, targetType string, d shared.Decision) error {
	h.auditLog.Add(ctx, audit.New(actor.UserID, audit.ActionRiskBlocked, targetType, "",
		nil, map[string]any{"code": d.Code, "reason": d.Reason}, h.clock.Now()))
	return rejection(d)
}
