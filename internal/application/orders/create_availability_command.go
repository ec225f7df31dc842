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

// CreateAvailabilityCommand posts a sell-side listing. Exactly one of
// LocationID / AdHoc must be provided.
type CreateAvailabilityCommand struct {
	IdempotencyKey string
	SellerID       string
	CommodityID    string
	TotalQuantity  float64
	BasePrice      float64
	Currency       string
	LocationID     string
	AdHoc          *AdHocLocationInput
	QualityParams  map[string]float64
	ValidUntil     time.Time
}

// CreateAvailabilityResponse carries the created (or replayed) listing
type CreateAvailabilityResponse struct {
	Availability *order.Availability
	Replayed     bool
}

// CreateAvailabilityHandler mirrors the requirement pipeline for the
// sell side, plus the listing price advisory.
type CreateAvailabilityHandler struct {
	partners       partner.Repository
	commodities    commodity.Repository
	availabilities order.AvailabilityRepository
	resolver       *capability.Resolver
	riskEngine     *apprisk.Engine
	advisor        ListingAdvisor
	tx             common.Tx
	idempotency    common.IdempotencyStore
	events         outbox.Repository
	auditLog       audit.Repository
	clock          shared.Clock
	logger         zerolog.Logger
}

// NewCreateAvailabilityHandler creates the handler. advisor may be nil.
func NewCreateAvailabilityHandler(
	partners partner.Repository,
	commodities commodity.Repository,
	availabilities order.AvailabilityRepository,
	resolver *capability.Resolver,
	riskEngine *apprisk.Engine,
	advisor ListingAdvisor,
	tx common.Tx,
	idempotency common.IdempotencyStore,
	events outbox.Repository,
	auditLog audit.Repository,
	clock shared.Clock,
	logger zerolog.Logger,
) *CreateAvailabilityHandler {
	return &CreateAvailabilityHandler{
		partners:       partners,
		commodities:    commodities,
		availabilities: availabilities,
		resolver:       resolver,
		riskEngine:     riskEngine,
		advisor:        advisor,
		tx:             tx,
		idempotency:    idempotency,
		events:         events,
		auditLog:       auditLog,
		clock:          clock,
		logger:         logger.With().Str("component", "orders").Logger(),
	}
}

// Handle executes the create availability command
func (h *CreateAvailabilityHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*CreateAvailabilityCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}
	if cmd.IdempotencyKey == "" {
		return nil, shared.NewValidationError("idempotency_key", "must not be empty")
	}

	actor := common.ActorFromContext(ctx)
	if actor.PartnerID != cmd.SellerID && !actor.IsBackOffice() {
		return nil, shared.NewUnauthorizedError(actor.UserID, "create availability for partner "+cmd.SellerID)
	}

	if rec, err := h.idempotency.Find(ctx, cmd.IdempotencyKey); err != nil {
		return nil, err
	} else if rec != nil {
		return h.replay(ctx, rec.ResultID)
	}

	seller, err := h.partners.FindByID(ctx, cmd.SellerID)
	if err != nil {
		return nil, err
	}
	com, err := h.commodities.FindByID(ctx, cmd.CommodityID)
	if err != nil {
		return nil, err
	}

	if d := h.riskEngine.ValidateRole(seller, partner.SideSell); d.IsBlocking() {
		return nil, h.reject(ctx, actor, d)
	}
	if d := h.resolver.Resolve(ctx, seller, partner.SideSell, seller.PrimaryCountry, com); d.IsBlocking() {
		return nil, h.reject(ctx, actor, d)
	}
	if d, err := h.riskEngine.CheckCircularTrading(ctx, seller.ID, com.ID, partner.SideSell); err != nil {
		return nil, err
	} else if d.IsBlocking() {
		return nil, h.reject(ctx, actor, d)
	}

	var adHoc *order.AdHocLocation
	if cmd.AdHoc != nil {
		adHoc = &order.AdHocLocation{
			Address: cmd.AdHoc.Address,
			Point:   shared.GeoPoint{Lat: cmd.AdHoc.Lat, Lng: cmd.AdHoc.Lng},
			Pincode: cmd.AdHoc.Pincode,
			Region:  cmd.AdHoc.Region,
		}
	}

	now := h.clock.Now()
	a, err := order.NewAvailability(
		utils.GenerateEntityID("AVL"), seller.ID, com.ID,
		shared.QuantityFromFloat(cmd.TotalQuantity),
		shared.MoneyFromFloat(cmd.BasePrice, cmd.Currency),
		cmd.LocationID, adHoc, cmd.ValidUntil, now,
	)
	if err != nil {
		return nil, err
	}
	a.QualityParams = cmd.QualityParams

	if d, err := h.riskEngine.CheckDuplicateAvailability(ctx, a); err != nil {
		return nil, err
	} else if d.IsBlocking() {
		return nil, shared.NewDuplicateOrderError(d.Details["existing_order_id"])
	}

	if h.advisor != nil {
		suggestedMax, recommendedFor, confidence, err := h.advisor.AdviseAvailability(ctx, a, seller)
		if err != nil {
			h.logger.Warn().Err(err).Str("availability_id", a.ID).Msg("listing advisory unavailable")
		} else {
			a.AISuggestedMaxPrice = suggestedMax
			a.AIRecommendedFor = recommendedFor
			a.AIAdvisoryConfidence = confidence
		}
	}

	// Same-transaction idempotency registration as the requirement path
	var stored *common.IdempotencyRecord
	err = h.tx.InTx(ctx, func(txCtx context.Context) error {
		var won bool
		var err error
		stored, won, err = h.idempotency.Save(txCtx, &common.IdempotencyRecord{
			Key:         cmd.IdempotencyKey,
			CommandType: "CreateAvailability",
			ResultType:  "availability",
			ResultID:    a.ID,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		if !won {
			return errLostIdempotencyRace
		}
		if err := h.availabilities.Add(txCtx, a); err != nil {
			return err
		}
		record, err := outbox.NewRecord(outbox.AggregateAvailability, a.ID, outbox.EventAvailabilityCreated, outbox.OrderEventPayload{
			OrderID:     a.ID,
			PartnerID:   a.SellerID,
			CommodityID: a.CommodityID,
			Side:        string(partner.SideSell),
			Status:      string(a.Status),
			Quantity:    a.TotalQuantity.String(),
		}, now)
		if err != nil {
			return err
		}
		if err := h.events.Append(txCtx, record); err != nil {
			return err
		}

		// Listing against a stretched credit line is allowed but surfaced
		if zone := h.riskEngine.MonitorExposure(seller); zone != risk.ExposureGreen {
			warning, err := outbox.NewRecord(outbox.AggregatePartner, seller.ID, outbox.EventRiskWarning, outbox.RiskEventPayload{
				AvailabilityID: a.ID,
				PartnerID:      seller.ID,
				Code:           "CREDIT_EXPOSURE_" + string(zone),
				Reason:         fmt.Sprintf("credit utilisation at %.0f%%", seller.CreditUtilisation()*100),
			}, now)
			if err != nil {
				return err
			}
			if err := h.events.Append(txCtx, warning); err != nil {
				return err
			}
		}

		return h.auditLog.Add(txCtx, audit.New(actor.UserID, audit.ActionOrderCreated, "availability", a.ID,
			nil, map[string]any{"commodity_id": a.CommodityID, "quantity": a.TotalQuantity.String()}, now))
	})
	if errors.Is(err, errLostIdempotencyRace) {
		return h.replay(ctx, stored.ResultID)
	}
	if err != nil {
		return nil, err
	}

	h.logger.Info().
		Str("availability_id", a.ID).
		Str("seller_id", a.SellerID).
		Str("commodity_id", a.CommodityID).
		Msg("availability created")
	return &CreateAvailabilityResponse{Availability: a}, nil
}

func (h *CreateAvailabilityHandler) replay(ctx context.Context, availabilityID string) (common.Response, error) {
	a, err := h.availabilities.FindByID(ctx, availabilityID)
	if err != nil {
		return nil, err
	}
	return &CreateAvailabilityResponse{Availability: a, Replayed: true}, nil
}

func (h *CreateAvailabilityHandler) reject(ctx context.Context, actor common.Actor, d shared.Decision) error {
	h.auditLog.Add(ctx, audit.New(actor.UserID, audit.ActionRiskBlocked, "availability", "",
		nil, map[string]any{"code": d.Code, "reason": d.Reason}, h.clock.Now()))
	return rejection(d)
}
