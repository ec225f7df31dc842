package risk

import (
	"context"
	"fmt"

	"github.com/mandiworks/tradecore-go/internal/application/common"
	"github.com/mandiworks/tradecore-go/internal/domain/commodity"
	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/partner"
	domainrisk "github.com/mandiworks/tradecore-go/internal/domain/risk"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// AssessTradeRiskQuery evaluates the full risk and compliance picture of
// a (requirement, availability) pair without allocating anything.
type AssessTradeRiskQuery struct {
	RequirementID  string
	AvailabilityID string
}

// AssessTradeRiskResponse carries the combined verdict
type AssessTradeRiskResponse struct {
	Assessment domainrisk.TradeAssessment
	Compliance shared.Decision
	Advisories []shared.Decision
}

// AssessTradeRiskHandler serves ad-hoc risk assessments for back-office
// review and for callers probing a pair before negotiation.
type AssessTradeRiskHandler struct {
	requirements   order.RequirementRepository
	availabilities order.AvailabilityRepository
	partners       partner.Repository
	commodities    commodity.Repository
	engine         *Engine
	compliance     *Compliance
}

// NewAssessTradeRiskHandler creates the handler
func NewAssessTradeRiskHandler(
	requirements order.RequirementRepository,
	availabilities order.AvailabilityRepository,
	partners partner.Repository,
	commodities commodity.Repository,
	engine *Engine,
	compliance *Compliance,
) *AssessTradeRiskHandler {
	return &AssessTradeRiskHandler{
		requirements:   requirements,
		availabilities: availabilities,
		partners:       partners,
		commodities:    commodities,
		engine:         engine,
		compliance:     compliance,
	}
}

// Handle executes the assessment query
func (h *AssessTradeRiskHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	q, ok := request.(*AssessTradeRiskQuery)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	req, err := h.requirements.FindByID(ctx, q.RequirementID)
	if err != nil {
		return nil, err
	}
	a, err := h.availabilities.FindByID(ctx, q.AvailabilityID)
	if err != nil {
		return nil, err
	}

	actor := common.ActorFromContext(ctx)
	if actor.PartnerID != req.BuyerID && actor.PartnerID != a.SellerID && !actor.IsBackOffice() {
		return nil, shared.NewUnauthorizedError(actor.UserID, "assess pair "+req.ID+"/"+a.ID)
	}

	tradeValue := a.BasePrice.Amount.Mul(req.RemainingQuantity().Min(a.RemainingQuantity).Value)

	assessment, err := h.engine.AssessTradeRisk(ctx, req.BuyerID, a.SellerID, tradeValue)
	if err != nil {
		return nil, err
	}

	buyer, err := h.partners.FindByID(ctx, req.BuyerID)
	if err != nil {
		return nil, err
	}
	seller, err := h.partners.FindByID(ctx, a.SellerID)
	if err != nil {
		return nil, err
	}
	com, err := h.commodities.FindByID(ctx, req.CommodityID)
	if err != nil {
		return nil, err
	}
	blocking, advisories := h.compliance.CheckInternational(ctx, buyer, seller, com, a, tradeValue)

	return &AssessTradeRiskResponse{
		Assessment: assessment,
		Compliance: blocking,
		Advisories: advisories,
	}, nil
}
